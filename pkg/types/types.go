// Package types holds the data shared across the filler's packages: the
// normalized Order, the few auxiliary value objects every component passes
// around (GasEstimate, SwapPlan, TokenBalances...), and the thin wire types
// (TxReceipt, DecodedTransaction) that pkg/contractclient and pkg/txlistener
// exchange with callers.
package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SendMode selects how a ContractClient.Send call prices and confirms its
// transaction. Standard lets the underlying client pick gas price/limit
// automatically; Fast is reserved for callers that want to pre-empt pending
// nonces with a bumped fee.
type SendMode int

const (
	Standard SendMode = iota
	Fast
)

// TokenID is the 32-byte token encoding used throughout order data: a
// left-padded 20-byte address. The all-zero value denotes the chain's
// native currency.
type TokenID [32]byte

func TokenIDFromAddress(addr common.Address) TokenID {
	var id TokenID
	copy(id[12:], addr.Bytes())
	return id
}

func (t TokenID) Address() common.Address {
	return common.BytesToAddress(t[:])
}

func (t TokenID) IsNative() bool {
	return t == TokenID{}
}

// Input is one escrowed order input on the source chain.
type Input struct {
	Token  TokenID
	Amount *big.Int
}

// Output is one requested order output on the destination chain.
type Output struct {
	Token       TokenID
	Amount      *big.Int
	Beneficiary [32]byte
}

// Order is the normalized, immutable-after-creation cross-chain intent
// decoded from an OrderPlaced log.
type Order struct {
	ID           [32]byte
	User         [32]byte
	SourceChain  string
	DestChain    string
	Deadline     *big.Int
	Nonce        *big.Int
	Fees         *big.Int
	Inputs       []Input
	Outputs      []Output
	CallData     []byte
	SourceTxHash common.Hash

	// BlockNumber/LogIndex are scanner bookkeeping only; they are not part
	// of the commitment pre-image.
	BlockNumber uint64
	LogIndex    uint
}

// OrderValue is the order's input/output value, normalized to 18-decimal
// fixed-point USD base units (stored as *big.Int, 1e18 == $1).
type OrderValue struct {
	InputUSD  *big.Int
	OutputUSD *big.Int
}

// ConfirmationPolicyEntry is one chain's piecewise-linear confirmation rule.
type ConfirmationPolicyEntry struct {
	MinUSD   *big.Int
	MaxUSD   *big.Int
	MinConfs int
	MaxConfs int
}

// GasEstimate is the cached {fillGas, postGas, relayerFee} triple for one
// order, keyed by order id in the cache.
type GasEstimate struct {
	FillGas              uint64
	PostGas              uint64
	RelayerFeeInFeeToken *big.Int
}

// DefaultGasEstimate is returned whenever estimation fails or the RPC lacks
// state-override support.
func DefaultGasEstimate() GasEstimate {
	return GasEstimate{
		FillGas:              3_000_000,
		PostGas:              270_000,
		RelayerFeeInFeeToken: big.NewInt(10_000_000),
	}
}

// Protocol identifies which AMM protocol version quoted best.
type Protocol int

const (
	ProtocolNone Protocol = iota
	ProtocolV2
	ProtocolV3
	ProtocolV4
)

func (p Protocol) String() string {
	switch p {
	case ProtocolV2:
		return "v2"
	case ProtocolV3:
		return "v3"
	case ProtocolV4:
		return "v4"
	default:
		return "none"
	}
}

// BestProtocol is the result of shopping a token pair across v2/v3/v4.
type BestProtocol struct {
	Protocol Protocol
	AmountIn *big.Int
	Fee      uint32 // v3/v4 fee tier, zero for v2/none
}

// Call is one concrete on-chain call synthesized by the swap planner.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// SwapPlan is the ordered call list that covers a destination-chain token
// shortfall, plus its simulated gas cost.
type SwapPlan struct {
	Calls            []Call
	TotalGasEstimate uint64
}

// StableToken enumerates the fixed alphabet TokenBalances tracks.
type StableToken int

const (
	DAI StableToken = iota
	USDT
	USDC
	Native
)

func (s StableToken) String() string {
	return [...]string{"DAI", "USDT", "USDC", "NATIVE"}[s]
}

// AllStableTokens lists the alphabet in its canonical tie-break order.
var AllStableTokens = [...]StableToken{DAI, USDT, USDC, Native}

// TokenBalances holds the filler's destination-chain balances over the
// fixed {DAI, USDT, USDC, NATIVE} alphabet.
type TokenBalances struct {
	DAI    *big.Int
	USDT   *big.Int
	USDC   *big.Int
	Native *big.Int
}

func (b TokenBalances) Get(t StableToken) *big.Int {
	switch t {
	case DAI:
		return b.DAI
	case USDT:
		return b.USDT
	case USDC:
		return b.USDC
	default:
		return b.Native
	}
}

func (b *TokenBalances) Set(t StableToken, v *big.Int) {
	switch t {
	case DAI:
		b.DAI = v
	case USDT:
		b.USDT = v
	case USDC:
		b.USDC = v
	default:
		b.Native = v
	}
}

// AllowBlockListItem is one allow/block-list rule; a zero-value field is a
// wildcard that matches any order. Mirrors Hyperlane7683Filler's
// AllowBlockListItem, which deny-lists by order originator or token pair.
type AllowBlockListItem struct {
	Sender      common.Address
	InputToken  common.Address
	OutputToken common.Address
}

func (i AllowBlockListItem) matches(order Order) bool {
	if i.Sender != (common.Address{}) && common.BytesToAddress(order.User[:]) != i.Sender {
		return false
	}
	if i.InputToken != (common.Address{}) && !containsInput(order.Inputs, i.InputToken) {
		return false
	}
	if i.OutputToken != (common.Address{}) && !containsOutput(order.Outputs, i.OutputToken) {
		return false
	}
	return true
}

func containsInput(inputs []Input, token common.Address) bool {
	for _, in := range inputs {
		if in.Token.Address() == token {
			return true
		}
	}
	return false
}

func containsOutput(outputs []Output, token common.Address) bool {
	for _, out := range outputs {
		if out.Token.Address() == token {
			return true
		}
	}
	return false
}

// AllowBlockLists is the operator-configured allow/block-list pre-filter,
// checked before a strategy's own CanFill preconditions: a blocked order is
// always rejected, and when AllowList is non-empty an order must match one
// of its entries to pass.
type AllowBlockLists struct {
	AllowList []AllowBlockListItem
	BlockList []AllowBlockListItem
}

// Permits reports whether order clears the allow/block-list pre-filter.
func (l AllowBlockLists) Permits(order Order) bool {
	for _, item := range l.BlockList {
		if item.matches(order) {
			return false
		}
	}
	if len(l.AllowList) == 0 {
		return true
	}
	for _, item := range l.AllowList {
		if item.matches(order) {
			return true
		}
	}
	return false
}

// ExecutionResult is the outcome of a strategy's destination-chain fill
// submission.
type ExecutionResult struct {
	Success      bool
	TxHash       common.Hash
	GasUsed      uint64
	GasPrice     *big.Int
	BlockNumber  uint64
	WallTimeMs   int64
	StrategyName string
	Error        error
}

// Report is one progress line emitted by the orchestrator's report channel,
// JSON-serializable so downstream consumers (CLI, logs, dashboards) can
// pick the fields they care about.
type Report struct {
	OrderID   string    `json:"orderId"`
	Phase     string    `json:"phase"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TxReceipt mirrors the raw eth_getTransactionReceipt JSON-RPC shape: hex
// strings throughout, left for callers to parse with big.Int.SetString.
type TxReceipt struct {
	TxHash            string        `json:"transactionHash"`
	BlockNumber       string        `json:"blockNumber"`
	Status            string        `json:"status"`
	GasUsed           string        `json:"gasUsed"`
	EffectiveGasPrice string        `json:"effectiveGasPrice"`
	Logs              []ReceiptLog  `json:"logs"`
	ContractAddress   common.Address `json:"contractAddress"`
}

type ReceiptLog struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    string         `json:"data"`
	Index   string         `json:"logIndex"`
}

// DecodedTransaction is the result of ContractClient.DecodeTransaction: a
// method name plus its named, JSON-friendly parameters.
type DecodedTransaction struct {
	MethodName string                 `json:"methodName"`
	Parameter  map[string]interface{} `json:"parameter"`
}

// DecodedEvent is one parsed log entry from ContractClient.ParseReceipt.
type DecodedEvent struct {
	EventName string                 `json:"EventName"`
	Parameter map[string]interface{} `json:"Parameter"`
}
