// Package contractclient wraps a single (address, ABI) pair over a
// go-ethereum client, the way blackholedex's ContractClient did: Call for
// eth_call reads, Send for signed writes, plus the receipt/transaction
// decoding helpers the strategies use to recover event data after a fill.
package contractclient

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// ContractClient is the narrow surface every strategy and contract-
// interaction helper needs against one deployed contract.
type ContractClient interface {
	ContractAddress() common.Address
	Abi() *abi.ABI
	Call(from *common.Address, method string, args ...interface{}) ([]interface{}, error)
	CallWithOverrides(from *common.Address, overrides map[common.Address]map[common.Hash]common.Hash, method string, args ...interface{}) ([]interface{}, error)
	EstimateGas(from *common.Address, value *big.Int, method string, args ...interface{}) (uint64, error)
	Send(mode ftypes.SendMode, gasLimit *uint64, ethValue *big.Int, from *common.Address, key *ecdsa.PrivateKey, method string, args ...interface{}) (common.Hash, error)
	TransactionData(txHash common.Hash) ([]byte, error)
	DecodeTransaction(data []byte) (*ftypes.DecodedTransaction, error)
	ParseReceipt(receipt *ftypes.TxReceipt) (string, error)
}

type client struct {
	eth     *ethclient.Client
	address common.Address
	abi     abi.ABI
}

// NewContractClient mirrors blackholedex's NewContractClient(client, address, abi).
func NewContractClient(eth *ethclient.Client, address common.Address, contractABI abi.ABI) ContractClient {
	return &client{eth: eth, address: address, abi: contractABI}
}

func (c *client) ContractAddress() common.Address { return c.address }

func (c *client) Abi() *abi.ABI { return &c.abi }

func (c *client) Call(from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack call %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: data}
	if from != nil {
		msg.From = *from
	}

	result, err := c.eth.CallContract(context.Background(), msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := c.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// CallWithOverrides issues the same eth_call but with synthetic state
// overrides, used by the gas estimator to price a fill without real
// balances/approvals.
func (c *client) CallWithOverrides(from *common.Address, overrides map[common.Address]map[common.Hash]common.Hash, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack call %s: %w", method, err)
	}

	callArg := map[string]interface{}{
		"to":   c.address,
		"data": hexutil.Bytes(data),
	}
	if from != nil {
		callArg["from"] = *from
	}

	stateDiff := make(map[common.Address]interface{}, len(overrides))
	for addr, slots := range overrides {
		stateDiff[addr] = map[string]interface{}{"stateDiff": slots}
	}

	var raw hexutil.Bytes
	if err := c.eth.Client().CallContext(context.Background(), &raw, "eth_call", callArg, "latest", stateDiff); err != nil {
		return nil, fmt.Errorf("call %s with overrides: %w", method, err)
	}

	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// EstimateGas packs method/args and asks the node to estimate delivery gas
// for a would-be call, the building block gas.go's EstimateFillGas uses to
// price `fillOrder` before submission.
func (c *client) EstimateGas(from *common.Address, value *big.Int, method string, args ...interface{}) (uint64, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("pack estimate %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: data, Value: value}
	if from != nil {
		msg.From = *from
	}

	gas, err := c.eth.EstimateGas(context.Background(), msg)
	if err != nil {
		return 0, fmt.Errorf("estimate gas %s: %w", method, err)
	}
	return gas, nil
}

func (c *client) Send(mode ftypes.SendMode, gasLimit *uint64, ethValue *big.Int, from *common.Address, key *ecdsa.PrivateKey, method string, args ...interface{}) (common.Hash, error) {
	if key == nil {
		return common.Hash{}, fmt.Errorf("send %s: no signing key provided", method)
	}

	value := ethValue
	if value == nil {
		value = big.NewInt(0)
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack send %s: %w", method, err)
	}

	ctx := context.Background()

	sender := *from
	nonce, err := c.eth.PendingNonceAt(ctx, sender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce for %s: %w", method, err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price for %s: %w", method, err)
	}
	if mode == ftypes.Fast {
		gasPrice = new(big.Int).Mul(gasPrice, big.NewInt(2))
	}

	limit := uint64(0)
	if gasLimit != nil {
		limit = *gasLimit
	} else {
		est, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: sender, To: &c.address, Value: value, Data: data})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas for %s: %w", method, err)
		}
		limit = est
	}

	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id for %s: %w", method, err)
	}

	tx := types.NewTransaction(nonce, c.address, value, limit, gasPrice, data)
	signer := types.LatestSignerForChainID(chainID)
	signedTx, err := types.SignTx(tx, signer, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign %s: %w", method, err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", method, err)
	}

	return signedTx.Hash(), nil
}

func (c *client) TransactionData(txHash common.Hash) ([]byte, error) {
	tx, _, err := c.eth.TransactionByHash(context.Background(), txHash)
	if err != nil {
		return nil, fmt.Errorf("fetch tx %s: %w", txHash.Hex(), err)
	}
	return tx.Data(), nil
}

func (c *client) DecodeTransaction(data []byte) (*ftypes.DecodedTransaction, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("tx data too short to contain a selector")
	}

	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("lookup method by selector: %w", err)
	}

	args := map[string]interface{}{}
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("unpack %s arguments: %w", method.Name, err)
	}

	return &ftypes.DecodedTransaction{MethodName: method.Name, Parameter: args}, nil
}

// ParseReceipt decodes every log in receipt that belongs to this contract's
// ABI, returning a JSON array of {EventName, Parameter} the way the
// teacher's MintNftTokenId consumes it.
func (c *client) ParseReceipt(receipt *ftypes.TxReceipt) (string, error) {
	var events []ftypes.DecodedEvent

	for _, log := range receipt.Logs {
		if log.Address != c.address || len(log.Topics) == 0 {
			continue
		}

		event, err := c.abi.EventByID(log.Topics[0])
		if err != nil {
			continue
		}

		params := map[string]interface{}{}
		data := common.FromHex(log.Data)
		if err := event.Inputs.UnpackIntoMap(params, data); err != nil {
			continue
		}

		// Indexed topics aren't in Data; surface the address-typed ones the
		// same way `Transfer(from, to, tokenId)` callers expect.
		topicIdx := 1
		for _, input := range event.Inputs {
			if !input.Indexed {
				continue
			}
			if topicIdx >= len(log.Topics) {
				break
			}
			switch input.Type.T {
			case abi.AddressTy:
				params[input.Name] = common.HexToAddress(log.Topics[topicIdx].Hex()).Hex()
			default:
				params[input.Name] = log.Topics[topicIdx].Hex()
			}
			topicIdx++
		}

		events = append(events, ftypes.DecodedEvent{EventName: event.Name, Parameter: params})
	}

	out, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("marshal decoded events: %w", err)
	}
	return string(out), nil
}

// ParsePrivateKeyHex accepts a 0x-prefixed or bare hex private key, used by
// the signer-per-chain bootstrap in cmd/filler.
func ParsePrivateKeyHex(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}
