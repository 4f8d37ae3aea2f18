package contractclient

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

const testABIJSON = `[
  {
    "type": "function",
    "name": "approve",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "spender", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "event",
    "name": "Transfer",
    "anonymous": false,
    "inputs": [
      {"name": "from", "type": "address", "indexed": true},
      {"name": "to", "type": "address", "indexed": true},
      {"name": "value", "type": "uint256", "indexed": false}
    ]
  }
]`

func testABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testABIJSON))
	require.NoError(t, err)
	return parsed
}

func TestParsePrivateKeyHex(t *testing.T) {
	raw, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(raw))

	parsed, err := ParsePrivateKeyHex("0x" + hexKey)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(raw.PublicKey), crypto.PubkeyToAddress(parsed.PublicKey))

	parsedNoPrefix, err := ParsePrivateKeyHex(hexKey)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(raw.PublicKey), crypto.PubkeyToAddress(parsedNoPrefix.PublicKey))
}

func TestDecodeTransaction(t *testing.T) {
	contractABI := testABI(t)
	cc := NewContractClient(nil, common.HexToAddress("0xdead"), contractABI)

	spender := common.HexToAddress("0xbeef")
	data, err := contractABI.Pack("approve", spender, big.NewInt(1000))
	require.NoError(t, err)

	decoded, err := cc.DecodeTransaction(data)
	require.NoError(t, err)
	assert.Equal(t, "approve", decoded.MethodName)
	assert.Equal(t, spender, decoded.Parameter["spender"])
}

func TestDecodeTransaction_TooShort(t *testing.T) {
	cc := NewContractClient(nil, common.HexToAddress("0xdead"), testABI(t))
	_, err := cc.DecodeTransaction([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestParseReceipt(t *testing.T) {
	contractABI := testABI(t)
	contractAddr := common.HexToAddress("0xdead")
	cc := NewContractClient(nil, contractAddr, contractABI)

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	event := contractABI.Events["Transfer"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(500))
	require.NoError(t, err)

	receipt := &ftypes.TxReceipt{
		Logs: []ftypes.ReceiptLog{
			{
				Address: contractAddr,
				Topics: []common.Hash{
					event.ID,
					common.BytesToHash(from.Bytes()),
					common.BytesToHash(to.Bytes()),
				},
				Data: "0x" + common.Bytes2Hex(data),
			},
		},
	}

	out, err := cc.ParseReceipt(receipt)
	require.NoError(t, err)
	assert.Contains(t, out, "Transfer")
	assert.Contains(t, out, from.Hex())
}
