package swapplanner

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/intentfiller/pkg/contractinteraction"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

func jsonReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

// Universal Router command bytes.
const (
	cmdV2SwapExactOut byte = 0x09
	cmdV3SwapExactOut byte = 0x01
	cmdV4Swap         byte = 0x10
)

// V4 action bytes.
const (
	actionSwapExactOutSingle byte = 0x08
	actionSettleAll          byte = 0x0c
	actionTakeAll            byte = 0x0f
)

// swapDeadlineSeconds is the Universal Router deadline window:
// block.timestamp + 120 s.
const swapDeadlineSeconds = 120

// SynthesizeSwap builds the concrete call list for one donor->target swap
// under best, handling native wrap/unwrap: v2/v3 wrap a native donor to
// WETH and unwrap WETH back to native for a native target; v4 passes
// native value directly with no wrapping.
func SynthesizeSwap(best ftypes.BestProtocol, donor, target ftypes.StableToken, tokens TokenAddresses, router, weth common.Address, amountOut *big.Int) []ftypes.Call {
	switch best.Protocol {
	case ftypes.ProtocolV2:
		return synthesizeClassic(cmdV2SwapExactOut, best, donor, target, tokens, router, weth, amountOut, nil)
	case ftypes.ProtocolV3:
		return synthesizeClassic(cmdV3SwapExactOut, best, donor, target, tokens, router, weth, amountOut, &best.Fee)
	case ftypes.ProtocolV4:
		return synthesizeV4(best, donor, target, tokens, router, amountOut)
	default:
		return nil
	}
}

func synthesizeClassic(command byte, best ftypes.BestProtocol, donor, target ftypes.StableToken, tokens TokenAddresses, router, weth common.Address, amountOut *big.Int, fee *uint32) []ftypes.Call {
	var calls []ftypes.Call

	donorAddr := tokens.Addr[donor]
	targetAddr := tokens.Addr[target]

	if donor == ftypes.Native {
		calls = append(calls, wrapNativeCall(weth, best.AmountIn))
		calls = append(calls, transferCall(weth, router, best.AmountIn))
		donorAddr = weth
	} else {
		calls = append(calls, transferCall(donorAddr, router, best.AmountIn))
	}

	targetForRouter := targetAddr
	if target == ftypes.Native {
		targetForRouter = weth
	}

	commands := []byte{command}
	inputs := [][]byte{encodeExactOutInput(donorAddr, targetForRouter, best.AmountIn, amountOut, fee)}
	calls = append(calls, universalRouterExecute(router, commands, inputs))

	if target == ftypes.Native {
		calls = append(calls, unwrapNativeCall(weth, amountOut))
	}

	return calls
}

func synthesizeV4(best ftypes.BestProtocol, donor, target ftypes.StableToken, tokens TokenAddresses, router common.Address, amountOut *big.Int) []ftypes.Call {
	var calls []ftypes.Call

	value := big.NewInt(0)
	if donor == ftypes.Native {
		value = best.AmountIn
	} else {
		calls = append(calls, transferCall(tokens.Addr[donor], router, best.AmountIn))
	}

	actions := []byte{actionSwapExactOutSingle, actionSettleAll, actionTakeAll}
	params := [][]byte{
		encodeV4ExactOutSingle(tokens.Addr[donor], tokens.Addr[target], best.Fee, best.AmountIn, amountOut),
		encodeV4SettleAll(tokens.Addr[donor], best.AmountIn),
		encodeV4TakeAll(tokens.Addr[target], amountOut),
	}

	commands := []byte{cmdV4Swap}
	inputs := [][]byte{encodeV4ActionSet(actions, params)}

	call := universalRouterExecute(router, commands, inputs)
	call.Value = value
	calls = append(calls, call)

	return calls
}

func wrapNativeCall(weth common.Address, amount *big.Int) ftypes.Call {
	data, _ := wethABI().Pack("deposit")
	return ftypes.Call{To: weth, Data: data, Value: amount}
}

func unwrapNativeCall(weth common.Address, amount *big.Int) ftypes.Call {
	data, _ := wethABI().Pack("withdraw", amount)
	return ftypes.Call{To: weth, Data: data, Value: big.NewInt(0)}
}

func transferCall(token, to common.Address, amount *big.Int) ftypes.Call {
	data, _ := erc20ABI().Pack("transfer", to, amount)
	return ftypes.Call{To: token, Data: data, Value: big.NewInt(0)}
}

func universalRouterExecute(router common.Address, commands []byte, inputs [][]byte) ftypes.Call {
	data, _ := universalRouterABI().Pack("execute", commands, inputs, deadline())
	return ftypes.Call{To: router, Data: data, Value: big.NewInt(0)}
}

// deadline stamps the Universal Router's execute() deadline argument at
// call-synthesis time, block.timestamp + 120 s.
func deadline() *big.Int {
	return big.NewInt(time.Now().Unix() + swapDeadlineSeconds)
}

// encodeExactOutInput packs the v2/v3 Universal Router exact-out input
// payload: (tokenIn, tokenOut, amountIn, amountOut[, fee]).
func encodeExactOutInput(tokenIn, tokenOut common.Address, amountIn, amountOut *big.Int, fee *uint32) []byte {
	args := abi.Arguments{
		{Type: mustType("address")},
		{Type: mustType("address")},
		{Type: mustType("uint256")},
		{Type: mustType("uint256")},
	}
	values := []interface{}{tokenIn, tokenOut, amountIn, amountOut}
	if fee != nil {
		args = append(args, abi.Argument{Type: mustType("uint24")})
		values = append(values, *fee)
	}
	packed, _ := args.Pack(values...)
	return packed
}

func encodeV4ExactOutSingle(currency0, currency1 common.Address, fee uint32, amountIn, amountOut *big.Int) []byte {
	args := abi.Arguments{
		{Type: mustType("address")},
		{Type: mustType("address")},
		{Type: mustType("uint24")},
		{Type: mustType("int24")},
		{Type: mustType("uint256")},
		{Type: mustType("uint256")},
	}
	packed, _ := args.Pack(currency0, currency1, fee, contractinteraction.TickSpacingForFee(fee), amountIn, amountOut)
	return packed
}

func encodeV4SettleAll(currency common.Address, amount *big.Int) []byte {
	args := abi.Arguments{{Type: mustType("address")}, {Type: mustType("uint256")}}
	packed, _ := args.Pack(currency, amount)
	return packed
}

func encodeV4TakeAll(currency common.Address, amount *big.Int) []byte {
	args := abi.Arguments{{Type: mustType("address")}, {Type: mustType("uint256")}}
	packed, _ := args.Pack(currency, amount)
	return packed
}

func encodeV4ActionSet(actions []byte, params [][]byte) []byte {
	args := abi.Arguments{{Type: mustType("bytes")}, {Type: mustType("bytes[]")}}
	packed, _ := args.Pack(actions, params)
	return packed
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

func erc20ABI() abi.ABI {
	a, _ := abi.JSON(jsonReader(erc20ABIJSON))
	return a
}

func wethABI() abi.ABI {
	a, _ := abi.JSON(jsonReader(wethABIJSON))
	return a
}

func universalRouterABI() abi.ABI {
	a, _ := abi.JSON(jsonReader(universalRouterABIJSON))
	return a
}

const erc20ABIJSON = `[{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

const wethABIJSON = `[{"inputs":[],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},{"inputs":[{"name":"wad","type":"uint256"}],"name":"withdraw","outputs":[],"type":"function"}]`

const universalRouterABIJSON = `[{"inputs":[{"name":"commands","type":"bytes"},{"name":"inputs","type":"bytes[]"},{"name":"deadline","type":"uint256"}],"name":"execute","outputs":[],"stateMutability":"payable","type":"function"}]`
