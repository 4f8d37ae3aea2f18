package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func orderFrom(sender, inputToken, outputToken common.Address) Order {
	var user [32]byte
	copy(user[12:], sender.Bytes())

	return Order{
		User:    user,
		Inputs:  []Input{{Token: TokenIDFromAddress(inputToken), Amount: big.NewInt(1)}},
		Outputs: []Output{{Token: TokenIDFromAddress(outputToken), Amount: big.NewInt(1)}},
	}
}

func TestAllowBlockLists_EmptyPermitsEverything(t *testing.T) {
	var l AllowBlockLists
	order := orderFrom(common.HexToAddress("0x1"), common.HexToAddress("0x2"), common.HexToAddress("0x3"))
	assert.True(t, l.Permits(order))
}

func TestAllowBlockLists_BlockListRejectsMatchingSender(t *testing.T) {
	sender := common.HexToAddress("0xbad")
	l := AllowBlockLists{BlockList: []AllowBlockListItem{{Sender: sender}}}
	order := orderFrom(sender, common.HexToAddress("0x2"), common.HexToAddress("0x3"))

	assert.False(t, l.Permits(order))
}

func TestAllowBlockLists_BlockListIgnoresNonMatchingSender(t *testing.T) {
	l := AllowBlockLists{BlockList: []AllowBlockListItem{{Sender: common.HexToAddress("0xbad")}}}
	order := orderFrom(common.HexToAddress("0xgood"), common.HexToAddress("0x2"), common.HexToAddress("0x3"))

	assert.True(t, l.Permits(order))
}

func TestAllowBlockLists_NonEmptyAllowListRequiresMatch(t *testing.T) {
	allowed := common.HexToAddress("0x600d")
	l := AllowBlockLists{AllowList: []AllowBlockListItem{{Sender: allowed}}}

	assert.True(t, l.Permits(orderFrom(allowed, common.HexToAddress("0x2"), common.HexToAddress("0x3"))))
	assert.False(t, l.Permits(orderFrom(common.HexToAddress("0x07e4"), common.HexToAddress("0x2"), common.HexToAddress("0x3"))))
}

func TestAllowBlockLists_BlockListTakesPrecedenceOverAllowList(t *testing.T) {
	sender := common.HexToAddress("0xbad")
	l := AllowBlockLists{
		AllowList: []AllowBlockListItem{{Sender: sender}},
		BlockList: []AllowBlockListItem{{Sender: sender}},
	}

	assert.False(t, l.Permits(orderFrom(sender, common.HexToAddress("0x2"), common.HexToAddress("0x3"))))
}

func TestAllowBlockLists_MatchesOnTokenPair(t *testing.T) {
	inputToken := common.HexToAddress("0x1e")
	l := AllowBlockLists{BlockList: []AllowBlockListItem{{InputToken: inputToken}}}

	blocked := orderFrom(common.HexToAddress("0x1"), inputToken, common.HexToAddress("0x3"))
	allowed := orderFrom(common.HexToAddress("0x1"), common.HexToAddress("0x07e4"), common.HexToAddress("0x3"))

	assert.False(t, l.Permits(blocked))
	assert.True(t, l.Permits(allowed))
}
