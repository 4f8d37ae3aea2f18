// Package strategy is the C8 Strategy Set: the polymorphic capability set
// {CanFill, CalculateProfitability, ExecuteOrder},
// implemented over BasicFiller and StableSwapFiller.
package strategy

import (
	"context"
	"math/big"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// Strategy is the capability set every filling strategy exposes. Errors
// inside CanFill/CalculateProfitability are swallowed:
// implementations return false/0 on internal failure rather than erroring.
type Strategy interface {
	Name() string
	CanFill(ctx context.Context, order ftypes.Order) bool
	// CalculateProfitability returns the expected surplus in destination
	// fee-token base units, or zero if unprofitable or on any internal
	// failure.
	CalculateProfitability(ctx context.Context, order ftypes.Order) *big.Int
	ExecuteOrder(ctx context.Context, order ftypes.Order) ftypes.ExecutionResult
}

// Ranked pairs a strategy with its computed profit, for the orchestrator's
// descending sort over evaluated strategies.
type Ranked struct {
	Strategy Strategy
	Profit   *big.Int
}
