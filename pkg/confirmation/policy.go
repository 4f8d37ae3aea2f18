// Package confirmation implements the C3 Confirmation Policy: a piecewise
// linear interpolation from an order's USD value to the number of block
// confirmations the monitor must wait for before treating an order as final.
package confirmation

import (
	"fmt"

	"github.com/shopspring/decimal"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// Required returns the number of confirmations needed for usdValue under
// entry, linearly interpolating between MinConfs at MinUSD and MaxConfs at
// MaxUSD and rounding half up.
func Required(entry ftypes.ConfirmationPolicyEntry, usdValue decimal.Decimal) (int, error) {
	minUSD := decimal.NewFromBigInt(entry.MinUSD, 0)
	maxUSD := decimal.NewFromBigInt(entry.MaxUSD, 0)

	if maxUSD.LessThanOrEqual(minUSD) {
		return 0, fmt.Errorf("confirmation policy: MaxUSD %s must exceed MinUSD %s", maxUSD, minUSD)
	}

	if usdValue.LessThanOrEqual(minUSD) {
		return entry.MinConfs, nil
	}
	if usdValue.GreaterThanOrEqual(maxUSD) {
		return entry.MaxConfs, nil
	}

	span := maxUSD.Sub(minUSD)
	progress := usdValue.Sub(minUSD).Div(span)

	confSpan := decimal.NewFromInt(int64(entry.MaxConfs - entry.MinConfs))
	interpolated := decimal.NewFromInt(int64(entry.MinConfs)).Add(progress.Mul(confSpan))

	rounded := interpolated.Round(0)
	return int(rounded.IntPart()), nil
}
