package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// weiPerEther is 10^18, the wei denomination of one ether.
var weiPerEther = decimal.New(1, 18)

// ParseEther converts a decimal ether string such as "0.01" into wei.
// Uses decimal arithmetic to avoid floating-point errors on monetary values.
// Fails on negative amounts and on precision finer than one wei.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse ether amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("ether amount %q is negative", s)
	}

	wei := d.Mul(weiPerEther)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("ether amount %q has sub-wei precision", s)
	}
	return wei.BigInt(), nil
}

// FormatEther renders a wei amount as a decimal ether string with trailing
// zeros trimmed, e.g. 20000000000000000 -> "0.02".
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, 0).Div(weiPerEther).String()
}
