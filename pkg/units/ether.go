package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of base units (wei) per ether, as a power of ten.
const EtherDecimals = 18

var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrPrecision = errors.New("amount has more than 18 decimal places")
	ErrOverflow  = errors.New("amount does not fit in 256 bits")
)

// ParseEther converts a decimal ether string ("5.45") into wei.
func ParseEther(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse ether %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, ErrNegative
	}
	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, ErrPrecision
	}
	out, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// MustEther is ParseEther for constants and tests.
func MustEther(s string) *uint256.Int {
	v, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatEther renders wei as a decimal ether string without trailing zeros.
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei.ToBig(), -EtherDecimals).String()
}

// ParseWei parses a base-10 wei string.
func ParseWei(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse wei %q: %w", s, err)
	}
	return v, nil
}
