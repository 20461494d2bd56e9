package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	embarkerrors "github.com/toadkicker/embark-framework/pkg/errors"
)

// unitExponents maps web3 unit names to their power of ten in wei.
var unitExponents = map[string]int64{
	"kwei":       3,
	"babbage":    3,
	"femtoether": 3,
	"mwei":       6,
	"lovelace":   6,
	"picoether":  6,
	"gwei":       9,
	"shannon":    9,
	"nanoether":  9,
	"nano":       9,
	"szabo":      12,
	"microether": 12,
	"micro":      12,
	"finney":     15,
	"milliether": 15,
	"milli":      15,
	"ether":      18,
	"kether":     21,
	"grand":      21,
	"mether":     24,
	"gether":     27,
	"tether":     30,
}

// UnitFactor returns the number of wei in one unit. An empty unit is ether.
func UnitFactor(unit string) (*big.Int, error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	switch unit {
	case "", "ether":
		return big.NewInt(params.Ether), nil
	case "gwei":
		return big.NewInt(params.GWei), nil
	case "wei":
		return big.NewInt(params.Wei), nil
	case "noether":
		return big.NewInt(0), nil
	}
	exp, ok := unitExponents[unit]
	if !ok {
		return nil, embarkerrors.NewInputError("unit", fmt.Sprintf("unknown unit %q", unit), unit)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil), nil
}

// ToWei converts a decimal amount in unit to wei. The result must be a
// whole, non-negative number of wei.
func ToWei(value, unit string) (*big.Int, error) {
	factor, err := UnitFactor(unit)
	if err != nil {
		return nil, err
	}
	amount, ok := new(big.Rat).SetString(strings.TrimSpace(value))
	if !ok {
		return nil, embarkerrors.NewInputError("value", fmt.Sprintf("invalid amount %q", value), value)
	}
	if amount.Sign() < 0 {
		return nil, embarkerrors.NewInputError("value", "amount must not be negative", value)
	}
	amount.Mul(amount, new(big.Rat).SetInt(factor))
	if !amount.IsInt() {
		return nil, embarkerrors.NewInputError("value", fmt.Sprintf("%s %s is not a whole number of wei", value, unit), value)
	}
	return new(big.Int).Set(amount.Num()), nil
}

// FromWei renders a wei amount in unit, without trailing zeros.
func FromWei(wei *big.Int, unit string) (string, error) {
	factor, err := UnitFactor(unit)
	if err != nil {
		return "", err
	}
	if factor.Sign() == 0 {
		return "0", nil
	}
	q := new(big.Rat).SetFrac(wei, factor)
	if q.IsInt() {
		return q.Num().String(), nil
	}
	s := strings.TrimRight(q.FloatString(30), "0")
	return strings.TrimSuffix(s, "."), nil
}
