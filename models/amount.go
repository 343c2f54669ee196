package models

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
)

// Amount is a token quantity in base units. It decodes from a JSON integer, a decimal string
// or a 0x-prefixed hex string, and always encodes as a JSON integer.
type Amount struct {
	v *big.Int
}

func NewAmount(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(v)}
}

func AmountOf(v int64) Amount { return Amount{v: big.NewInt(v)} }

// Int returns a copy of the value; an unset Amount is zero.
func (a Amount) Int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) IsSet() bool { return a.v != nil }

func (a Amount) String() string { return a.Int().String() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Int().String()), nil
}

func (a *Amount) UnmarshalJSON(input []byte) error {
	s := strings.TrimSpace(string(input))
	if s == "null" {
		a.v = nil
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return errors.New("empty amount")
	}
	v, ok := math.ParseBig256(s)
	if !ok {
		return errors.Errorf("invalid integer amount %q", s)
	}
	a.v = v
	return nil
}
