package market

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// Params are fixed at genesis.
type Params struct {
	// MinorUnitsPerUnit converts whole-unit rewards to balances.
	MinorUnitsPerUnit uint64 `json:"minor_units_per_unit"`
	// Retained minimum = (StorageOverhead + data length) * MinorUnitsPerByteYear * ExemptionYears.
	StorageOverhead       uint64 `json:"storage_overhead"`
	MinorUnitsPerByteYear uint64 `json:"minor_units_per_byte_year"`
	ExemptionYears        uint64 `json:"exemption_years"`
	// FaucetLimit caps a single airdrop; zero disables the faucet.
	FaucetLimit uint64 `json:"faucet_limit"`
}

func DefaultParams() Params {
	return Params{
		MinorUnitsPerUnit:     1_000_000_000,
		StorageOverhead:       128,
		MinorUnitsPerByteYear: 3480,
		ExemptionYears:        2,
		FaucetLimit:           0,
	}
}

func (p Params) Validate() error {
	if p.MinorUnitsPerUnit == 0 {
		return errors.New("minor_units_per_unit must be positive")
	}
	if _, err := p.RetainedMinimum(0); err != nil {
		return errors.New("retained minimum overflows")
	}
	return nil
}

// RetainedMinimum is the balance an account holding dataLen bytes must keep to
// stay valid. Payouts never sweep it.
func (p Params) RetainedMinimum(dataLen uint64) (uint64, error) {
	size, err := addUint64(p.StorageOverhead, dataLen)
	if err != nil {
		return 0, err
	}
	perYear, err := mulUint64(size, p.MinorUnitsPerByteYear)
	if err != nil {
		return 0, err
	}
	return mulUint64(perYear, p.ExemptionYears)
}

// ToMinorUnits converts a whole-unit amount using the fixed multiplier.
func (p Params) ToMinorUnits(units uint64) (uint64, error) {
	return mulUint64(units, p.MinorUnitsPerUnit)
}

// FormatAmount renders minor units as a decimal whole-unit string.
func (p Params) FormatAmount(minor uint64) string {
	v := decimal.NewFromBigInt(new(big.Int).SetUint64(minor), 0)
	per := decimal.NewFromBigInt(new(big.Int).SetUint64(p.MinorUnitsPerUnit), 0)
	if per.IsZero() {
		return v.String()
	}
	return v.Div(per).String()
}

func addUint64(a, b uint64) (uint64, error) {
	c := a + b
	if c < a {
		return 0, ErrOverflow
	}
	return c, nil
}

func subUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

func mulUint64(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	c := a * b
	if c/b != a {
		return 0, ErrOverflow
	}
	return c, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
