// Package money provides an exact decimal amount with two fractional digits.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every amount carries.
const Scale = 2

// Max is the largest magnitude a NUMERIC(12,2) column holds.
var Max = Money{d: decimal.RequireFromString("9999999999.99")}

var (
	ErrInvalidAmount = errors.New("money: invalid amount")
	ErrTooPrecise    = errors.New("money: more than 2 fractional digits")
)

// Money is an exact amount. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{}

// New parses a decimal string such as "12.50".
func New(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// MustNew is New for constants; it panics on bad input.
func MustNew(s string) Money {
	m, err := New(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal rejects values that cannot be represented in cents.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Round(Scale)) {
		return Zero, fmt.Errorf("%w: %s", ErrTooPrecise, d.String())
	}
	m := Money{d: d.Round(Scale)}
	if !m.InRange() {
		return Zero, fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, d.String(), Max)
	}
	return m, nil
}

// InRange reports whether m fits the storage column.
func (m Money) InRange() bool {
	return m.d.Abs().LessThanOrEqual(Max.d)
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// Sum adds all amounts.
func Sum(ms ...Money) Money {
	total := Zero
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Mul multiplies by an integer quantity; the result is still exact.
func (m Money) Mul(qty int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(qty))}
}

func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) Decimal() decimal.Decimal { return m.d }
func (m Money) String() string { return m.d.StringFixed(Scale) }
func (m Money) Cents() int64 { return m.d.Shift(Scale).IntPart() }

// MarshalJSON encodes the amount as a string to avoid float rounding on clients.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "12.50" or 12.50.
func (m *Money) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	parsed, err := New(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner so numeric columns decode directly.
func (m *Money) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	m.d = d.Round(Scale)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// NumericValue lets pgx encode the amount as a binary numeric.
func (m Money) NumericValue() (pgtype.Numeric, error) {
	return pgtype.Numeric{Int: m.d.Coefficient(), Exp: m.d.Exponent(), Valid: true}, nil
}

// ScanNumeric lets pgx decode a binary numeric without a string round trip.
func (m *Money) ScanNumeric(n pgtype.Numeric) error {
	if !n.Valid {
		m.d = decimal.Zero
		return nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return fmt.Errorf("%w: non-finite numeric", ErrInvalidAmount)
	}
	m.d = decimal.NewFromBigInt(n.Int, n.Exp).Round(Scale)
	return nil
}
