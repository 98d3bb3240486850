package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	// CreditCode is the movement type of a received payment.
	CreditCode = "PG"

	// MaxSpokenMovements bounds how many movements one prompt reads aloud.
	MaxSpokenMovements = 10
)

type (
	// Movement is one card or account transaction as the IVR reads it.
	Movement struct {
		Type   string
		Amount decimal.Decimal
		Day    int
		Month  int
	}

	// Period is a calendar month of a given year.
	Period struct {
		Month int
		Year  int
	}

)

var (
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidDay   = errors.New("invalid day")
)

// IsCredit reports whether a movement type code is a received payment.
// Unknown and empty codes are debits.
func IsCredit(code string) bool {
	return strings.ToUpper(code) == CreditCode
}

// IsCredit reports whether the movement is a received payment.
func (m Movement) IsCredit() bool {
	return IsCredit(m.Type)
}

// Split returns the spoken split of the movement amount.
func (m Movement) Split() NumberSplit {
	return SplitAmount(m.Amount)
}

// Validate checks the calendar fields. The composer does not require it:
// out of range values have defined fallbacks there.
func (m Movement) Validate() error {
	if m.Day < 1 || m.Day > 31 {
		return ErrInvalidDay
	}
	if m.Month < 1 || m.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// ParsePeriod reads month and year the way the IVR sends them. A month
// that does not start with a number becomes January, a year that does not
// start with a number becomes the year of now.
func ParsePeriod(month, year string, now time.Time) Period {
	p := Period{Month: 1, Year: now.Year()}
	if m, ok := ParseLeadingInt(month); ok {
		p.Month = m
	}
	if y, ok := ParseLeadingInt(year); ok {
		p.Year = y
	}
	return p
}

// Previous steps back one calendar month, rolling the year at January.
func (p Period) Previous() Period {
	prev := Period{Month: p.Month - 1, Year: p.Year}
	if prev.Month <= 0 {
		prev.Month = 12
		prev.Year--
	}
	return prev
}

// MonthString is the two-digit month sent upstream.
func (p Period) MonthString() string {
	return fmt.Sprintf("%02d", p.Month)
}

// YearString is the year sent upstream.
func (p Period) YearString() string {
	return strconv.Itoa(p.Year)
}

func (p Period) String() string {
	return p.MonthString() + "/" + p.YearString()
}

// ParseLeadingInt parses the integer prefix of s after leading spaces,
// so "05" is 5 and "3 (marzo)" is 3. It reports false when s does not
// start with a number.
func ParseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}
