// Package core provides money parsing and handling utilities.
//
// This file contains the amount splitter: it normalizes whatever the
// upstream sends as "monto" into a decimal and splits it into the integer
// part and the two cent digits the IVR reads separately.
package core

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NumberSplit is an amount ready to be spoken: unsigned integer digits and
// exactly two cent digits.
type NumberSplit struct {
	Integer string
	Cents   string
}

// ParseAmount converts a loosely typed amount into a decimal.
//
// It accepts decimals, floats, integers, json.Number and numeric strings.
// Anything else, including NaN, infinities and unparsable strings, yields
// zero: a malformed amount is read as "0", it never fails the call.
//
// Examples:
//
//	ParseAmount("1234.56") -> 1234.56
//	ParseAmount(10.5)      -> 10.5
//	ParseAmount("abc")     -> 0
func ParseAmount(v any) decimal.Decimal {
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(t)
	case float32:
		return ParseAmount(float64(t))
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case int32:
		return decimal.NewFromInt(int64(t))
	case json.Number:
		return ParseAmount(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// SplitAmount rounds half-up to two places and splits on the decimal point.
// The sign is dropped; the direction of a movement is spoken by its cue.
//
// Examples:
//
//	SplitAmount(10.5) -> {"10", "50"}
//	SplitAmount(3)    -> {"3", "00"}
func SplitAmount(d decimal.Decimal) NumberSplit {
	fixed := d.Abs().Round(2).StringFixed(2)
	intPart, cents, ok := strings.Cut(fixed, ".")
	if !ok || intPart == "" {
		return NumberSplit{Integer: "0", Cents: "00"}
	}
	return NumberSplit{Integer: intPart, Cents: cents}
}

// MaxSpokenInteger is the largest integer part with a defined reading; the
// namer has no marker above billions.
const MaxSpokenInteger int64 = 999_999_999_999

// IntegerValue returns the integer digits as a number. Larger amounts
// saturate at MaxSpokenInteger; digits that are not a number are zero.
func (s NumberSplit) IntegerValue() int64 {
	v, err := strconv.ParseInt(s.Integer, 10, 64)
	if errors.Is(err, strconv.ErrRange) || v > MaxSpokenInteger {
		return MaxSpokenInteger
	}
	if err != nil {
		return 0
	}
	return v
}

// CentsValue returns the cent digits as a number in 0..99.
func (s NumberSplit) CentsValue() int {
	v, err := strconv.Atoi(s.Cents)
	if err != nil {
		return 0
	}
	return v
}
