package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsCredit(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"PG", true},
		{"pg", true},
		{"Pg", true},
		{"CO", false},
		{"", false},
		{" PG", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsCredit(tc.code), "IsCredit(%q)", tc.code)
	}
}

func TestPeriodPrevious(t *testing.T) {
	cases := []struct {
		in   Period
		want Period
	}{
		{Period{Month: 3, Year: 2024}, Period{Month: 2, Year: 2024}},
		{Period{Month: 1, Year: 2024}, Period{Month: 12, Year: 2023}},
		{Period{Month: 12, Year: 2024}, Period{Month: 11, Year: 2024}},
		{Period{Month: 0, Year: 2024}, Period{Month: 12, Year: 2023}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.in.Previous())
	}
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		month, year string
		want        Period
	}{
		{"numeric", "03", "2025", Period{Month: 3, Year: 2025}},
		{"spaces", " 7", " 2024", Period{Month: 7, Year: 2024}},
		{"bad month", "marzo", "2025", Period{Month: 1, Year: 2025}},
		{"bad year", "5", "", Period{Month: 5, Year: 2026}},
		{"both bad", "", "x", Period{Month: 1, Year: 2026}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParsePeriod(tc.month, tc.year, now))
		})
	}
}

func TestPeriodStrings(t *testing.T) {
	p := Period{Month: 1, Year: 2024}.Previous()
	assert.Equal(t, "12", p.MonthString())
	assert.Equal(t, "2023", p.YearString())
	assert.Equal(t, "03", Period{Month: 3, Year: 2025}.MonthString())
	assert.Equal(t, "03/2025", Period{Month: 3, Year: 2025}.String())
}

func TestParseLeadingInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"5", 5, true},
		{"05", 5, true},
		{"  12", 12, true},
		{"3abc", 3, true},
		{"-2", -2, true},
		{"+4", 4, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseLeadingInt(tc.in)
		assert.Equal(t, tc.ok, ok, "ParseLeadingInt(%q)", tc.in)
		assert.Equal(t, tc.want, got, "ParseLeadingInt(%q)", tc.in)
	}
}

func TestMovementValidate(t *testing.T) {
	assert.NoError(t, Movement{Day: 1, Month: 12}.Validate())
	assert.ErrorIs(t, Movement{Day: 0, Month: 1}.Validate(), ErrInvalidDay)
	assert.ErrorIs(t, Movement{Day: 10, Month: 13}.Validate(), ErrInvalidMonth)
}

func TestTokenSetValidate(t *testing.T) {
	assert.NoError(t, CardMovementTokens().Validate())

	ts := CardMovementTokens()
	ts.Exit = " "
	var tokErr *TokenError
	assert.ErrorAs(t, ts.Validate(), &tokErr)
	assert.Equal(t, "exit", tokErr.Name)

	ts = CardMovementTokens()
	ts.Months[7] = ""
	assert.EqualError(t, ts.Validate(), "empty audio token for month 7")
}
