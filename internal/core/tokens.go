package core

import (
	"fmt"
	"strings"
)

// Separator joins audio tokens into the string the telephony player reads.
const Separator = "&"

type (
	// Vocabulary holds the spoken markers the NumberNamer fuses with numerals.
	Vocabulary struct {
		Separator string
		Hundred   string // prefix for 101..199
		Thousand  string
		Million   string
		Millions  string
		Billion   string
		Billions  string
	}

	// TokenSet is the audio vocabulary of one IVR prompt family.
	TokenSet struct {
		Vocabulary Vocabulary

		Intro        string
		Credit       string
		Debit        string
		Currency     string
		Cents        string
		WithDate     string
		FirstDay     string
		Repeat       string
		PreviousMenu string
		Exit         string

		// Months is indexed 1..12; index 0 is unused.
		Months [13]string
	}
)

// DefaultVocabulary returns the compound-numeral vocabulary of the clip inventory.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Separator: Separator,
		Hundred:   "ciento",
		Thousand:  "thousand",
		Million:   "million",
		Millions:  "millions",
		Billion:   "billion",
		Billions:  "billions",
	}
}

// CardMovementTokens returns the clips used by the card movement menu.
func CardMovementTokens() TokenSet {
	return TokenSet{
		Vocabulary: DefaultVocabulary(),

		Intro:        "[2061]-1756331855004", // Los movimientos de su tarjeta son
		Credit:       "[1065]-1752614436461", // Crédito por
		Debit:        "[1066]-1752614437314", // Débito por
		Currency:     "[1026]-1754406097542", // Bolívares y
		Cents:        "[2056]-1754409695005", // céntimos
		WithDate:     "[1067]-1752614438152", // con fecha
		FirstDay:     "[1080]-1752614449692", // primero
		Repeat:       "[1050]-1752614422776",
		PreviousMenu: "[1029]-1752614405010",
		Exit:         "[1030]-1752614405921",

		Months: [13]string{
			1:  "[1068]-1752614439001",
			2:  "[1069]-1752614439848",
			3:  "[1070]-1752614440702",
			4:  "[1071]-1752614441551",
			5:  "[1072]-1752614442382",
			6:  "[1073]-1752614443285",
			7:  "[1074]-1752614444152",
			8:  "[1075]-1752614445113",
			9:  "[1076]-1752614446110",
			10: "[1077]-1752614446975",
			11: "[1078]-1752614447930",
			12: "[1079]-1752614448871",
		},
	}
}

// TokenError reports an empty entry in a TokenSet.
type TokenError struct {
	Name  string
	Month int
}

func (e *TokenError) Error() string {
	if e.Name == "month" {
		return fmt.Sprintf("empty audio token for month %d", e.Month)
	}
	return fmt.Sprintf("empty audio token %q", e.Name)
}

// Validate reports the first empty token of the set.
func (ts TokenSet) Validate() error {
	named := []struct{ name, token string }{
		{"intro", ts.Intro},
		{"credit", ts.Credit},
		{"debit", ts.Debit},
		{"currency", ts.Currency},
		{"cents", ts.Cents},
		{"with_date", ts.WithDate},
		{"first_day", ts.FirstDay},
		{"repeat", ts.Repeat},
		{"previous_menu", ts.PreviousMenu},
		{"exit", ts.Exit},
		{"separator", ts.Vocabulary.Separator},
	}
	for _, n := range named {
		if strings.TrimSpace(n.token) == "" {
			return &TokenError{Name: n.name}
		}
	}
	for m := 1; m <= 12; m++ {
		if strings.TrimSpace(ts.Months[m]) == "" {
			return &TokenError{Name: "month", Month: m}
		}
	}
	return nil
}

func (ts TokenSet) sep() string {
	if ts.Vocabulary.Separator == "" {
		return Separator
	}
	return ts.Vocabulary.Separator
}
