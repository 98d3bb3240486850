package core

import (
	"strconv"
	"strings"
)

// NumberNamer turns non-negative integers into the audio tokens of their
// spoken form. Numerals 0..100 and round hundreds have their own clip; the
// scale words are taken from the Vocabulary.
type NumberNamer struct {
	vocab Vocabulary
}

// NewNumberNamer creates a namer over the given vocabulary.
func NewNumberNamer(v Vocabulary) *NumberNamer {
	if v.Separator == "" {
		v.Separator = Separator
	}
	return &NumberNamer{vocab: v}
}

// UpTo999 returns the tokens for 0 <= n <= 999. Negative values are read
// as zero and larger values fall through to Large.
func (nn *NumberNamer) UpTo999(n int) []string {
	if n > 999 {
		return nn.Large(int64(n))
	}
	return nn.upTo999(n)
}

// NameUpTo999 is UpTo999 joined with the separator.
func (nn *NumberNamer) NameUpTo999(n int) string {
	return strings.Join(nn.UpTo999(n), nn.vocab.Separator)
}

func (nn *NumberNamer) upTo999(n int) []string {
	switch {
	case n <= 0:
		return []string{"0"}
	case n <= 100:
		return []string{strconv.Itoa(n)}
	case n < 200:
		// "ciento" fuses with the remainder instead of a "100" clip.
		return append([]string{nn.vocab.Hundred}, nn.upTo999(n-100)...)
	}

	hundreds := n / 100 * 100
	rest := n % 100
	if rest == 0 {
		return []string{strconv.Itoa(hundreds)}
	}
	return append([]string{strconv.Itoa(hundreds)}, nn.upTo999(rest)...)
}

// Large returns the tokens for any non-negative integer, grouped by
// thousands. A scale group equal to one is read as the bare scale word
// ("mil", not "uno mil"); the units group is always read in full.
func (nn *NumberNamer) Large(n int64) []string {
	if n <= 0 {
		return []string{"0"}
	}

	var groups []int
	for n > 0 {
		groups = append(groups, int(n%1000))
		n /= 1000
	}

	var tokens []string
	for i := len(groups) - 1; i >= 0; i-- {
		gv := groups[i]
		if gv == 0 {
			continue
		}
		scale := nn.scaleWord(i, gv)
		switch {
		case scale == "":
			tokens = append(tokens, nn.upTo999(gv)...)
		case gv == 1:
			tokens = append(tokens, scale)
		default:
			tokens = append(tokens, nn.upTo999(gv)...)
			tokens = append(tokens, scale)
		}
	}
	return tokens
}

// NameLarge is Large joined with the separator.
func (nn *NumberNamer) NameLarge(n int64) string {
	return strings.Join(nn.Large(n), nn.vocab.Separator)
}

// scaleWord returns the marker for group idx (0 = units). Groups above
// billions have no recorded marker.
func (nn *NumberNamer) scaleWord(idx, gv int) string {
	switch idx {
	case 1:
		return nn.vocab.Thousand
	case 2:
		if gv == 1 {
			return nn.vocab.Million
		}
		return nn.vocab.Millions
	case 3:
		if gv == 1 {
			return nn.vocab.Billion
		}
		return nn.vocab.Billions
	default:
		return ""
	}
}
