package core

import "strings"

// DateMapper maps the day and month of a movement to audio tokens.
type DateMapper struct {
	tokens TokenSet
	namer  *NumberNamer
}

// NewDateMapper creates a mapper over a token set.
func NewDateMapper(ts TokenSet) *DateMapper {
	return &DateMapper{tokens: ts, namer: NewNumberNamer(ts.Vocabulary)}
}

// Day returns the tokens for a day of month. The first of the month is
// read as an ordinal ("primero"), every other day as a cardinal.
func (dm *DateMapper) Day(day int) []string {
	if day == 1 {
		return []string{dm.tokens.FirstDay}
	}
	if day < 0 || day > 999 {
		day = 0
	}
	return dm.namer.UpTo999(day)
}

// Month returns the token for a month; out of range months read as January.
func (dm *DateMapper) Month(month int) string {
	if month < 1 || month > 12 || dm.tokens.Months[month] == "" {
		return dm.tokens.Months[1]
	}
	return dm.tokens.Months[month]
}

// Composer builds the spoken movement listing of the IVR.
// It holds no per-call state and is safe for concurrent use.
type Composer struct {
	tokens TokenSet
	namer  *NumberNamer
	dates  *DateMapper
	limit  int
}

// NewComposer creates a composer over a token set.
func NewComposer(ts TokenSet) *Composer {
	return &Composer{
		tokens: ts,
		namer:  NewNumberNamer(ts.Vocabulary),
		dates:  NewDateMapper(ts),
		limit:  MaxSpokenMovements,
	}
}

// Namer exposes the number namer of the composer's vocabulary.
func (c *Composer) Namer() *NumberNamer {
	return c.namer
}

// MovementTokens returns the block read for one movement: direction,
// amount, cents, date.
func (c *Composer) MovementTokens(m Movement) []string {
	tokens := make([]string, 0, 16)

	if m.IsCredit() {
		tokens = append(tokens, c.tokens.Credit)
	} else {
		tokens = append(tokens, c.tokens.Debit)
	}

	split := m.Split()
	tokens = append(tokens, c.namer.Large(split.IntegerValue())...)
	tokens = append(tokens, c.tokens.Currency)
	if split.Cents == "00" {
		tokens = append(tokens, "0")
	} else {
		tokens = append(tokens, c.namer.UpTo999(split.CentsValue())...)
	}
	tokens = append(tokens, c.tokens.Cents)

	tokens = append(tokens, c.tokens.WithDate)
	tokens = append(tokens, c.dates.Day(m.Day)...)
	tokens = append(tokens, c.dates.Month(m.Month))
	return tokens
}

// Tokens returns the full prompt for a listing: intro, up to ten movement
// blocks in order, then the repeat / previous menu / exit options. An empty
// listing has no prompt at all.
func (c *Composer) Tokens(movs []Movement) []string {
	if len(movs) == 0 {
		return nil
	}
	if len(movs) > c.limit {
		movs = movs[:c.limit]
	}

	tokens := []string{c.tokens.Intro}
	for _, m := range movs {
		tokens = append(tokens, c.MovementTokens(m)...)
	}
	return append(tokens, c.tokens.Repeat, c.tokens.PreviousMenu, c.tokens.Exit)
}

// Compose returns Tokens joined with the separator, ready for the player.
func (c *Composer) Compose(movs []Movement) string {
	return strings.Join(c.Tokens(movs), c.tokens.sep())
}
