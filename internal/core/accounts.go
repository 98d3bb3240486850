package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Currency and status codes of the account and card listings.
const (
	CurrencyBolivares = "BS"

	AccountStatusClosed  = "O"
	AccountStatusBlocked = "T"

	CardStatusActive = "1"
)

// Record is one loosely typed JSON object from the bank API.
type Record map[string]any

// Text returns the field as text; numbers keep their JSON spelling and
// missing or null fields are empty.
func (r Record) Text(key string) string {
	return TextOf(r[key])
}

// TextOf is Record.Text for a bare value.
func TextOf(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%v", v)
	case bool:
		if v {
			return "true"
		}
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Object returns the nested object at key, or nil.
func (r Record) Object(key string) Record {
	switch v := r[key].(type) {
	case map[string]any:
		return Record(v)
	case Record:
		return v
	default:
		return nil
	}
}

// Records returns the array of objects at key and whether key held an array.
func (r Record) Records(key string) ([]Record, bool) {
	raw, ok := r[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out, true
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// AccountList extracts the accounts of a listing response, which come either
// under "data" or under "data.data". nested reports the second layout.
func AccountList(body Record) (accounts []Record, nested bool) {
	if list, ok := body.Records("data"); ok {
		return list, false
	}
	if inner := body.Object("data"); inner != nil {
		if list, ok := inner.Records("data"); ok {
			return list, true
		}
	}
	return nil, false
}

// WithAccounts returns a copy of body whose account list is replaced,
// keeping the original nesting.
func WithAccounts(body Record, accounts []Record, nested bool) Record {
	out := body.Clone()
	list := toAny(accounts)
	if nested {
		inner := body.Object("data").Clone()
		inner["data"] = list
		out["data"] = map[string]any(inner)
		return out
	}
	out["data"] = list
	return out
}

// IsBolivares reports whether an account is held in bolívares.
func IsBolivares(acc Record) bool {
	return strings.ToUpper(acc.Text("moneda")) == CurrencyBolivares
}

// BolivarAccounts keeps the accounts held in bolívares.
func BolivarAccounts(accounts []Record) []Record {
	return filterRecords(accounts, IsBolivares)
}

// DebitAccounts keeps bolívar accounts that can be debited: closed and
// blocked accounts are dropped.
func DebitAccounts(accounts []Record) []Record {
	return filterRecords(accounts, func(acc Record) bool {
		status := strings.ToUpper(acc.Text("estatus"))
		return IsBolivares(acc) && status != AccountStatusClosed && status != AccountStatusBlocked
	})
}

// CreditDestinations keeps bolívar accounts other than the origin account.
func CreditDestinations(accounts []Record, origin12 string) []Record {
	return filterRecords(accounts, func(acc Record) bool {
		return IsBolivares(acc) && acc.Text("cuenta12") != origin12
	})
}

// FindAccount12 resolves the 12-digit account number of the account whose
// 20-digit number is cuenta20.
func FindAccount12(accounts []Record, cuenta20 string) (string, bool) {
	for _, acc := range accounts {
		if acc.Text("cuenta20") == cuenta20 {
			if c12 := acc.Text("cuenta12"); c12 != "" {
				return c12, true
			}
			return "", false
		}
	}
	return "", false
}

// ActiveCards returns the cards of a card listing ("data.tarjetas") whose
// status is active.
func ActiveCards(body Record) []Record {
	data := body.Object("data")
	if data == nil {
		return []Record{}
	}
	cards, _ := data.Records("tarjetas")
	return filterRecords(cards, func(card Record) bool {
		return card.Text("estatusTarjeta") == CardStatusActive
	})
}

// MovementRecords returns "data.movimientos" and whether it was an array.
func MovementRecords(body Record) ([]Record, bool) {
	data := body.Object("data")
	if data == nil {
		return nil, false
	}
	return data.Records("movimientos")
}

// MovementFromRecord reads one upstream movement ("tipo", "monto", "dia",
// "mes"). Malformed numbers fall back to zero.
func MovementFromRecord(r Record) Movement {
	day, _ := ParseLeadingInt(r.Text("dia"))
	month, _ := ParseLeadingInt(r.Text("mes"))
	return Movement{
		Type:   r.Text("tipo"),
		Amount: ParseAmount(r["monto"]),
		Day:    day,
		Month:  month,
	}
}

func filterRecords(in []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func toAny(records []Record) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = map[string]any(r)
	}
	return out
}

// AsRecord returns v as a Record when it is a JSON object, nil otherwise.
func AsRecord(v any) Record {
	switch t := v.(type) {
	case map[string]any:
		return Record(t)
	case Record:
		return t
	default:
		return nil
	}
}

// FirstText returns the first non-empty text among keys.
func (r Record) FirstText(keys ...string) string {
	for _, k := range keys {
		if s := r.Text(k); s != "" {
			return s
		}
	}
	return ""
}
