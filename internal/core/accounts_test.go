package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecord(t *testing.T, raw string) Record {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var r Record
	require.NoError(t, dec.Decode(&r))
	return r
}

func TestAccountList(t *testing.T) {
	flat := decodeRecord(t, `{"data":[{"moneda":"BS"},{"moneda":"USD"}]}`)
	list, nested := AccountList(flat)
	assert.Len(t, list, 2)
	assert.False(t, nested)

	deep := decodeRecord(t, `{"data":{"data":[{"moneda":"BS"}],"total":1}}`)
	list, nested = AccountList(deep)
	assert.Len(t, list, 1)
	assert.True(t, nested)

	none := decodeRecord(t, `{"message":"ok"}`)
	list, _ = AccountList(none)
	assert.Empty(t, list)
}

func TestWithAccounts_PreservesNesting(t *testing.T) {
	deep := decodeRecord(t, `{"code":"00","data":{"data":[{"moneda":"BS"},{"moneda":"USD"}],"total":2}}`)
	list, nested := AccountList(deep)

	out := WithAccounts(deep, BolivarAccounts(list), nested)
	inner := out.Object("data")
	require.NotNil(t, inner)
	assert.Len(t, inner["data"], 1)
	assert.Equal(t, json.Number("2"), inner["total"])
	assert.Equal(t, "00", out.Text("code"))

	orig, _ := AccountList(deep)
	assert.Len(t, orig, 2, "input must not be mutated")
}

func TestDebitAccounts(t *testing.T) {
	body := decodeRecord(t, `{"data":[
		{"cuenta12":"1","moneda":"BS","estatus":"A"},
		{"cuenta12":"2","moneda":"bs","estatus":"o"},
		{"cuenta12":"3","moneda":"BS","estatus":"T"},
		{"cuenta12":"4","moneda":"USD","estatus":"A"},
		{"cuenta12":"5","moneda":"BS"}
	]}`)
	list, _ := AccountList(body)

	got := DebitAccounts(list)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Text("cuenta12"))
	assert.Equal(t, "5", got[1].Text("cuenta12"))
}

func TestCreditDestinations(t *testing.T) {
	body := decodeRecord(t, `{"data":[
		{"cuenta12":"111","cuenta20":"0102111","moneda":"BS"},
		{"cuenta12":"222","cuenta20":"0102222","moneda":"BS"},
		{"cuenta12":"333","cuenta20":"0102333","moneda":"USD"}
	]}`)
	list, _ := AccountList(body)

	origin, ok := FindAccount12(list, "0102111")
	require.True(t, ok)
	assert.Equal(t, "111", origin)

	got := CreditDestinations(list, origin)
	require.Len(t, got, 1)
	assert.Equal(t, "222", got[0].Text("cuenta12"))

	_, ok = FindAccount12(list, "999")
	assert.False(t, ok)
}

func TestActiveCards(t *testing.T) {
	body := decodeRecord(t, `{"data":{"tarjetas":[
		{"numero":"A","estatusTarjeta":"1"},
		{"numero":"B","estatusTarjeta":1},
		{"numero":"C","estatusTarjeta":"2"},
		null
	]}}`)
	got := ActiveCards(body)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Text("numero"))
	assert.Equal(t, "B", got[1].Text("numero"))

	assert.Empty(t, ActiveCards(decodeRecord(t, `{"data":{}}`)))
	assert.Empty(t, ActiveCards(decodeRecord(t, `{}`)))
}

func TestMovementFromRecord(t *testing.T) {
	body := decodeRecord(t, `{"data":{"movimientos":[
		{"tipo":"PG","monto":"1234.56","dia":"01","mes":"03"},
		{"tipo":"CO","monto":17.5,"dia":9,"mes":12},
		{"tipo":null,"monto":"n/a","dia":"x"}
	]}}`)
	recs, ok := MovementRecords(body)
	require.True(t, ok)
	require.Len(t, recs, 3)

	m := MovementFromRecord(recs[0])
	assert.True(t, m.IsCredit())
	assert.Equal(t, NumberSplit{"1234", "56"}, m.Split())
	assert.Equal(t, 1, m.Day)
	assert.Equal(t, 3, m.Month)

	m = MovementFromRecord(recs[1])
	assert.False(t, m.IsCredit())
	assert.Equal(t, NumberSplit{"17", "50"}, m.Split())
	assert.Equal(t, 9, m.Day)

	m = MovementFromRecord(recs[2])
	assert.Equal(t, "", m.Type)
	assert.Equal(t, NumberSplit{"0", "00"}, m.Split())
	assert.Equal(t, 0, m.Day)
	assert.Equal(t, 0, m.Month)
}
