package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{nil, false},
		{"", false},
		{"0", true},
		{false, false},
		{true, true},
		{json.Number("0"), false},
		{json.Number("0.0"), false},
		{json.Number("12"), true},
		{float64(0), false},
		{[]any{}, true},
		{map[string]any{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truthy(tt.value), "%#v", tt.value)
	}
}

func TestParseParams(t *testing.T) {
	parse := func(body string) params {
		return parseParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	}

	p := parse(`{"cuenta":4540,"limite":0,"paginas":null,"bearer":""}`)
	assert.Equal(t, "4540", p.Text("cuenta"))
	assert.Equal(t, json.Number("4540"), p.Raw("cuenta"))
	assert.True(t, p.Present("paginas"))
	assert.False(t, p.Truthy("paginas"))
	assert.Equal(t, []string{"bearer", "url", "moneda"}, p.missing([]string{"cuenta", "bearer", "url"}, "limite", "paginas", "moneda"))

	for _, body := range []string{``, `   `, `[1,2]`, `"text"`, `{broken`, `null`} {
		p := parse(body)
		assert.NotNil(t, p.Record, body)
		assert.Empty(t, p.Record, body)
	}
}
