// Package http serves the IVR endpoints.
//
// This file reads request bodies. The IVR sends loosely typed JSON: a field
// may arrive as a string or a number, and a required field counts as missing
// when it is absent, null, false, zero or the empty string.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"ivr/internal/core"
)

const maxBodySize = 1 << 20

// params is a decoded request body.
type params struct {
	core.Record
}

// parseParams decodes the JSON object body of r. A body that is not a JSON
// object yields no parameters.
func parseParams(r *http.Request) params {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		return params{Record: core.Record{}}
	}
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return params{Record: core.Record{}}
	}
	return params{Record: core.Record(obj)}
}

// Present reports whether key was sent, null included.
func (p params) Present(key string) bool {
	_, ok := p.Record[key]
	return ok
}

// Truthy reports whether key holds a usable value.
func (p params) Truthy(key string) bool {
	return truthy(p.Record[key])
}

// Raw returns the value as sent.
func (p params) Raw(key string) any {
	return p.Record[key]
}

// missing returns the keys among required that are not truthy and the keys
// among present that were not sent.
func (p params) missing(required []string, present ...string) []string {
	var out []string
	for _, k := range required {
		if !p.Truthy(k) {
			out = append(out, k)
		}
	}
	for _, k := range present {
		if !p.Present(k) {
			out = append(out, k)
		}
	}
	return out
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	default:
		return true
	}
}
