package services

import (
	"encoding/json"
	"net/http"

	"ivr/internal/core"
)

// Code is the "code" field of an IVR reply. Depending on the endpoint it is
// the HTTP status as a number, the status as text, or the business code of
// the bank API passed through with its original JSON type.
type Code struct {
	raw any
}

// StatusCode is a numeric code.
func StatusCode(n int) Code {
	return Code{raw: n}
}

// TextCode is a code rendered as a JSON string.
func TextCode(s string) Code {
	return Code{raw: s}
}

// RawCode passes an upstream value through unchanged.
func RawCode(v any) Code {
	return Code{raw: v}
}

func (c Code) MarshalJSON() ([]byte, error) {
	if c.raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c.raw)
}

func (c *Code) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c.raw = v
	return nil
}

// String returns the code as text, as stored in the call audit.
func (c Code) String() string {
	return core.Record{"code": c.raw}.Text("code")
}

// Reply is the answer every IVR operation returns.
type Reply struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Read    string `json:"read"`
	Count   int    `json:"contador"`
	// Info is omitted when nil; an empty list or object is still sent.
	Info any `json:"info,omitempty"`

	// HTTPStatus is the status of the HTTP answer itself; upstream and
	// script outcomes are always reported with 200.
	HTTPStatus int `json:"-"`

	// Audit metadata.
	Retried bool   `json:"-"`
	Period  string `json:"-"`
}

// Status returns HTTPStatus, defaulting to 200.
func (r *Reply) Status() int {
	if r.HTTPStatus == 0 {
		return http.StatusOK
	}
	return r.HTTPStatus
}

// BadRequest is the reply to a call missing required parameters.
func BadRequest(message string, info any) *Reply {
	return &Reply{
		Code:       StatusCode(http.StatusBadRequest),
		Message:    message,
		Info:       info,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Unexpected is the reply to an internal failure.
func Unexpected(err error) *Reply {
	return &Reply{
		Code:       StatusCode(http.StatusInternalServerError),
		Message:    "Error inesperado: " + err.Error(),
		HTTPStatus: http.StatusInternalServerError,
	}
}

// emptyList and emptyObject are the literal empty info values.
func emptyList() []any {
	return []any{}
}

func emptyObject() map[string]any {
	return map[string]any{}
}
