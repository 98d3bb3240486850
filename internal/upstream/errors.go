package upstream

import (
	"errors"
	"fmt"
	"net/http"

	"ivr/internal/core"
)

// DefaultFailureMessage is reported when a failure carries no description at all.
const DefaultFailureMessage = "Error en conexión al upstream"

var (
	// ErrTimeout is returned when the bank API does not answer in time.
	ErrTimeout = errors.New("upstream timeout")

	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("upstream status")
)

// TransportError is a failed call to the bank API: a network failure, a
// timeout, or a non-2xx status. Status is zero when no response arrived.
type TransportError struct {
	Status  int
	Message string
	Body    any
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream: %s", e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Code is the status reported to the IVR: the upstream status, or 500 when
// the call never got a response.
func (e *TransportError) Code() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// BodyRecord returns the error body when it is a JSON object.
func (e *TransportError) BodyRecord() core.Record {
	return core.AsRecord(e.Body)
}

// Describe picks the first non-empty field of the error body among keys,
// falling back to the transport message.
func (e *TransportError) Describe(keys ...string) string {
	if msg := e.BodyRecord().FirstText(keys...); msg != "" {
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return DefaultFailureMessage
}

// Info is the body reported back to the IVR for a failed call; calls that
// got no body report an empty object.
func (e *TransportError) Info() any {
	if e.Body == nil {
		return map[string]any{}
	}
	return e.Body
}

// AsTransportError unwraps err into a TransportError.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
