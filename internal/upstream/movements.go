package upstream

import (
	"context"

	"ivr/internal/core"
)

// MovementQuery selects the movements of one card for one month. Every
// field is forwarded verbatim, so a numeric "anho" stays a number.
type MovementQuery struct {
	Account   any
	Month     any
	Year      any
	FilterKey any
}

// Period reads the month and year of the query as text.
func (q MovementQuery) Period() (month, year string) {
	return core.TextOf(q.Month), core.TextOf(q.Year)
}

// MovementPage is one answer of the movements endpoint.
type MovementPage struct {
	Status    int
	Message   string
	Body      any
	Movements []core.Record
}

// Poster posts a JSON payload with a bearer token; *Client implements it.
type Poster interface {
	Post(ctx context.Context, endpoint, bearer string, payload any) (*Response, error)
}

// MovementsAPI is the card movements endpoint bound to one caller's URL and
// token.
type MovementsAPI struct {
	client Poster
	url    string
	bearer string
}

// NewMovementsAPI binds the client to an endpoint and token.
func NewMovementsAPI(client Poster, url, bearer string) *MovementsAPI {
	return &MovementsAPI{client: client, url: url, bearer: bearer}
}

// FetchMovements posts the query and extracts "data.movimientos". The call
// is made once: a failed query is reported, never repeated.
func (a *MovementsAPI) FetchMovements(ctx context.Context, q MovementQuery) (*MovementPage, error) {
	ctx = SingleAttempt(ctx)
	payload := map[string]any{
		"mes":            q.Month,
		"anho":           q.Year,
		"cuenta":         q.Account,
		"tipoMovimiento": q.FilterKey,
	}
	resp, err := a.client.Post(ctx, a.url, a.bearer, payload)
	if err != nil {
		return nil, err
	}
	movs, _ := core.MovementRecords(resp.Record())
	return &MovementPage{
		Status:    resp.Status,
		Message:   resp.Message,
		Body:      resp.Body,
		Movements: movs,
	}, nil
}
