package services

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ivr/internal/core"
	"ivr/internal/log"
	"ivr/internal/upstream"
)

// MovementSource answers movement queries for one card.
type MovementSource interface {
	FetchMovements(ctx context.Context, q upstream.MovementQuery) (*upstream.MovementPage, error)
}

// MovementAudio is the outcome of a movement consultation.
type MovementAudio struct {
	Code    int
	Message string
	Read    string
	Count   int
	Info    any
	// Period is the month of the query whose result was used.
	Period  string
	Retried bool
	// Err is set when the consultation failed.
	Err *upstream.TransportError
}

// Reply converts the outcome to the IVR answer.
func (a *MovementAudio) Reply() *Reply {
	return &Reply{
		Code:    StatusCode(a.Code),
		Message: a.Message,
		Read:    a.Read,
		Count:   a.Count,
		Info:    a.Info,
		Retried: a.Retried,
		Period:  a.Period,
	}
}

// MovementService reads the card movements of a month, falling back to the
// previous month when the requested one has none.
type MovementService struct {
	composer *core.Composer
	now      func() time.Time
	logger   *log.Logger
}

// NewMovementService creates the service over a composer.
func NewMovementService(composer *core.Composer) *MovementService {
	return &MovementService{
		composer: composer,
		now:      time.Now,
		logger:   log.WithComponent(log.ComponentMovements),
	}
}

// Consult queries the requested month and, only when it has no movements,
// the previous one. The second answer is used whether it has movements or
// not. At most two calls are made, in sequence.
//
// On a failed call the returned audio describes the failure and the error
// is the transport error.
func (s *MovementService) Consult(ctx context.Context, src MovementSource, q upstream.MovementQuery) (*MovementAudio, error) {
	month, year := q.Period()
	period := month + "/" + year

	first, err := src.FetchMovements(ctx, q)
	if err != nil {
		return s.failed(ctx, err, period, false), err
	}
	if len(first.Movements) > 0 {
		return s.done(ctx, first, period, false), nil
	}

	prev := core.ParsePeriod(month, year, s.now()).Previous()
	retry := q
	retry.Month = prev.MonthString()
	retry.Year = prev.YearString()

	s.logger.InfoContext(ctx, "No movements, querying previous month",
		log.FieldMonth, month,
		log.FieldYear, year,
		log.FieldPeriod, prev.String())

	second, err := src.FetchMovements(ctx, retry)
	if err != nil {
		return s.failed(ctx, err, prev.String(), true), err
	}
	return s.done(ctx, second, prev.String(), true), nil
}

func (s *MovementService) done(ctx context.Context, page *upstream.MovementPage, period string, retried bool) *MovementAudio {
	movs := make([]core.Movement, 0, len(page.Movements))
	for i, r := range page.Movements {
		m := core.MovementFromRecord(r)
		if err := m.Validate(); err != nil {
			s.logger.WarnContext(ctx, "Movement date out of range",
				slog.Int("index", i),
				slog.String(log.FieldPeriod, period),
				slog.String(log.FieldError, err.Error()))
		}
		movs = append(movs, m)
	}
	return &MovementAudio{
		Code:    page.Status,
		Message: page.Message,
		Read:    s.composer.Compose(movs),
		Count:   len(page.Movements),
		Info:    page.Body,
		Period:  period,
		Retried: retried,
	}
}

func (s *MovementService) failed(ctx context.Context, err error, period string, retried bool) *MovementAudio {
	audio := &MovementAudio{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
		Info:    emptyObject(),
		Period:  period,
		Retried: retried,
	}
	if te, ok := upstream.AsTransportError(err); ok {
		audio.Code = te.Code()
		audio.Message = te.Describe("message", "error")
		audio.Info = te.Info()
		audio.Err = te
	}
	s.logger.WarnContext(ctx, "Movement query failed",
		slog.Int(log.FieldStatus, audio.Code),
		slog.String(log.FieldPeriod, period),
		slog.Bool(log.FieldRetried, retried))
	return audio
}
