package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ivr/internal/core"
	"ivr/internal/upstream"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchMovements(ctx context.Context, q upstream.MovementQuery) (*upstream.MovementPage, error) {
	args := m.Called(ctx, q)
	page, _ := args.Get(0).(*upstream.MovementPage)
	return page, args.Error(1)
}

func newTestMovementService() *MovementService {
	s := NewMovementService(core.NewComposer(core.CardMovementTokens()))
	s.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return s
}

func forPeriod(month, year string) any {
	return mock.MatchedBy(func(q upstream.MovementQuery) bool {
		return q.Month == month && q.Year == year && q.Account == "4540" && q.FilterKey == "T"
	})
}

func page(status int, movs ...core.Record) *upstream.MovementPage {
	list := make([]any, len(movs))
	for i, m := range movs {
		list[i] = map[string]any(m)
	}
	return &upstream.MovementPage{
		Status:    status,
		Message:   "Consulta exitosa",
		Body:      map[string]any{"data": map[string]any{"movimientos": list}},
		Movements: movs,
	}
}

func TestConsult_FirstMonthHasMovements(t *testing.T) {
	ts := core.CardMovementTokens()
	src := new(mockSource)
	first := page(http.StatusOK, core.Record{"tipo": "PG", "monto": "10.50", "dia": "1", "mes": "3"})
	src.On("FetchMovements", mock.Anything, forPeriod("03", "2026")).Return(first, nil).Once()

	q := upstream.MovementQuery{Account: "4540", Month: "03", Year: "2026", FilterKey: "T"}
	audio, err := newTestMovementService().Consult(context.Background(), src, q)
	require.NoError(t, err)

	want := strings.Join([]string{
		ts.Intro, ts.Credit, "10", ts.Currency, "50", ts.Cents,
		ts.WithDate, ts.FirstDay, ts.Months[3],
		ts.Repeat, ts.PreviousMenu, ts.Exit,
	}, "&")
	assert.Equal(t, http.StatusOK, audio.Code)
	assert.Equal(t, "Consulta exitosa", audio.Message)
	assert.Equal(t, want, audio.Read)
	assert.Equal(t, 1, audio.Count)
	assert.Equal(t, first.Body, audio.Info)
	assert.False(t, audio.Retried)
	assert.Equal(t, "03/2026", audio.Period)
	src.AssertExpectations(t)
}

func TestConsult_FallsBackToPreviousMonth(t *testing.T) {
	src := new(mockSource)
	src.On("FetchMovements", mock.Anything, forPeriod("01", "2024")).Return(page(http.StatusOK), nil).Once()
	records := []core.Record{
		{"tipo": "CO", "monto": json.Number("250"), "dia": "15", "mes": "12"},
		{"tipo": "PG", "monto": json.Number("3"), "dia": "2", "mes": "12"},
		{"tipo": "CO", "monto": "1200.75", "dia": "31", "mes": "12"},
	}
	second := page(http.StatusOK, records...)
	src.On("FetchMovements", mock.Anything, forPeriod("12", "2023")).Return(second, nil).Once()

	q := upstream.MovementQuery{Account: "4540", Month: "01", Year: "2024", FilterKey: "T"}
	audio, err := newTestMovementService().Consult(context.Background(), src, q)
	require.NoError(t, err)

	movs := make([]core.Movement, len(records))
	for i, r := range records {
		movs[i] = core.MovementFromRecord(r)
	}
	composer := core.NewComposer(core.CardMovementTokens())

	assert.True(t, audio.Retried)
	assert.Equal(t, "12/2023", audio.Period)
	assert.Equal(t, 3, audio.Count)
	assert.Equal(t, second.Body, audio.Info)
	assert.Equal(t, composer.Compose(movs), audio.Read)
	assert.Equal(t, 3, strings.Count(audio.Read, core.CardMovementTokens().WithDate))
	src.AssertExpectations(t)
}

func TestConsult_NumericPeriodFromJSON(t *testing.T) {
	src := new(mockSource)
	src.On("FetchMovements", mock.Anything, mock.MatchedBy(func(q upstream.MovementQuery) bool {
		return q.Month == json.Number("1") && q.Year == json.Number("2024")
	})).Return(page(http.StatusOK), nil).Once()
	src.On("FetchMovements", mock.Anything, forPeriod("12", "2023")).Return(page(http.StatusOK,
		core.Record{"tipo": "PG", "monto": "5", "dia": "1", "mes": "12"},
	), nil).Once()

	q := upstream.MovementQuery{Account: "4540", Month: json.Number("1"), Year: json.Number("2024"), FilterKey: "T"}
	audio, err := newTestMovementService().Consult(context.Background(), src, q)
	require.NoError(t, err)
	assert.Equal(t, "12/2023", audio.Period)
	assert.Equal(t, 1, audio.Count)
	src.AssertExpectations(t)
}

func TestConsult_OutOfRangeDateIsStillRead(t *testing.T) {
	ts := core.CardMovementTokens()
	src := new(mockSource)
	src.On("FetchMovements", mock.Anything, forPeriod("03", "2026")).Return(page(http.StatusOK,
		core.Record{"tipo": "PG", "monto": "1", "dia": "40", "mes": "13"},
	), nil).Once()

	q := upstream.MovementQuery{Account: "4540", Month: "03", Year: "2026", FilterKey: "T"}
	audio, err := newTestMovementService().Consult(context.Background(), src, q)
	require.NoError(t, err)
	assert.Equal(t, 1, audio.Count)
	assert.Contains(t, audio.Read, ts.WithDate)
}

func TestConsult_BothMonthsEmpty(t *testing.T) {
	src := new(mockSource)
	src.On("FetchMovements", mock.Anything, forPeriod("07", "2026")).Return(page(http.StatusOK), nil).Once()
	second := page(http.StatusAccepted)
	second.Message = "Sin movimientos"
	src.On("FetchMovements", mock.Anything, forPeriod("06", "2026")).Return(second, nil).Once()

	q := upstream.MovementQuery{Account: "4540", Month: "07", Year: "2026", FilterKey: "T"}
	audio, err := newTestMovementService().Consult(context.Background(), src, q)
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, audio.Code)
	assert.Equal(t, "Sin movimientos", audio.Message)
	assert.Equal(t, "", audio.Read)
	assert.Equal(t, 0, audio.Count)
	assert.Equal(t, second.Body, audio.Info)
	src.AssertNumberOfCalls(t, "FetchMovements", 2)
}

func TestConsult_NonNumericPeriod(t *testing.T) {
	src := new(mockSource)
	src.On("FetchMovements", mock.Anything, forPeriod("marzo", "x")).Return(page(http.StatusOK), nil).Once()
	src.On("FetchMovements", mock.Anything, forPeriod("12", "2025")).Return(page(http.StatusOK), nil).Once()

	q := upstream.MovementQuery{Account: "4540", Month: "marzo", Year: "x", FilterKey: "T"}
	_, err := newTestMovementService().Consult(context.Background(), src, q)
	require.NoError(t, err)
	src.AssertExpectations(t)
}

func TestConsult_FirstCallFails(t *testing.T) {
	src := new(mockSource)
	te := &upstream.TransportError{
		Status:  http.StatusServiceUnavailable,
		Message: "Request failed with status code 503",
		Body:    map[string]any{"error": "mantenimiento"},
	}
	src.On("FetchMovements", mock.Anything, mock.Anything).Return(nil, te).Once()

	q := upstream.MovementQuery{Account: "4540", Month: "05", Year: "2026", FilterKey: "T"}
	audio, err := newTestMovementService().Consult(context.Background(), src, q)
	require.Error(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, audio.Code)
	assert.Equal(t, "mantenimiento", audio.Message)
	assert.Equal(t, "", audio.Read)
	assert.Equal(t, 0, audio.Count)
	assert.Equal(t, te.Body, audio.Info)
	assert.Same(t, te, audio.Err)
	src.AssertNumberOfCalls(t, "FetchMovements", 1)
}

func TestConsult_SecondCallTimesOut(t *testing.T) {
	src := new(mockSource)
	src.On("FetchMovements", mock.Anything, forPeriod("05", "2026")).Return(page(http.StatusOK), nil).Once()
	te := &upstream.TransportError{Message: "timeout of 15000ms exceeded", Err: upstream.ErrTimeout}
	src.On("FetchMovements", mock.Anything, forPeriod("04", "2026")).Return(nil, te).Once()

	q := upstream.MovementQuery{Account: "4540", Month: "05", Year: "2026", FilterKey: "T"}
	audio, err := newTestMovementService().Consult(context.Background(), src, q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrTimeout))

	assert.Equal(t, http.StatusInternalServerError, audio.Code)
	assert.Equal(t, "timeout of 15000ms exceeded", audio.Message)
	assert.Equal(t, map[string]any{}, audio.Info)
	assert.True(t, audio.Retried)
}

func TestMovementAudio_Reply(t *testing.T) {
	audio := &MovementAudio{Code: 200, Message: "ok", Read: "a&b", Count: 2, Info: map[string]any{}, Retried: true, Period: "04/2026"}
	raw, err := json.Marshal(audio.Reply())
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":200,"message":"ok","read":"a&b","contador":2,"info":{}}`, string(raw))
}
