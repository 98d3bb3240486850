package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(Options{Timeout: 2 * time.Second})
}

func TestClientPost_Success(t *testing.T) {
	var gotAuth, gotType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Consulta exitosa","data":{"total":12}}`))
	}))
	defer server.Close()

	resp, err := newTestClient().Post(context.Background(), server.URL, "tok", map[string]any{"cedularif": "V123"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "V123", gotBody["cedularif"])
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Consulta exitosa", resp.Message)
	assert.Equal(t, json.Number("12"), resp.Record().Object("data")["total"])
}

func TestClientPost_MessageFallbacks(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"msg field", `{"msg":"ok"}`, "ok"},
		{"no message", `{"data":[]}`, "HTTP 200"},
		{"empty body", ``, "HTTP 200"},
		{"text body", `plain`, "HTTP 200"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			resp, err := newTestClient().Post(context.Background(), server.URL, "tok", map[string]any{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Message)
		})
	}
}

func TestClientPost_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token vencido"}`))
	}))
	defer server.Close()

	_, err := newTestClient().Post(context.Background(), server.URL, "tok", map[string]any{})
	require.Error(t, err)

	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, te.Status)
	assert.Equal(t, http.StatusUnauthorized, te.Code())
	assert.Equal(t, "token vencido", te.Message)
	assert.Equal(t, "token vencido", te.Describe("message", "error"))
	assert.Equal(t, map[string]any{"error": "token vencido"}, te.Info())
	assert.True(t, errors.Is(err, ErrStatus))
}

func TestClientPost_ServerErrorKeepsBody(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"mantenimiento","code":"96"}`))
	}))
	defer server.Close()

	_, err := newTestClient().Post(context.Background(), server.URL, "tok", map[string]any{})
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, te.Status)
	assert.Equal(t, "mantenimiento", te.Message)
	assert.Equal(t, "96", te.BodyRecord().Text("code"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retry by default")
}

func TestClientPost_StatusWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient().Post(context.Background(), server.URL, "tok", map[string]any{})
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, "Request failed with status code 404", te.Message)
	assert.Equal(t, map[string]any{}, te.Info())
}

func TestClientPost_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Options{Timeout: 50 * time.Millisecond})
	_, err := client.Post(context.Background(), server.URL, "tok", map[string]any{})

	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, 0, te.Status)
	assert.Equal(t, http.StatusInternalServerError, te.Code())
	assert.Equal(t, "timeout of 50ms exceeded", te.Message)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestClientPost_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	_, err := newTestClient().Post(context.Background(), endpoint, "tok", map[string]any{})
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, te.Code())
	assert.NotEmpty(t, te.Message)
	assert.Equal(t, te.Message, te.Describe("message", "error"))
}

func TestClientPost_RetriesWhenConfigured(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(Options{
		Timeout:      time.Second,
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	resp, err := client.Post(context.Background(), server.URL, "tok", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMovementsAPI_FetchMovements(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":"ok","data":{"movimientos":[{"tipo":"PG","monto":"10.50","dia":"1","mes":"3"}]}}`))
	}))
	defer server.Close()

	api := NewMovementsAPI(newTestClient(), server.URL, "tok")
	page, err := api.FetchMovements(context.Background(), MovementQuery{
		Account: "4111", Month: "03", Year: "2025", FilterKey: "T",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"mes": "03", "anho": "2025", "cuenta": "4111", "tipoMovimiento": "T"}, got)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.Equal(t, "ok", page.Message)
	require.Len(t, page.Movements, 1)
	assert.Equal(t, "PG", page.Movements[0].Text("tipo"))
}

func TestMovementsAPI_ForwardsRawValues(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		require.NoError(t, dec.Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"movimientos":[]}}`))
	}))
	defer server.Close()

	_, err := NewMovementsAPI(newTestClient(), server.URL, "tok").FetchMovements(context.Background(), MovementQuery{
		Account: json.Number("4111"), Month: json.Number("3"), Year: json.Number("2025"), FilterKey: nil,
	})
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), got["mes"])
	assert.Equal(t, json.Number("2025"), got["anho"])
	assert.Equal(t, json.Number("4111"), got["cuenta"])
	assert.Contains(t, got, "tipoMovimiento")
	assert.Nil(t, got["tipoMovimiento"])
}

func TestMovementsAPI_NeverRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Options{
		Timeout:      time.Second,
		RetryMax:     3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	_, err := NewMovementsAPI(client, server.URL, "tok").FetchMovements(context.Background(), MovementQuery{Month: "03", Year: "2025"})
	te, ok := AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, te.Code())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMovementQuery_Period(t *testing.T) {
	month, year := MovementQuery{Month: json.Number("1"), Year: json.Number("2024")}.Period()
	assert.Equal(t, "1", month)
	assert.Equal(t, "2024", year)

	month, year = MovementQuery{}.Period()
	assert.Empty(t, month)
	assert.Empty(t, year)
}

func TestMovementsAPI_NoMovementsArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	page, err := NewMovementsAPI(newTestClient(), server.URL, "tok").FetchMovements(context.Background(), MovementQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Movements)
}
