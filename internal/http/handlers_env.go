package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ivr/internal/core"
	"ivr/internal/envconfig"
	"ivr/internal/log"
	"ivr/internal/services"
)

type errorBody struct {
	Error   string `json:"error"`
	Detalle string `json:"detalle,omitempty"`
}

// handleEnv returns one section of the environment file.
func (s *Server) handleEnv(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	p := parseParams(r)

	ambiente, _ := p.Raw("ambiente").(string)
	status, body := s.envSection(ctx, ambiente)
	writeJSON(w, status, body)

	reply := &services.Reply{Code: services.StatusCode(status), HTTPStatus: status}
	if e, ok := body.(errorBody); ok {
		reply.Message = e.Error
	}
	s.finishCall(ctx, "env", reply, start)
}

func (s *Server) envSection(ctx context.Context, ambiente string) (int, any) {
	section, err := s.envConfig.Section(ctx, ambiente)
	if err == nil {
		return http.StatusOK, section
	}

	var parseErr *envconfig.ParseError
	switch {
	case errors.Is(err, envconfig.ErrInvalidEnvironment):
		return http.StatusBadRequest, errorBody{Error: `Debe enviar el campo "ambiente" como "desa", "prod" o "calidad".`}
	case errors.Is(err, envconfig.ErrFileNotFound):
		return http.StatusInternalServerError, errorBody{Error: "Archivo de configuración no encontrado."}
	case errors.Is(err, envconfig.ErrSectionNotFound):
		return http.StatusNotFound, errorBody{Error: fmt.Sprintf("No se encontró configuración para '%s'", ambiente)}
	case errors.As(err, &parseErr):
		s.calls.LogError(ctx, "Environment file unreadable", err, log.ComponentEnvConfig, log.OpLookup,
			log.LogFields{log.FieldEnvironment: ambiente})
		return http.StatusInternalServerError, errorBody{Error: "Error al procesar la configuración", Detalle: parseErr.Err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: "Error al procesar la configuración", Detalle: err.Error()}
	}
}

type cleanAccountsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Data is only sent on success, possibly empty.
	Data any `json:"data,omitempty"`
	kept int
}

// handleCleanAccounts keeps the bolívar accounts of a listing sent in
// "data", either as an object or as its JSON text.
func (s *Server) handleCleanAccounts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	p := parseParams(r)

	status, resp := cleanAccounts(p)
	writeJSON(w, status, resp)

	s.finishCall(ctx, "limpiarcuentasbs", &services.Reply{
		Code:       services.StatusCode(status),
		Message:    resp.Message,
		Count:      resp.kept,
		HTTPStatus: status,
	}, start)
}

func cleanAccounts(p params) (int, cleanAccountsResponse) {
	if !p.Truthy("data") {
		return http.StatusBadRequest, cleanAccountsResponse{Message: "Falta el parámetro 'data'"}
	}

	parsed := p.Raw("data")
	if text, ok := parsed.(string); ok {
		var decoded any
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return http.StatusBadRequest, cleanAccountsResponse{Message: "JSON inválido en 'data'"}
		}
		parsed = decoded
	}
	if parsed == nil {
		return http.StatusInternalServerError, cleanAccountsResponse{Message: "Error interno del servidor"}
	}

	list, ok := core.AsRecord(parsed)["data"].([]any)
	if !ok {
		return http.StatusBadRequest, cleanAccountsResponse{Message: "'data.data' debe ser un array"}
	}

	kept := make([]any, 0, len(list))
	for _, item := range list {
		acc, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if core.IsBolivares(core.Record(acc)) {
			kept = append(kept, acc)
		}
	}
	return http.StatusOK, cleanAccountsResponse{
		Success: true,
		Message: "Cuentas filtradas correctamente",
		Data:    kept,
		kept:    len(kept),
	}
}
