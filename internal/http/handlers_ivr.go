package http

import (
	"context"
	"fmt"
	"net/http"

	"ivr/internal/log"
	"ivr/internal/services"
	"ivr/internal/upstream"
)

var (
	accountParams   = []string{"bearer", "cedularif", "url"}
	transferParams  = []string{"bearer", "cedularif", "url", "cuenta20"}
	movementParams  = []string{"bearer", "mes", "anho", "cuenta", "url"}
	cardParams      = []string{"bearer", "cliente", "url"}
	accountMovTruth = []string{"cuenta12", "moneda", "bearer", "url"}
)

// handleConsultMovements reads the card movements of a month, falling back
// to the previous month when the first has none.
func (s *Server) handleConsultMovements(w http.ResponseWriter, r *http.Request) {
	p := parseParams(r)
	s.serveCall(w, r, "consultamovtdc", func(ctx context.Context) *services.Reply {
		if len(p.missing(movementParams, "tipoMovimiento")) > 0 {
			return services.BadRequest("Parámetros requeridos: bearer, mes, anho, cuenta, tipoMovimiento, url", map[string]any{})
		}

		api := upstream.NewMovementsAPI(s.upstream, p.Text("url"), p.Text("bearer"))
		audio, err := s.movements.Consult(ctx, api, upstream.MovementQuery{
			Account:   p.Raw("cuenta"),
			Month:     p.Raw("mes"),
			Year:      p.Raw("anho"),
			FilterKey: p.Raw("tipoMovimiento"),
		})
		if err != nil && audio == nil {
			return services.Unexpected(err)
		}
		if err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Movement query failed",
				log.FieldOperation, log.OpConsult,
				log.FieldAction, "consultamovtdc",
				log.FieldError, err)
		}
		return audio.Reply()
	})
}

// handleReceive dispatches the unified endpoint on "accion".
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	p := parseParams(r)
	action := p.Text("accion")
	if !p.Truthy("accion") {
		action = "recibir"
	}

	s.serveCall(w, r, action, func(ctx context.Context) *services.Reply {
		if !p.Truthy("accion") {
			return services.BadRequest(`Parámetro "accion" es requerido`, nil)
		}

		switch action {
		case "cuentas", "cuentas_v2":
			if len(p.missing(accountParams)) > 0 {
				return services.BadRequest("Faltan: bearer, cedularif, url", nil)
			}
			flow := services.FlowAccounts
			if action == "cuentas_v2" {
				flow = services.FlowAccountsV2
			}
			return s.accounts.Accounts(ctx, flow, accountsRequest(p))

		case "cuentasmov":
			if len(p.missing(accountMovTruth, "limite", "paginas")) > 0 {
				return services.BadRequest("Faltan: cuenta12, moneda, limite, paginas, bearer, url", nil)
			}
			return s.accounts.AccountMovements(ctx, accountMovementsRequest(p))

		case "cuentasdeb":
			if len(p.missing(accountParams)) > 0 {
				return services.BadRequest("Faltan: bearer, cedularif, url", []any{})
			}
			return s.accounts.DebitAccounts(ctx, accountsRequest(p))

		case "cuentasacred":
			if len(p.missing(transferParams)) > 0 {
				return services.BadRequest("Faltan: bearer, cedularif, url, cuenta20", []any{})
			}
			return s.accounts.CreditAccounts(ctx, accountsRequest(p))

		default:
			return services.BadRequest(fmt.Sprintf("Acción no soportada: %s", action), nil)
		}
	})
}

// handleReadAccounts serves one of the single-purpose account listings.
func (s *Server) handleReadAccounts(flow services.AccountFlow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := parseParams(r)
		s.serveCall(w, r, flow.Action, func(ctx context.Context) *services.Reply {
			if len(p.missing(accountParams)) > 0 {
				return services.BadRequest("Parámetros requeridos: bearer, cedularif, url", nil)
			}
			return s.accounts.Accounts(ctx, flow, accountsRequest(p))
		})
	}
}

func (s *Server) handleReadAccountMovements(w http.ResponseWriter, r *http.Request) {
	p := parseParams(r)
	s.serveCall(w, r, "recibir-cuentasmov", func(ctx context.Context) *services.Reply {
		if len(p.missing(accountMovTruth, "limite", "paginas")) > 0 {
			return services.BadRequest("Parámetros requeridos: cuenta12, moneda, limite, paginas, bearer, url", nil)
		}
		return s.accounts.ReadAccountMovements(ctx, accountMovementsRequest(p))
	})
}

// handleCards serves one of the card listings.
func (s *Server) handleCards(flow services.CardFlow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := parseParams(r)
		s.serveCall(w, r, flow.Action, func(ctx context.Context) *services.Reply {
			if len(p.missing(cardParams)) > 0 {
				return services.BadRequest("Parámetros requeridos: bearer, cliente, url", []any{})
			}
			return s.accounts.Cards(ctx, flow, services.CardsRequest{
				Bearer:  p.Text("bearer"),
				URL:     p.Text("url"),
				Cliente: p.Raw("cliente"),
			})
		})
	}
}

func accountsRequest(p params) services.AccountsRequest {
	return services.AccountsRequest{
		Bearer:    p.Text("bearer"),
		URL:       p.Text("url"),
		CedulaRif: p.Raw("cedularif"),
		Cuenta20:  p.Text("cuenta20"),
	}
}

func accountMovementsRequest(p params) services.AccountMovementsRequest {
	return services.AccountMovementsRequest{
		Bearer:   p.Text("bearer"),
		URL:      p.Text("url"),
		Cuenta12: p.Raw("cuenta12"),
		Moneda:   p.Raw("moneda"),
		Limite:   p.Raw("limite"),
		Paginas:  p.Raw("paginas"),
	}
}
