package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ivr/internal/core"
	"ivr/internal/log"
	"ivr/internal/script"
	"ivr/internal/upstream"
)

// ErrMissingOrigin is reported when the origin account of a transfer is
// not among the client's accounts.
var ErrMissingOrigin = errors.New("origin account not found")

// Poster posts a JSON payload to the bank API.
type Poster = upstream.Poster

// ScriptRunner runs a formatting script.
type ScriptRunner interface {
	Run(ctx context.Context, inv script.Invocation) (string, error)
}

// InfoPolicy selects what an account listing reports as info.
type InfoPolicy int

const (
	// InfoNever omits info.
	InfoNever InfoPolicy = iota
	// InfoOnSuccess sets info only when the script succeeded.
	InfoOnSuccess
)

// AccountFlow is one variant of the account listing: which script formats
// it, what the script receives and what the caller gets back.
type AccountFlow struct {
	Action  string
	Script  string
	Timeout time.Duration
	// BolivarsOnly hands the script and the info a copy of the body whose
	// "data" holds only the bolívar accounts.
	BolivarsOnly bool
	Info         InfoPolicy
}

// CardFlow is one variant of the card listing.
type CardFlow struct {
	Action string
	Script string
}

// Account and card flows served by the IVR.
var (
	FlowAccounts       = AccountFlow{Action: "cuentas", Script: script.Accounts, Timeout: script.DefaultTimeout, BolivarsOnly: true, Info: InfoOnSuccess}
	FlowAccountsV2     = AccountFlow{Action: "cuentas_v2", Script: script.AccountsV2, Timeout: script.DefaultTimeout, Info: InfoOnSuccess}
	FlowReadAccounts   = AccountFlow{Action: "recibir-cuentas", Script: script.Accounts, Timeout: script.ListingTimeout, Info: InfoNever}
	FlowReadAccountsV2 = AccountFlow{Action: "recibir-cuentasv2", Script: script.AccountsV2, Timeout: script.ListingTimeout, Info: InfoOnSuccess}

	FlowCards         = CardFlow{Action: "recibir-tarjetas", Script: script.Cards}
	FlowCardMovements = CardFlow{Action: "recibir-tarjetasmov", Script: script.CardMovements}
	FlowCardPayments  = CardFlow{Action: "recibir-tarjetaspagotdc", Script: script.CardPayments}
)

// AccountsRequest lists the accounts of a client.
type AccountsRequest struct {
	Bearer    string
	URL       string
	CedulaRif any
	// Cuenta20 is the origin account of a transfer.
	Cuenta20 string
}

// AccountMovementsRequest lists the movements of one account.
type AccountMovementsRequest struct {
	Bearer   string
	URL      string
	Cuenta12 any
	Moneda   any
	Limite   any
	Paginas  any
}

// CardsRequest lists the cards of a client.
type CardsRequest struct {
	Bearer  string
	URL     string
	Cliente any
}

// AccountService fetches account and card listings from the bank API and
// has them formatted for the IVR by scripts.
type AccountService struct {
	api     Poster
	scripts ScriptRunner
	logger  *log.Logger
}

// NewAccountService creates the service.
func NewAccountService(api Poster, scripts ScriptRunner) *AccountService {
	return &AccountService{
		api:     api,
		scripts: scripts,
		logger:  log.WithComponent(log.ComponentAccounts),
	}
}

// Accounts runs one account listing flow. contador counts the bolívar
// accounts whatever the flow.
func (s *AccountService) Accounts(ctx context.Context, flow AccountFlow, req AccountsRequest) *Reply {
	resp, err := s.api.Post(ctx, req.URL, req.Bearer, map[string]any{"cedularif": req.CedulaRif})
	if err != nil {
		te := asTransportError(err)
		return &Reply{Code: StatusCode(te.Code()), Message: te.Describe("message", "error")}
	}

	body := resp.Record()
	accounts, _ := core.AccountList(body)
	bs := core.BolivarAccounts(accounts)

	var forScript any = resp.Body
	if flow.BolivarsOnly {
		forScript = map[string]any(core.WithAccounts(body, bs, false))
	}

	reply := &Reply{Code: StatusCode(resp.Status), Message: resp.Message, Count: len(bs)}
	out, err := s.run(ctx, flow.Action, script.Invocation{Script: flow.Script, Payload: forScript, Timeout: flow.Timeout})
	if err != nil {
		reply.Message = scriptFailure(resp.Message, err)
		return reply
	}
	reply.Read = out
	if flow.Info == InfoOnSuccess {
		reply.Info = forScript
	}
	return reply
}

// DebitAccounts lists the bolívar accounts that can be debited, keeping the
// nesting of the upstream body.
func (s *AccountService) DebitAccounts(ctx context.Context, req AccountsRequest) *Reply {
	resp, err := s.api.Post(ctx, req.URL, req.Bearer, map[string]any{"cedularif": req.CedulaRif})
	if err != nil {
		te := asTransportError(err)
		return &Reply{Code: StatusCode(te.Code()), Message: te.Describe("message", "error"), Info: emptyList()}
	}

	body := resp.Record()
	accounts, nested := core.AccountList(body)
	valid := core.DebitAccounts(accounts)
	info := map[string]any(core.WithAccounts(body, valid, nested))

	reply := &Reply{Code: StatusCode(resp.Status), Message: resp.Message, Count: len(valid), Info: info}
	out, err := s.run(ctx, "cuentasdeb", script.Invocation{Script: script.DebitAccounts, Payload: info})
	if err != nil {
		reply.Message = scriptFailure(resp.Message, err)
		return reply
	}
	reply.Read = out
	return reply
}

// CreditAccounts lists the bolívar accounts a transfer from the account
// req.Cuenta20 can be credited to. The script receives the raw body and
// the origin's 12-digit number and filters on its own.
func (s *AccountService) CreditAccounts(ctx context.Context, req AccountsRequest) *Reply {
	resp, err := s.api.Post(ctx, req.URL, req.Bearer, map[string]any{"cedularif": req.CedulaRif})
	if err != nil {
		te := asTransportError(err)
		return &Reply{Code: StatusCode(te.Code()), Message: te.Describe("message", "error"), Info: emptyList()}
	}

	body := resp.Record()
	accounts, _ := core.AccountList(body)
	origin12, ok := core.FindAccount12(accounts, req.Cuenta20)
	if !ok {
		s.logger.WarnContext(ctx, "Origin account not found", log.FieldError, ErrMissingOrigin)
		return &Reply{
			Code:    StatusCode(http.StatusNotFound),
			Message: "No se encontró la cuenta origen con cuenta20=" + req.Cuenta20,
			Info:    emptyList(),
		}
	}

	dest := core.CreditDestinations(accounts, origin12)
	info := map[string]any(core.WithAccounts(body, dest, false))

	reply := &Reply{Code: StatusCode(resp.Status), Message: resp.Message, Count: len(dest), Info: info}
	out, err := s.run(ctx, "cuentasacred", script.Invocation{
		Script:  script.CreditAccounts,
		Payload: resp.Body,
		Args:    []string{origin12},
	})
	if err != nil {
		reply.Message = scriptFailure(resp.Message, err)
		return reply
	}
	reply.Read = out
	return reply
}

// AccountMovements lists the movements of an account with the code and
// message of the bank API passed through as text. The raw body goes to the
// script and back as info.
func (s *AccountService) AccountMovements(ctx context.Context, req AccountMovementsRequest) *Reply {
	resp, err := s.api.Post(ctx, req.URL, req.Bearer, movementsPayload(req))
	if err != nil {
		te := asTransportError(err)
		return &Reply{
			Code:    TextCode(fmt.Sprint(te.Code())),
			Message: te.Describe("message", "msg", "error"),
			Info:    te.Info(),
		}
	}

	body := resp.Record()
	code := TextCode(fmt.Sprint(resp.Status))
	if raw, ok := body["code"]; ok && raw != nil {
		code = TextCode(RawCode(raw).String())
	}
	movs, _ := core.MovementRecords(body)

	reply := &Reply{Code: code, Message: resp.Message, Count: len(movs), Info: resp.Body}
	out, err := s.run(ctx, "cuentasmov", script.Invocation{Script: script.AccountMovements, Payload: resp.Body})
	if err != nil {
		reply.Message = scriptFailure(resp.Message, err)
		return reply
	}
	reply.Read = out
	return reply
}

// ReadAccountMovements lists the movements of an account for reading. Only
// bolívar accounts are read: for any other currency the movements are
// emptied before the script runs. The business code of the bank API is
// passed through with its JSON type.
func (s *AccountService) ReadAccountMovements(ctx context.Context, req AccountMovementsRequest) *Reply {
	resp, err := s.api.Post(ctx, req.URL, req.Bearer, movementsPayload(req))
	if err != nil {
		te := asTransportError(err)
		code := TextCode(fmt.Sprint(te.Code()))
		if raw, ok := te.BodyRecord()["code"]; ok && raw != nil {
			code = RawCode(raw)
		}
		return &Reply{Code: code, Message: te.Describe("message", "error")}
	}

	body := resp.Record()
	code := TextCode(fmt.Sprint(resp.Status))
	if raw, ok := body["code"]; ok && raw != nil {
		code = RawCode(raw)
	}

	filtered := body.Clone()
	data := body.Object("data").Clone()
	if !isBolivares(req.Moneda) {
		data["movimientos"] = emptyList()
		data["registros"] = 0
	}
	filtered["data"] = map[string]any(data)

	movs, _ := core.MovementRecords(filtered)
	reply := &Reply{Code: code, Message: resp.Message, Count: len(movs)}
	out, err := s.run(ctx, "recibir-cuentasmov", script.Invocation{
		Script:  script.AccountMovements,
		Payload: map[string]any(filtered),
	})
	if err != nil {
		reply.Message = scriptFailure(resp.Message, err)
		return reply
	}
	reply.Read = out
	return reply
}

// Cards lists the active cards of a client. With no active card the script
// is not run.
func (s *AccountService) Cards(ctx context.Context, flow CardFlow, req CardsRequest) *Reply {
	resp, err := s.api.Post(ctx, req.URL, req.Bearer, map[string]any{"cliente": req.Cliente})
	if err != nil {
		te := asTransportError(err)
		return &Reply{Code: StatusCode(te.Code()), Message: te.Describe("message", "error"), Info: emptyList()}
	}

	active := core.ActiveCards(resp.Record())
	list := make([]any, len(active))
	for i, c := range active {
		list[i] = map[string]any(c)
	}

	reply := &Reply{Code: StatusCode(resp.Status), Message: resp.Message, Count: len(active), Info: list}
	if len(active) == 0 {
		return reply
	}

	out, err := s.run(ctx, flow.Action, script.Invocation{
		Script:  flow.Script,
		Payload: map[string]any{"data": map[string]any{"tarjetas": list}},
		Timeout: script.ListingTimeout,
	})
	if err != nil {
		reply.Message = scriptFailure(resp.Message, err)
		return reply
	}
	reply.Read = out
	return reply
}

func (s *AccountService) run(ctx context.Context, action string, inv script.Invocation) (string, error) {
	out, err := s.scripts.Run(ctx, inv)
	if err != nil {
		s.logger.ErrorContext(ctx, "Script failed",
			log.FieldAction, action,
			log.FieldScript, inv.Script,
			log.FieldError, err)
	}
	return out, err
}

func movementsPayload(req AccountMovementsRequest) map[string]any {
	return map[string]any{
		"cuenta12": req.Cuenta12,
		"moneda":   req.Moneda,
		"limite":   req.Limite,
		"paginas":  req.Paginas,
	}
}

func isBolivares(moneda any) bool {
	text := core.Record{"moneda": moneda}.Text("moneda")
	return strings.ToUpper(strings.TrimSpace(text)) == core.CurrencyBolivares
}

// scriptFailure appends the script error to the upstream message.
func scriptFailure(upstreamMessage string, err error) string {
	msg := err.Error()
	var se *script.Error
	if errors.As(err, &se) {
		msg = se.Msg
	}
	return fmt.Sprintf("%s (%s)", upstreamMessage, msg)
}

func asTransportError(err error) *upstream.TransportError {
	if te, ok := upstream.AsTransportError(err); ok {
		return te
	}
	return &upstream.TransportError{Message: err.Error(), Err: err}
}
