// Package script runs the formatting scripts that turn an upstream payload
// into the string the IVR reads. A script receives the payload as one JSON
// argument, plus optional extra arguments, and prints its result on stdout.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ivr/internal/log"
)

const (
	// DefaultDir holds the production scripts.
	DefaultDir = "/usr/src/scripts/ivr"

	// DefaultTimeout bounds one script run.
	DefaultTimeout = 20 * time.Second

	// ListingTimeout bounds the scripts of the single-purpose listing endpoints.
	ListingTimeout = 15 * time.Second

	shell = "/bin/bash"

	// waitDelay lets a killed script's children release its output pipes.
	waitDelay = 500 * time.Millisecond
)

// Script names, without directory.
const (
	Accounts         = "recibir_cuentas.sh"
	AccountsV2       = "recibir_cuentasv2.sh"
	AccountMovements = "recibir_cuentasmov.sh"
	DebitAccounts    = "recibir_cuentasdeb.sh"
	CreditAccounts   = "recibir_cuentasacred.sh"
	Cards            = "recibir_tarjetas.sh"
	CardMovements    = "recibir_tarjetastdc_mov.sh"
	CardPayments     = "recibir_tarjetaspagotdc.sh"
)

// Error is a failed run. Its message is what the IVR sees appended to the
// upstream message.
type Error struct {
	Script string
	Msg    string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invocation is one run of a script.
type Invocation struct {
	Script  string
	Payload any
	Args    []string
	// Timeout overrides the runner default when positive.
	Timeout time.Duration
}

// Runner executes scripts from a directory.
type Runner struct {
	dir     string
	timeout time.Duration
	listing time.Duration
	shell   string
}

// NewRunner creates a runner over dir.
func NewRunner(dir string, timeout time.Duration) *Runner {
	if dir == "" {
		dir = DefaultDir
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{dir: dir, timeout: timeout, listing: ListingTimeout, shell: shell}
}

// SetListingTimeout replaces the bound of invocations asking for
// ListingTimeout.
func (r *Runner) SetListingTimeout(d time.Duration) {
	if d > 0 {
		r.listing = d
	}
}

// Path returns the absolute path of a script.
func (r *Runner) Path(name string) string {
	return filepath.Join(r.dir, name)
}

// Run serializes the payload, runs the script and returns its trimmed stdout.
func (r *Runner) Run(ctx context.Context, inv Invocation) (string, error) {
	arg, err := json.Marshal(inv.Payload)
	if err != nil {
		return "", &Error{
			Script: inv.Script,
			Msg:    fmt.Sprintf("No se pudo serializar JSON para el script: %v", err),
			Err:    err,
		}
	}

	timeout := r.timeout
	switch {
	case inv.Timeout == ListingTimeout:
		timeout = r.listing
	case inv.Timeout > 0:
		timeout = inv.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{r.Path(inv.Script), string(arg)}, inv.Args...)
	cmd := exec.CommandContext(ctx, r.shell, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err = cmd.Run()
	if err != nil {
		msg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("timeout after %s", timeout)
		}
		se := &Error{
			Script: inv.Script,
			Msg:    "Script error: " + msg,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
		log.WithComponent(log.ComponentScript).ErrorContext(ctx, "Script failed",
			log.FieldScript, inv.Script,
			log.FieldError, msg,
			"stderr", se.Stderr)
		return "", se
	}

	log.WithComponent(log.ComponentScript).DebugContext(ctx, "Script finished",
		"script", inv.Script,
		"duration", time.Since(start))
	return strings.TrimSpace(stdout.String()), nil
}
