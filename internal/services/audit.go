package services

import (
	"context"
	"sync"
	"time"

	"ivr/internal/amqp"
	"ivr/internal/log"
)

// AuditPublisher sends call audit messages to the broker.
type AuditPublisher interface {
	PublishCallAudit(ctx context.Context, msg *amqp.CallAuditMessage) error
}

// Call describes one finished IVR operation.
type Call struct {
	Action    string
	RequestID string
	Reply     *Reply
	Duration  time.Duration
}

// Auditor publishes one audit message per IVR operation. Publishing never
// delays nor fails the operation it describes.
type Auditor struct {
	publisher AuditPublisher
	timeout   time.Duration
	logger    *log.Logger
	wg        sync.WaitGroup
}

// NewAuditor creates an auditor. A nil publisher disables auditing.
func NewAuditor(publisher AuditPublisher) *Auditor {
	return &Auditor{
		publisher: publisher,
		timeout:   5 * time.Second,
		logger:    log.WithComponent(log.ComponentAudit),
	}
}

// Enabled reports whether calls are published.
func (a *Auditor) Enabled() bool {
	return a != nil && a.publisher != nil
}

// Message builds the audit message of a call.
func (a *Auditor) Message(call Call) *amqp.CallAuditMessage {
	msg := amqp.NewCallAuditMessage(call.Action)
	msg.RequestID = call.RequestID
	msg.DurationMs = call.Duration.Milliseconds()
	if r := call.Reply; r != nil {
		msg.Code = r.Code.String()
		msg.Message = r.Message
		msg.Count = r.Count
		msg.Retried = r.Retried
		msg.Period = r.Period
	}
	return msg
}

// Record publishes the call in the background.
func (a *Auditor) Record(ctx context.Context, call Call) {
	if !a.Enabled() {
		return
	}
	msg := a.Message(call)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.publisher.PublishCallAudit(pubCtx, msg); err != nil {
			a.logger.WarnContext(pubCtx, "Failed to publish call audit",
				log.FieldOperation, log.OpPublish,
				log.FieldAction, msg.Action,
				log.FieldError, err)
		}
	}()
}

// Wait blocks until pending publications finish.
func (a *Auditor) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
