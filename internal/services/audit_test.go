package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ivr/internal/amqp"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCallAudit(ctx context.Context, msg *amqp.CallAuditMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func TestAuditor_Record(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishCallAudit", mock.Anything, mock.MatchedBy(func(msg *amqp.CallAuditMessage) bool {
		return msg.Action == "consultamovtdc" && msg.Code == "200" && msg.Count == 3 &&
			msg.Retried && msg.Period == "09/2026" && msg.RequestID == "req-1" && msg.DurationMs == 120
	})).Return(nil).Once()

	a := NewAuditor(pub)
	ctx, cancel := context.WithCancel(context.Background())
	a.Record(ctx, Call{
		Action:    "consultamovtdc",
		RequestID: "req-1",
		Duration:  120 * time.Millisecond,
		Reply:     &Reply{Code: StatusCode(200), Count: 3, Retried: true, Period: "09/2026"},
	})
	// The request may end before the message is out.
	cancel()
	a.Wait()

	pub.AssertExpectations(t)
}

func TestAuditor_PublishErrorIsSwallowed(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishCallAudit", mock.Anything, mock.Anything).Return(errors.New("circuit breaker is open"))

	a := NewAuditor(pub)
	a.Record(context.Background(), Call{Action: "env", Reply: BadRequest("x", nil)})
	a.Wait()

	pub.AssertNumberOfCalls(t, "PublishCallAudit", 1)
}

func TestAuditor_Disabled(t *testing.T) {
	a := NewAuditor(nil)
	assert.False(t, a.Enabled())
	a.Record(context.Background(), Call{Action: "env"})
	a.Wait()

	var nilAuditor *Auditor
	assert.False(t, nilAuditor.Enabled())
	nilAuditor.Wait()
}

func TestCode(t *testing.T) {
	assert.Equal(t, "404", StatusCode(404).String())
	assert.Equal(t, "0000", TextCode("0000").String())
	assert.Equal(t, "", Code{}.String())

	raw, err := RawCode(nil).MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}
