// Package audit records security-relevant auth outcomes.  Every event
// goes to the structured log; when a broker is reachable, events are
// additionally published to the auth.audit queue where the background
// consumer appends them to logs/audit.log.  Publishing is best-effort
// and never interrupts the request flow.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/tenant-auth/internal/queue"
)

// Outcomes recorded by the auth flows.
const (
	OutcomeSuccess  = "success"
	OutcomeDenied   = "denied"
	OutcomeRejected = "rejected"
)

// Recorder writes audit events.  The zero-value amqp URL disables
// broker publishing; the zap logger is required.
type Recorder struct {
	log     *zap.Logger
	amqpURL string
}

func NewRecorder(log *zap.Logger) *Recorder {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	return &Recorder{log: log, amqpURL: url}
}

// Record logs the event and publishes it to the audit queue.  Callers
// must never put passwords or full token values into ev; the event
// payload is written to logs and the broker verbatim.
func (r *Recorder) Record(ctx context.Context, ev queue.SecurityEvent) {
	if ev.At == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339)
	}
	r.log.Info("audit",
		zap.String("action", ev.Action),
		zap.String("outcome", ev.Outcome),
		zap.String("ip", ev.IP),
		zap.Uint64("tenant_id", ev.TenantID),
		zap.String("subdomain", ev.Subdomain),
		zap.String("email", ev.Email),
		zap.Uint64("user_id", ev.UserID),
		zap.String("detail", ev.Detail),
	)
	if r.amqpURL == "" {
		return
	}
	if err := r.publish(ctx, ev); err != nil {
		r.log.Warn("audit publish failed", zap.Error(err))
	}
}

// publish pushes one event to the auth.audit queue.  A connection per
// publish keeps the recorder free of broker state; audit volume is a
// tiny fraction of request volume.
func (r *Recorder) publish(ctx context.Context, ev queue.SecurityEvent) error {
	conn, err := amqp.Dial(r.amqpURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent).  Durable so events survive
	// broker restarts.
	if _, err := ch.QueueDeclare("auth.audit", true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return ch.PublishWithContext(pctx, "", "auth.audit", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
