package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
)

// DefaultTimeout bounds the wait for a correlated reply.
const DefaultTimeout = 5 * time.Second

// Panel issues control commands to live processes and blocks for the
// correlated reply. It owns its communicator: Close disconnects it.
type Panel struct {
	comm  ports.Communicator
	store ports.ProcessStore

	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	// correlationID mints the id stamped on each request. Replaced in tests
	// to make replies predictable.
	correlationID func() string

	closeOnce sync.Once
	closeErr  error
}

// Option configures the Panel.
type Option func(*Panel)

// WithTimeout overrides the reply timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Panel) {
		p.timeout = d
	}
}

// WithLogger configures a logger for the Panel.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Panel) {
		p.logger = logger
	}
}

// WithMetrics enables command instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Panel) {
		p.metrics = m
	}
}

// WithCorrelationIDs overrides the correlation id source.
func WithCorrelationIDs(next func() string) Option {
	return func(p *Panel) {
		p.correlationID = next
	}
}

// New creates a control panel over the given transport and process store.
func New(comm ports.Communicator, store ports.ProcessStore, opts ...Option) *Panel {
	p := &Panel{
		comm:          comm,
		store:         store,
		timeout:       DefaultTimeout,
		logger:        logging.NewNop(),
		correlationID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// KillProcess asks the process to abort. True means the process acknowledged
// the kill, false with a nil error means it rejected it.
func (p *Panel) KillProcess(ctx context.Context, pk int) (bool, error) {
	return p.request(ctx, domain.CommandKill, pk)
}

// PauseProcess asks a running process to move to waiting.
func (p *Panel) PauseProcess(ctx context.Context, pk int) (bool, error) {
	return p.request(ctx, domain.CommandPause, pk)
}

// PlayProcess asks a waiting process to resume running.
func (p *Panel) PlayProcess(ctx context.Context, pk int) (bool, error) {
	return p.request(ctx, domain.CommandPlay, pk)
}

// request runs one command round trip. The record is checked first: commands
// for already-terminated processes are answered locally, with nothing
// published. The reply subscription is registered before the command goes
// out, so a responder ACKing immediately cannot be missed.
func (p *Panel) request(ctx context.Context, kind domain.CommandKind, pk int) (bool, error) {
	rec, err := p.store.LoadProcess(ctx, pk)
	if err != nil {
		return false, err
	}
	if rec.IsTerminated() {
		return false, fmt.Errorf("%w: process %d is %s", domain.ErrAlreadyTerminated, pk, rec.State)
	}

	cmd := domain.ControlCommand{Kind: kind, TargetPK: pk, CorrelationID: p.correlationID()}

	replies := make(chan domain.ControlReply, 1)
	sub, err := p.comm.Subscribe(ports.FilterBySender(pk), func(_ context.Context, msg ports.Message) {
		if msg.Subject != domain.SubjectControlReply {
			return
		}
		var reply domain.ControlReply
		if err := ports.DecodeBody(msg.Body, &reply); err != nil {
			p.logger.Warn("Discarding undecodable control reply", "pk", pk, "err", err)
			return
		}
		if reply.CorrelationID != cmd.CorrelationID {
			return
		}
		select {
		case replies <- reply:
		default: // A duplicate reply for the same correlation id
		}
	})
	if err != nil {
		return false, fmt.Errorf("failed to subscribe for the reply: %w", err)
	}
	defer sub.Close()

	start := time.Now()
	if err := p.comm.Publish(ctx, ports.Message{
		Sender:        pk,
		Subject:       domain.SubjectControl,
		CorrelationID: cmd.CorrelationID,
		Body:          cmd.Body(),
	}); err != nil {
		return false, fmt.Errorf("failed to publish %s command: %w", kind, err)
	}
	p.logger.Debug("command published", "kind", kind, "pk", pk, "correlation_id", cmd.CorrelationID)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		return p.settle(kind, pk, reply, time.Since(start))
	case <-timer.C:
		p.observe(kind, observability.OutcomeTimeout, time.Since(start))
		return false, fmt.Errorf("%w: no reply to %s for process %d within %s",
			domain.ErrDeliveryFailed, kind, pk, p.timeout)
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// settle maps a wire reply onto the (bool, error) surface.
func (p *Panel) settle(kind domain.CommandKind, pk int, reply domain.ControlReply, elapsed time.Duration) (bool, error) {
	switch reply.Outcome {
	case domain.OutcomeAck:
		p.observe(kind, observability.OutcomeAck, elapsed)
		return true, nil
	case domain.OutcomeReject:
		p.observe(kind, observability.OutcomeReject, elapsed)
		p.logger.Debug("command rejected", "kind", kind, "pk", pk, "detail", reply.Detail)
		return false, nil
	default:
		// OutcomeError, or an outcome this version does not know.
		p.observe(kind, observability.OutcomeError, elapsed)
		return false, &domain.RemoteError{Detail: reply.Detail}
	}
}

func (p *Panel) observe(kind domain.CommandKind, outcome string, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.ObserveCommand(string(kind), outcome, elapsed)
}

// Close disconnects the owned communicator. Only the first call disconnects;
// the rest return the first call's result.
func (p *Panel) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.comm.Disconnect()
	})
	return p.closeErr
}
