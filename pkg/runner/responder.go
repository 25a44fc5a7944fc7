package runner

import (
	"context"
	"fmt"
	"sync"

	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Responder is the process-side half of the control protocol. It guards
// process pks: commands addressed to a guarded pk are applied to the stored
// record and answered with a correlated reply. Every successful transition
// is also broadcast as a state change.
//
// The Responder shares the communicator with its owner and never
// disconnects it; Close only drops the guards.
type Responder struct {
	comm   ports.Communicator
	store  ports.ProcessStore
	logger *slog.Logger

	mu     sync.Mutex
	guards map[int]ports.Subscription
}

// ResponderOption configures the Responder.
type ResponderOption func(*Responder)

// WithResponderLogger configures a logger for the Responder.
func WithResponderLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		r.logger = logger
	}
}

// NewResponder creates a responder over the given transport and store.
func NewResponder(comm ports.Communicator, store ports.ProcessStore, opts ...ResponderOption) *Responder {
	r := &Responder{
		comm:   comm,
		store:  store,
		logger: logging.NewNop(),
		guards: make(map[int]ports.Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Guard starts answering commands addressed to pk. Guarding a pk twice is a
// no-op.
func (r *Responder) Guard(pk int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.guards[pk]; ok {
		return nil
	}
	sub, err := r.comm.Subscribe(ports.FilterBySender(pk), r.handle)
	if err != nil {
		return fmt.Errorf("failed to guard process %d: %w", pk, err)
	}
	r.guards[pk] = sub
	return nil
}

// Release stops answering for pk.
func (r *Responder) Release(pk int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.guards[pk]
	if !ok {
		return nil
	}
	delete(r.guards, pk)
	return sub.Close()
}

// Close drops every guard. The communicator stays connected.
func (r *Responder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for pk, sub := range r.guards {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.guards, pk)
	}
	return firstErr
}

// handle runs on the communicator's dispatch goroutine.
func (r *Responder) handle(ctx context.Context, msg ports.Message) {
	if msg.Subject != domain.SubjectControl {
		return
	}
	var cmd domain.ControlCommand
	if err := ports.DecodeBody(msg.Body, &cmd); err != nil {
		r.logger.Warn("Discarding undecodable control command", "err", err)
		return
	}

	outcome, detail := r.apply(ctx, cmd)

	reply := domain.ControlReply{CorrelationID: cmd.CorrelationID, Outcome: outcome, Detail: detail}
	if err := r.comm.Publish(ctx, ports.Message{
		Sender:        cmd.TargetPK,
		Subject:       domain.SubjectControlReply,
		CorrelationID: cmd.CorrelationID,
		Body:          reply.Body(),
	}); err != nil {
		logging.WithProcess(r.logger, cmd.TargetPK).Warn("Failed to publish control reply", "err", err)
	}
}

// apply drives the state machine for one command and reports the verdict.
func (r *Responder) apply(ctx context.Context, cmd domain.ControlCommand) (domain.Outcome, string) {
	rec, err := r.store.LoadProcess(ctx, cmd.TargetPK)
	if err != nil {
		return domain.OutcomeError, err.Error()
	}
	if rec.IsTerminated() {
		return domain.OutcomeReject, "already terminated"
	}

	old := rec.State
	switch cmd.Kind {
	case domain.CommandKill:
		err = rec.Kill()
	case domain.CommandPause:
		if rec.State != domain.StateRunning {
			return domain.OutcomeReject, fmt.Sprintf("cannot pause a %s process", rec.State)
		}
		err = rec.Transition(domain.StateWaiting)
	case domain.CommandPlay:
		if rec.State != domain.StateWaiting {
			return domain.OutcomeReject, fmt.Sprintf("cannot play a %s process", rec.State)
		}
		err = rec.Transition(domain.StateRunning)
	default:
		return domain.OutcomeError, fmt.Sprintf("unknown command kind %q", cmd.Kind)
	}
	if err != nil {
		return domain.OutcomeError, err.Error()
	}

	if err := r.store.SaveProcess(ctx, rec); err != nil {
		return domain.OutcomeError, err.Error()
	}
	logging.WithProcess(r.logger, rec.PK).Info("command applied", "kind", cmd.Kind, "old_state", old, "new_state", rec.State)
	broadcastStateChange(ctx, r.comm, r.logger, rec.PK, old, rec.State)
	return domain.OutcomeAck, ""
}

// broadcastStateChange publishes a state broadcast, logging instead of
// failing: transitions are already durable by the time this runs.
func broadcastStateChange(ctx context.Context, comm ports.Communicator, logger *slog.Logger, pk int, old, next domain.ProcessState) {
	if comm == nil {
		return
	}
	change := domain.StateChange{PK: pk, OldState: old, NewState: next}
	if err := comm.Publish(ctx, ports.Message{
		Sender:  pk,
		Subject: domain.SubjectStateChange,
		Body:    change.Body(),
	}); err != nil {
		logging.WithProcess(logger, pk).Warn("Failed to broadcast state change", "err", err)
	}
}
