package domain

import (
	"errors"
	"fmt"
)

// ErrAlreadyTerminated is returned by control operations whose target is
// already in a terminal state. Nothing was published; callers report it as
// "already terminated", not as a failure.
var ErrAlreadyTerminated = errors.New("process already terminated")

// ErrDeliveryFailed is returned when no subscriber acknowledged a control
// command before the timeout elapsed. It is distinct from RemoteError: the
// command may never have been seen.
var ErrDeliveryFailed = errors.New("command delivery failed: no reply before timeout")

// ErrReservedStepName is returned when a caller tries to create a workflow
// step with a reserved name such as "exit".
var ErrReservedStepName = errors.New("step name is reserved")

// ErrAlreadyAttached is returned when a workflow that already has a parent
// step is attached a second time.
var ErrAlreadyAttached = errors.New("workflow already attached to a parent step")

// ErrProcessNotFound is returned when a pk cannot be resolved by the store.
var ErrProcessNotFound = errors.New("process not found")

// ErrWorkflowNotFound is returned when a workflow uuid cannot be resolved
// by the store.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrStepNotFound is returned when a named step does not exist on a workflow.
var ErrStepNotFound = errors.New("step not found")

// InvalidTransitionError reports an illegal state machine move, including
// any attempt to leave a terminal state.
type InvalidTransitionError struct {
	From ProcessState
	To   ProcessState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// InvalidStateError reports a string that names no known state or level.
type InvalidStateError struct {
	Value string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("unknown state %q", e.Value)
}

// RemoteError reports that the remote side answered a control command with
// an ERROR outcome. The command was delivered; the failure is a domain
// fault on the process side.
type RemoteError struct {
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return "remote error"
	}
	return "remote error: " + e.Detail
}
