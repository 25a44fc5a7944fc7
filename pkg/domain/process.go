package domain

import "time"

// ProcessState identifies a stage in the process lifecycle.
type ProcessState string

const (
	StateCreated  ProcessState = "created"  // Registered but not yet started
	StateRunning  ProcessState = "running"  // Actively executing
	StateWaiting  ProcessState = "waiting"  // Paused, waiting to be resumed
	StateFinished ProcessState = "finished" // Terminal: ran to completion (see ExitStatus)
	StateExcepted ProcessState = "excepted" // Terminal: aborted by an internal fault
	StateKilled   ProcessState = "killed"   // Terminal: aborted by external request
)

// transitions lists the legal moves out of each non-terminal state.
// Terminal states have no entry: every transition out of them is invalid.
// A kill or except may interrupt any live process, while a normal finish
// requires the process to be running.
var transitions = map[ProcessState]map[ProcessState]bool{
	StateCreated: {StateRunning: true, StateKilled: true, StateExcepted: true},
	StateRunning: {StateWaiting: true, StateFinished: true, StateKilled: true, StateExcepted: true},
	StateWaiting: {StateRunning: true, StateKilled: true, StateExcepted: true},
}

// IsTerminal reports whether the state is a sink: finished, excepted or killed.
func (s ProcessState) IsTerminal() bool {
	return s == StateFinished || s == StateExcepted || s == StateKilled
}

// ParseProcessState converts a string (as found on the wire or a CLI flag)
// into a ProcessState.
func ParseProcessState(s string) (ProcessState, error) {
	switch ProcessState(s) {
	case StateCreated, StateRunning, StateWaiting, StateFinished, StateExcepted, StateKilled:
		return ProcessState(s), nil
	}
	return "", &InvalidStateError{Value: s}
}

// ProcessRecord is the persistent projection of a single process.
// The store assigns PK on first save; pks are monotonic and never reused.
type ProcessRecord struct {
	PK          int          `json:"pk"`
	UUID        string       `json:"uuid"`
	State       ProcessState `json:"process_state"`
	ExitStatus  *int         `json:"exit_status,omitempty"`
	Sealed      bool         `json:"sealed"`
	Label       string       `json:"label,omitempty"`
	Description string       `json:"description,omitempty"`

	// ProcessType is the registered identifier of the function that produced
	// this record, e.g. "quantum.relax".
	ProcessType string `json:"process_type,omitempty"`

	// ResultRef names where the outputs of a finished run live. A run
	// satisfied from the cache carries the reference of the original run.
	ResultRef string `json:"result_ref,omitempty"`

	CTime time.Time `json:"ctime"`
	MTime time.Time `json:"mtime"`
}

// NewProcessRecord returns a record in the created state. The caller assigns
// UUID; the store assigns PK.
func NewProcessRecord(label string) *ProcessRecord {
	now := time.Now().UTC()
	return &ProcessRecord{
		State: StateCreated,
		Label: label,
		CTime: now,
		MTime: now,
	}
}

// Transition moves the record to a new state, or returns
// *InvalidTransitionError when the move is not legal. Terminal states are
// absorbing. Entering a terminal state seals the record; entering finished
// without an exit status records success (exit status 0).
func (p *ProcessRecord) Transition(to ProcessState) error {
	allowed, live := transitions[p.State]
	if !live || !allowed[to] {
		return &InvalidTransitionError{From: p.State, To: to}
	}
	p.State = to
	p.MTime = time.Now().UTC()
	if to.IsTerminal() {
		if to == StateFinished && p.ExitStatus == nil {
			zero := 0
			p.ExitStatus = &zero
		}
		p.Sealed = true
	}
	return nil
}

// Finish terminates the record with an explicit exit status. Zero means
// success; any other value is a controlled failure.
func (p *ProcessRecord) Finish(exitStatus int) error {
	if p.State != StateRunning {
		return &InvalidTransitionError{From: p.State, To: StateFinished}
	}
	p.ExitStatus = &exitStatus
	return p.Transition(StateFinished)
}

// Kill terminates the record from any live state.
func (p *ProcessRecord) Kill() error {
	return p.Transition(StateKilled)
}

// Except terminates the record from any live state, marking an internal fault.
func (p *ProcessRecord) Except() error {
	return p.Transition(StateExcepted)
}

// IsTerminated reports whether the record reached a terminal state.
func (p *ProcessRecord) IsTerminated() bool {
	return p.State.IsTerminal()
}

// IsFinishedOK reports whether the record finished with exit status zero.
func (p *ProcessRecord) IsFinishedOK() bool {
	return p.State == StateFinished && p.ExitStatus != nil && *p.ExitStatus == 0
}
