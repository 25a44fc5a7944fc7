package domain

// CommandKind identifies a control action requested on a process.
type CommandKind string

const (
	CommandKill  CommandKind = "KILL"
	CommandPause CommandKind = "PAUSE"
	CommandPlay  CommandKind = "PLAY"
)

// Outcome is the verdict a process reports back for a control command.
type Outcome string

const (
	OutcomeAck    Outcome = "ACK"    // Command applied
	OutcomeReject Outcome = "REJECT" // Command understood but not applicable
	OutcomeError  Outcome = "ERROR"  // Command raised a fault on the remote side
)

// ControlCommand is the wire body of a control request. One command carries
// exactly one correlation id, and the matching reply echoes it.
type ControlCommand struct {
	Kind          CommandKind `json:"kind" mapstructure:"kind"`
	TargetPK      int         `json:"target_pk" mapstructure:"target_pk"`
	CorrelationID string      `json:"correlation_id" mapstructure:"correlation_id"`
}

// Body renders the command as a broadcast body.
func (c ControlCommand) Body() map[string]any {
	return map[string]any{
		"kind":           string(c.Kind),
		"target_pk":      c.TargetPK,
		"correlation_id": c.CorrelationID,
	}
}

// ControlReply is the wire body answering a ControlCommand.
type ControlReply struct {
	CorrelationID string  `json:"correlation_id" mapstructure:"correlation_id"`
	Outcome       Outcome `json:"outcome" mapstructure:"outcome"`
	Detail        string  `json:"detail,omitempty" mapstructure:"detail"`
}

// Body renders the reply as a broadcast body.
func (r ControlReply) Body() map[string]any {
	return map[string]any{
		"correlation_id": r.CorrelationID,
		"outcome":        string(r.Outcome),
		"detail":         r.Detail,
	}
}

// StateChange is the wire body of a process state broadcast.
type StateChange struct {
	PK       int          `json:"pk" mapstructure:"pk"`
	OldState ProcessState `json:"old_state" mapstructure:"old_state"`
	NewState ProcessState `json:"new_state" mapstructure:"new_state"`
}

// Body renders the state change as a broadcast body.
func (s StateChange) Body() map[string]any {
	return map[string]any{
		"pk":        s.PK,
		"old_state": string(s.OldState),
		"new_state": string(s.NewState),
	}
}
