package domain

// Broadcast subjects. Every message on the communicator carries one of
// these, so responders and watchers can dispatch without sniffing bodies.
const (
	// SubjectControl carries ControlCommand bodies addressed to a process.
	SubjectControl = "process.control"

	// SubjectControlReply carries ControlReply bodies, published by the
	// process that handled the command.
	SubjectControlReply = "process.control.reply"

	// SubjectStateChange carries StateChange bodies on every successful
	// lifecycle transition.
	SubjectStateChange = "process.state"
)

// Workflow step names with fixed meaning.
const (
	// StepNameStart is the designated entry step. Recording a successor of
	// this step promotes the workflow from created to running.
	StepNameStart = "start"

	// StepNameExit terminates a step chain. It is reserved: no step may be
	// created under this name, it may only appear as a Nextcall value.
	StepNameExit = "exit"
)
