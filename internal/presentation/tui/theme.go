package tui

import (
	"github.com/muesli/termenv"

	"github.com/aretw0/arbor/pkg/domain"
)

var profile = termenv.ColorProfile()

// stateColors keeps listings readable at a glance: calm colors for live
// states, loud ones for anything that ended badly.
var stateColors = map[domain.ProcessState]string{
	domain.StateCreated:  "#818cf8",
	domain.StateRunning:  "#34d399",
	domain.StateWaiting:  "#fbbf24",
	domain.StateFinished: "#a78bfa",
	domain.StateExcepted: "#fb7185",
	domain.StateKilled:   "#f472b6",
}

// State renders a process state in its palette color.
func State(s domain.ProcessState) string {
	return Label(s, string(s))
}

// Label renders arbitrary text in the palette color of a state. Padding
// belongs in the text so column alignment survives the escape codes.
func Label(s domain.ProcessState, text string) string {
	hex, ok := stateColors[s]
	if !ok {
		return text
	}
	return termenv.String(text).Foreground(profile.Color(hex)).String()
}

// Ok styles a fragment of command output as a success.
func Ok(s string) string {
	return termenv.String(s).Foreground(profile.Color("#34d399")).String()
}

// Warn styles a fragment of command output as a soft refusal.
func Warn(s string) string {
	return termenv.String(s).Foreground(profile.Color("#fbbf24")).String()
}

// Fail styles a fragment of command output as a hard failure.
func Fail(s string) string {
	return termenv.String(s).Foreground(profile.Color("#fb7185")).String()
}
