package domain

import "time"

// LogLevel names a report log severity. Levels are ordered; queries filter
// by minimum severity.
type LogLevel string

const (
	LevelDebug    LogLevel = "DEBUG"
	LevelInfo     LogLevel = "INFO"
	LevelReport   LogLevel = "REPORT"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
)

// severity maps levels onto the conventional numeric scale. REPORT sits
// between INFO and WARNING so user-facing progress survives an INFO filter.
var severity = map[LogLevel]int{
	LevelDebug:    10,
	LevelInfo:     20,
	LevelReport:   23,
	LevelWarning:  30,
	LevelError:    40,
	LevelCritical: 50,
}

// Severity returns the numeric rank of the level; unknown levels rank lowest.
func (l LogLevel) Severity() int {
	return severity[l]
}

// AtLeast reports whether l is at or above the given minimum level.
func (l LogLevel) AtLeast(min LogLevel) bool {
	return l.Severity() >= min.Severity()
}

// ParseLogLevel converts a string (CLI flag, query parameter) to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch LogLevel(s) {
	case LevelDebug, LevelInfo, LevelReport, LevelWarning, LevelError, LevelCritical:
		return LogLevel(s), nil
	}
	return "", &InvalidStateError{Value: s}
}

// LogEntry is one line of a report log. OwnerPK is always the pk of the
// ROOT workflow of the tree the message was appended to, regardless of the
// depth the append happened at.
type LogEntry struct {
	PK      int       `json:"pk"`
	OwnerPK int       `json:"owner_pk"`
	Level   LogLevel  `json:"levelname"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}
