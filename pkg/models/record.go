package models

// Level is the severity of a log record
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

var levelRank = map[Level]int{
	LevelInfo:     0,
	LevelWarning:  1,
	LevelError:    2,
	LevelCritical: 3,
}

// Valid reports whether l is one of the known severity levels.
func (l Level) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// Meets reports whether l is at or above min. Unknown levels never pass.
func (l Level) Meets(min Level) bool {
	rank, ok := levelRank[l]
	if !ok {
		return false
	}
	minRank, ok := levelRank[min]
	if !ok {
		return false
	}
	return rank >= minRank
}

// Channel names. Each channel maps to its own rotated .jsonl file.
const (
	ChannelEvents  = "events"
	ChannelThreats = "threats"
)

// Event categories recorded in the "category" field
const (
	CategoryNetwork = "network"
	CategoryAPI     = "api"
)

// Record represents one structured log occurrence before serialization
type Record struct {
	Level   Level
	Message string
	Fields  map[string]interface{}
}

// Defaults for logger construction
const (
	DefaultLogDir      = "./data/logs"
	DefaultLevel       = LevelInfo
	DefaultBackupCount = 14
)
