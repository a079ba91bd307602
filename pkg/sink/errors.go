package sink

import "fmt"

// ConfigError is fatal at construction: the log directory could not be created.
type ConfigError struct {
	Dir string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("create log directory %s: %v", e.Dir, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// WriteError reports a failed append or rotation on a channel. The channel
// stays usable; the next append retries opening the live file.
type WriteError struct {
	Channel string
	Op      string // open, write, rotate
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("channel %s: %s: %v", e.Channel, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
