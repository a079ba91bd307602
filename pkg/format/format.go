package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/models"
)

// TimestampLayout renders UTC instants as ISO-8601 with a trailing Z,
// microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// SerializationError reports a record whose fields could not be encoded as JSON.
type SerializationError struct {
	Message string // the record's message, for diagnostics
	Err     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize record %q: %v", e.Message, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Formatter renders log records as single-line JSON objects (JSON Lines).
// The zero value is ready to use.
type Formatter struct {
	// Now supplies the record timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Format produces one UTF-8 JSON line (no trailing newline) containing
// timestamp, level, message plus every key of fields flattened into the
// same top-level object. Fields win on a key collision with the fixed
// keys; that override is long-standing observed behavior and is kept
// deliberately. Non-ASCII characters are written literally.
//
// A fields value that cannot be encoded yields a *SerializationError.
func (f *Formatter) Format(level models.Level, message string, fields map[string]interface{}) ([]byte, error) {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}

	entry := make(map[string]interface{}, len(fields)+3)
	entry["timestamp"] = now().UTC().Format(TimestampLayout)
	entry["level"] = string(level)
	entry["message"] = message
	for k, v := range fields {
		entry[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entry); err != nil {
		return nil, &SerializationError{Message: message, Err: err}
	}

	// Encode appends a newline; the sink owns line termination.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Fallback builds the degraded record written when Format fails: the
// fixed keys plus an "error": "serialization_failed" marker. It cannot fail.
func (f *Formatter) Fallback(level models.Level, message string) []byte {
	line, err := f.Format(level, message, map[string]interface{}{
		"error": "serialization_failed",
	})
	if err != nil {
		// Unreachable: the fallback fields are all strings.
		return nil
	}
	return line
}
