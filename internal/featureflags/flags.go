package featureflags

import (
	"strings"
)

// Known flags.
const (
	// QueueStream exposes the websocket feed of transaction lifecycle events.
	QueueStream = "queue_stream"
)

// Known lists every flag the service reads, so config can bind FLAG_<NAME>.
var Known = []string{QueueStream}

// Flags is an immutable set of resolved flag values.
type Flags struct {
	values map[string]bool
}

func New(values map[string]bool) *Flags {
	copied := make(map[string]bool, len(values))
	for k, v := range values {
		copied[strings.ToLower(k)] = v
	}
	return &Flags{values: copied}
}

// Enabled reports whether name is on. Unknown flags and a nil set are off.
func (f *Flags) Enabled(name string) bool {
	if f == nil {
		return false
	}
	return f.values[strings.ToLower(name)]
}

// EnvKey is the environment variable that carries flag name.
func EnvKey(name string) string {
	return "FLAG_" + strings.ToUpper(name)
}

// ParseBool accepts true/1/yes/on, case-insensitive.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
