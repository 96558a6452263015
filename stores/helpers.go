package stores

import (
	"time"

	"github.com/oarkflow/date"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// decodeTime tolerates the timestamp shapes different drivers hand back:
// native time.Time, RFC3339-ish strings, or raw bytes.
func decodeTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := date.Parse(v); err == nil {
			return t
		}
	case []byte:
		if t, err := date.Parse(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}
