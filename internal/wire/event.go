package wire

import (
	"encoding/json"
	"time"
)

// Time is the host's receive timestamp.
type Time struct {
	Sec  int64 `json:"sec"`
	Nsec int64 `json:"nsec"`
}

// Millis returns the arrival timestamp in integer milliseconds, the key used
// by the history.
func (t Time) Millis() int64 {
	return t.Sec*1000 + t.Nsec/int64(time.Millisecond)
}

// TimeFromMillis is the inverse of Millis, truncated to the millisecond.
func TimeFromMillis(ms int64) Time {
	return Time{Sec: ms / 1000, Nsec: (ms % 1000) * int64(time.Millisecond)}
}

// TimeOf converts a wall-clock time.
func TimeOf(t time.Time) Time {
	return Time{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// Event is one message delivered by the bus during a tick.
type Event struct {
	Topic       string          `json:"topic"`
	Message     json.RawMessage `json:"message"`
	ReceiveTime Time            `json:"receiveTime"`
}
