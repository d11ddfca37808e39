package pcap

import (
	"fmt"
	"time"
)

// Timestamp capture time with microsecond resolution, as struct timeval.
// Values taken from native headers are kept as they are, even when
// Microseconds is out of range.
type Timestamp struct {
	Seconds      int64
	Microseconds int64
}

// TimestampFromTime split t into whole seconds and microseconds, truncating
// anything finer. Microseconds is always in [0, 1e6).
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{
		Seconds:      t.Unix(),
		Microseconds: int64(t.Nanosecond() / int(time.Microsecond)),
	}
}

// Time the timestamp as a time.Time in the local zone
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, ts.Microseconds*int64(time.Microsecond))
}

// Set replace both fields from t, returning t
func (ts *Timestamp) Set(t time.Time) time.Time {
	*ts = TimestampFromTime(t)
	return t
}

// IsZero if the timestamp is the epoch
func (ts Timestamp) IsZero() bool {
	return ts.Seconds == 0 && ts.Microseconds == 0
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%d.%06d", ts.Seconds, ts.Microseconds)
}
