package nostr

import "time"

// Timestamp is a unix-second timestamp, matching spec.md §3
// ("created_at (unix seconds, unsigned)").
type Timestamp uint64

// Now returns the current time as a Timestamp.
func Now() Timestamp { return Timestamp(time.Now().Unix()) }

func (t Timestamp) Time() time.Time { return time.Unix(int64(t), 0) }
