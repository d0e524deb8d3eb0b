package models

import (
	"fmt"
	"strings"
	"time"
)

const SnapshotPrefix = "snapshots/"

// SnapshotFromKey parses an object key of the form snapshots/YYYY-MM-DD/HH.json.
func SnapshotFromKey(key string) (Snapshot, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return Snapshot{}, false
	}
	date := parts[1]
	hour := strings.TrimSuffix(parts[2], ".json")

	ts, err := time.ParseInLocation("2006-01-02 15", date+" "+hour, time.UTC)
	if err != nil {
		return Snapshot{}, false
	}
	return NewSnapshot(ts), true
}

// NewSnapshot builds the snapshot descriptor for the hour containing ts.
func NewSnapshot(ts time.Time) Snapshot {
	ts = ts.UTC().Truncate(time.Hour)
	date := ts.Format("2006-01-02")
	hour := ts.Format("15")
	return Snapshot{
		Key:       fmt.Sprintf("%s%s/%s.json", SnapshotPrefix, date, hour),
		Timestamp: ts,
		Date:      date,
		Hour:      hour,
	}
}

// Label is the human readable timestamp shown for the replay cursor.
func (s Snapshot) Label() string {
	return s.Timestamp.UTC().Format(time.RFC3339)
}
