package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/witlox/horao/pkg/clock"
)

// SchemaVersion is embedded in every snapshot key and its meta/self record
// so a peer loading a snapshot written by an older or newer build can
// detect the mismatch instead of silently misinterpreting the payload.
const SchemaVersion = 1

const metaSelfKey = "meta/self"
const snapshotPrefix = "snapshot/"
const deltaPrefix = "delta/"

// selfMeta is the value stored at meta/self: this peer's identity, the
// schema version it last wrote, and the timestamp of its most recent
// snapshot.
type selfMeta struct {
	PeerID         string          `json:"peer_id"`
	SchemaVer      int             `json:"schema_ver"`
	LastSnapshotTs clock.Timestamp `json:"last_snapshot_ts"`
}

// tsKey renders a timestamp as a string that sorts lexicographically in
// the same order as the timestamp's own Less, so a prefix scan's
// naturally-ordered keys double as a chronological listing.
func tsKey(ts clock.Timestamp) string {
	return fmt.Sprintf("%020d.%020d.%s", ts.WallMs, ts.Counter, ts.PeerID)
}

// parseTsKey reverses tsKey. Returns ok=false if s isn't a well-formed
// timestamp key.
func parseTsKey(s string) (clock.Timestamp, bool) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return clock.Timestamp{}, false
	}
	wallMs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return clock.Timestamp{}, false
	}
	counter, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return clock.Timestamp{}, false
	}
	return clock.Timestamp{WallMs: wallMs, Counter: counter, PeerID: parts[2]}, true
}

func snapshotKey(ts clock.Timestamp) string {
	return fmt.Sprintf("%s%d/%s", snapshotPrefix, SchemaVersion, tsKey(ts))
}

// snapshotTsFromKey extracts the timestamp suffix from a snapshot key of
// the form "snapshot/<schema_ver>/<ts>".
func snapshotTsFromKey(key string) (clock.Timestamp, bool) {
	rest := strings.TrimPrefix(key, snapshotPrefix)
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return clock.Timestamp{}, false
	}
	return parseTsKey(rest[idx+1:])
}

func deltaKey(origin string, ts clock.Timestamp) string {
	return fmt.Sprintf("%s%s/%s", deltaPrefix, origin, tsKey(ts))
}
