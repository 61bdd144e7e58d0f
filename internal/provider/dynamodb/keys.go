package dynamodb

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// PK/SK prefix constants.
const (
	prefixJob   = "JOB#"
	prefixBuild = "BUILD#"
	prefixEvent = "EVENT#"

	skRevision = "REVISION"
)

func jobPK(name string) string      { return prefixJob + name }
func buildPK(buildID string) string { return prefixBuild + buildID }

func buildTruthSK(buildID string) string { return prefixBuild + buildID }

func buildListSK(queuedAt time.Time, buildID string) string {
	return prefixBuild + queuedAt.UTC().Format(time.RFC3339Nano) + "#" + buildID
}

func revisionSK() string { return skRevision }

func eventSK(ts time.Time) string {
	nonce := make([]byte, 4)
	_, _ = rand.Read(nonce)
	return fmt.Sprintf("%s%013d#%s", prefixEvent, ts.UnixMilli(), hex.EncodeToString(nonce))
}

func ttlEpoch(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}

func isExpired(epoch int64) bool {
	return epoch > 0 && time.Now().Unix() > epoch
}
