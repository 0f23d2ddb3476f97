package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts are ISO8601 with colons replaced by hyphens so they are
// safe in file and directory names on every platform.
const (
	SessionTimeLayout = "2006-01-02T15-04-05Z"
	EventTimeLayout   = "2006-01-02T15-04-05.000Z"
)

const (
	metadataSuffix = "_metadata.json"
	beforeSuffix   = "_before.png"
	afterSuffix    = "_after.png"
)

// Session is a monitoring period. A session with EndedAt set is sealed and
// accepts no further writes.
type Session struct {
	ID         string     `json:"id"`
	MachineID  string     `json:"machineId"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	EventCount int        `json:"-"`
}

func (s Session) Sealed() bool {
	return s.EndedAt != nil
}

// NewSessionID formats "<timestamp>_<machine-id>".
func NewSessionID(startedAt time.Time, machineID string) string {
	return startedAt.UTC().Format(SessionTimeLayout) + "_" + machineID
}

// ParseSessionID splits a session id into its start time and machine id.
func ParseSessionID(id string) (time.Time, string, error) {
	ts, machine, ok := strings.Cut(id, "_")
	if !ok || machine == "" {
		return time.Time{}, "", fmt.Errorf("session id %q: missing machine id", id)
	}
	t, err := time.Parse(SessionTimeLayout, ts)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("session id %q: %w", id, err)
	}
	return t, machine, nil
}

// ArtifactKey names the three files that belong to one event. Writers and
// readers both go through it so the shared filename prefix cannot drift.
type ArtifactKey struct {
	SessionID string
	Timestamp time.Time
	// Seq disambiguates events whose timestamps collide at millisecond
	// precision. Zero means no suffix.
	Seq int
}

func NewArtifactKey(sessionID string, ts time.Time) ArtifactKey {
	return ArtifactKey{SessionID: sessionID, Timestamp: ts.UTC().Truncate(time.Millisecond)}
}

// Prefix is the filename prefix shared by metadata and both images.
func (k ArtifactKey) Prefix() string {
	p := k.Timestamp.UTC().Format(EventTimeLayout)
	if k.Seq > 0 {
		p += "-" + strconv.Itoa(k.Seq)
	}
	return p
}

func (k ArtifactKey) MetadataName() string { return k.Prefix() + metadataSuffix }
func (k ArtifactKey) BeforeName() string   { return k.Prefix() + beforeSuffix }
func (k ArtifactKey) AfterName() string    { return k.Prefix() + afterSuffix }

// Next returns the same key with the following uniqueness suffix.
func (k ArtifactKey) Next() ArtifactKey {
	k.Seq++
	return k
}

func (k ArtifactKey) String() string {
	return k.SessionID + "/" + k.Prefix()
}

// IsMetadataName reports whether name looks like an event metadata file.
func IsMetadataName(name string) bool {
	return strings.HasSuffix(name, metadataSuffix)
}

// ParseArtifactKey recovers the key from a metadata file name.
func ParseArtifactKey(sessionID, metadataName string) (ArtifactKey, error) {
	prefix, ok := strings.CutSuffix(metadataName, metadataSuffix)
	if !ok {
		return ArtifactKey{}, fmt.Errorf("artifact %q: not a metadata file", metadataName)
	}

	ts, seqStr, hasSeq := strings.Cut(prefix, "Z-")
	if hasSeq {
		ts += "Z"
	} else {
		ts = prefix
	}

	t, err := time.Parse(EventTimeLayout, ts)
	if err != nil {
		return ArtifactKey{}, fmt.Errorf("artifact %q: %w", metadataName, err)
	}

	key := ArtifactKey{SessionID: sessionID, Timestamp: t}
	if hasSeq {
		seq, err := strconv.Atoi(seqStr)
		if err != nil || seq <= 0 {
			return ArtifactKey{}, fmt.Errorf("artifact %q: bad sequence suffix", metadataName)
		}
		key.Seq = seq
	}
	return key, nil
}

// Less orders keys chronologically, then by sequence.
func (k ArtifactKey) Less(other ArtifactKey) bool {
	if !k.Timestamp.Equal(other.Timestamp) {
		return k.Timestamp.Before(other.Timestamp)
	}
	return k.Seq < other.Seq
}
