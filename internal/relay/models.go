package relay

// Snapshot is the result of one successful poll of a channel's origin: the
// rewritten playlist text and the origin URLs its /seg/ references index into.
// A Snapshot is never mutated after it is published to a SnapshotCache.
type Snapshot struct {
	Playlist string
	Segments []string
}

// EmptySnapshot is installed for a channel that is registered but has not
// been fetched yet. Playlist requests against it answer "not ready".
func EmptySnapshot() *Snapshot {
	return &Snapshot{}
}

// Ready reports whether the snapshot has playlist text to serve.
func (s *Snapshot) Ready() bool {
	return s != nil && s.Playlist != ""
}

// SegmentURL returns the origin URL at index i of the segment table.
func (s *Snapshot) SegmentURL(i int) (string, bool) {
	if s == nil || i < 0 || i >= len(s.Segments) {
		return "", false
	}
	return s.Segments[i], true
}
