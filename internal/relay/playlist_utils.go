package relay

import (
	"fmt"
	"net/url"
	"strings"

	"hls-relay/internal/channel"
)

// IsSegmentLine reports whether a trimmed playlist line references a media
// segment: it ends in .ts or .aac, or carries a query string after .ts.
// Every other line (tags, comments, sub-playlist URIs) passes through as is.
func IsSegmentLine(line string) bool {
	return strings.HasSuffix(line, ".ts") ||
		strings.HasSuffix(line, ".aac") ||
		strings.Contains(line, ".ts?")
}

// SegmentPath is the relay path that replaces segment number index of id.
func SegmentPath(id channel.ID, index int) string {
	return fmt.Sprintf("/seg/%s/%s/%d", id.Name, id.Version, index)
}

// RewritePlaylist converts an origin playlist body into a Snapshot for id.
// Blank lines are dropped. Segment lines are resolved against the directory of
// origin, appended to the segment table and replaced by their SegmentPath;
// all other lines keep their order and text. Lines are joined with "\n".
func RewritePlaylist(id channel.ID, origin *url.URL, body string) (*Snapshot, error) {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	var segments []string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !IsSegmentLine(line) {
			out = append(out, line)
			continue
		}

		ref, err := url.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("parse segment uri %q: %w", line, err)
		}
		// RFC 3986 resolution drops the last path element of origin, which is
		// the playlist file name.
		segments = append(segments, origin.ResolveReference(ref).String())
		out = append(out, SegmentPath(id, len(segments)-1))
	}

	return &Snapshot{
		Playlist: strings.Join(out, "\n"),
		Segments: segments,
	}, nil
}
