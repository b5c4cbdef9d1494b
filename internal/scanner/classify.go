package scanner

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which filename pattern a directory entry matched.
type Kind int

const (
	// KindNone means the filename matched no known pattern.
	KindNone Kind = iota
	// KindMedia is a timestamped media file, optionally with a sequence index.
	KindMedia
	// KindCaption is the caption text file for a post.
	KindCaption
	// KindProfilePic is a dated profile picture.
	KindProfilePic
	// KindCover is a highlight cover image.
	KindCover
)

// Match is the result of classifying a single filename.
type Match struct {
	Kind Kind

	// PostID is the {timestamp}_UTC prefix shared by all files of one post.
	PostID string

	// Timestamp is the PostID parsed as an absolute UTC instant.
	Timestamp time.Time

	// Index is the captured 1-based sequence number, 0 when absent.
	Index int

	// Ext is the lower-cased extension without the dot.
	Ext string
}

// Export filenames embed a UTC timestamp: YYYY-MM-DD_HH-MM-SS_UTC.
const timestampPattern = `\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}_UTC`

var (
	coverRe      = regexp.MustCompile(`^(` + timestampPattern + `)_cover\.([A-Za-z0-9]+)$`)
	mediaRe      = regexp.MustCompile(`^(` + timestampPattern + `)(?:_(\d+))?\.([A-Za-z0-9]+)$`)
	profilePicRe = regexp.MustCompile(`^(` + timestampPattern + `)_profile_pic\.([A-Za-z0-9]+)$`)
)

// Classify matches a bare filename (no path) against the known export
// patterns and extracts its structured fields. Patterns are tried in a
// fixed order: highlight cover, timestamped media, caption, profile
// picture. A bare .txt file with no sequence index is the post caption;
// an indexed .txt file stays a media match so the scanner can discard it.
func Classify(name string) Match {
	if m := coverRe.FindStringSubmatch(name); m != nil {
		if ts, ok := parseTimestamp(m[1]); ok {
			return Match{Kind: KindCover, PostID: m[1], Timestamp: ts, Ext: strings.ToLower(m[2])}
		}
		return Match{}
	}

	if m := mediaRe.FindStringSubmatch(name); m != nil {
		ts, ok := parseTimestamp(m[1])
		if !ok {
			return Match{}
		}
		ext := strings.ToLower(m[3])
		if ext == "txt" && m[2] == "" {
			return Match{Kind: KindCaption, PostID: m[1], Timestamp: ts, Ext: ext}
		}
		index := 0
		if m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil {
				index = n
			}
		}
		return Match{Kind: KindMedia, PostID: m[1], Timestamp: ts, Index: index, Ext: ext}
	}

	if m := profilePicRe.FindStringSubmatch(name); m != nil {
		if ts, ok := parseTimestamp(m[1]); ok {
			return Match{Kind: KindProfilePic, PostID: m[1], Timestamp: ts, Ext: strings.ToLower(m[2])}
		}
	}

	return Match{}
}

// parseTimestamp converts "YYYY-MM-DD_HH-MM-SS_UTC" into a UTC instant.
// The time portion's dashes become colons and a Z offset is appended; the
// local timezone is never consulted.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSuffix(s, "_UTC")
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	iso := parts[0] + "T" + strings.ReplaceAll(parts[1], "-", ":") + "Z"
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// mimeForExt maps a lower-cased extension to a MIME type. Unknown
// extensions fall back to application/octet-stream.
func mimeForExt(ext string) string {
	mimeTypes := map[string]string{
		"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png",
		"gif": "image/gif", "webp": "image/webp", "heic": "image/heic",
		"mp4": "video/mp4", "mov": "video/quicktime", "webm": "video/webm",
		"m4v": "video/x-m4v", "mkv": "video/x-matroska",
	}
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
