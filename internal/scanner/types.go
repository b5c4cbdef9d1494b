package scanner

import "time"

// PostType distinguishes regular feed posts from story items. The value is
// taken from the optional JSON sidecar written next to the media files.
type PostType string

const (
	TypePost  PostType = "Post"
	TypeStory PostType = "Story"
)

// Snapshot is the in-memory result of one full scan of the export tree.
// It is produced fresh on every run and discarded after reconciliation.
type Snapshot struct {
	Accounts []AccountSnapshot `json:"accounts"`
}

// AccountSnapshot holds everything found in a single account directory.
type AccountSnapshot struct {
	// ID is the account directory name under the data root.
	ID          string       `json:"id"`
	Posts       []Post       `json:"posts"`
	ProfilePics []ProfilePic `json:"profilePics"`
	Highlights  []Highlight  `json:"highlights"`
}

// Post groups all files sharing one timestamp prefix within an account.
// Its ID is the {timestamp}_UTC prefix, stable across runs.
type Post struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	PostedAt  time.Time `json:"postedAt"`
	Type      PostType  `json:"type"`
	Caption   string    `json:"caption,omitempty"`
	HasText   bool      `json:"hasText"`
	Tags      []string  `json:"tags,omitempty"`
	Media     []Media   `json:"media"`
}

// Media is one media file belonging to a post or highlight. Width, height
// and duration are unknown at scan time; dimension probing is not done here.
type Media struct {
	Filename   string `json:"filename"`
	OrderIndex int    `json:"orderIndex"`
	Mime       string `json:"mime"`
}

// ProfilePic is a dated profile picture file.
type ProfilePic struct {
	TakenAt  time.Time `json:"takenAt"`
	Filename string    `json:"filename"`
}

// Highlight is a named subdirectory of media with an optional cover file.
type Highlight struct {
	Title string  `json:"title"`
	Cover string  `json:"cover,omitempty"`
	Media []Media `json:"media"`
}
