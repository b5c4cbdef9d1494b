package database

import "time"

// Account is one account directory observed in the export tree.
type Account struct {
	ID               string    `json:"id"`
	LatestProfilePic string    `json:"latestProfilePic,omitempty"`
	LastIndexedAt    time.Time `json:"lastIndexedAt"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Post is a persisted post. ID is the {timestamp}_UTC grouping prefix,
// unique within an account.
type Post struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	PostedAt  time.Time `json:"postedAt"`
	Type      string    `json:"type"`
	Caption   string    `json:"caption,omitempty"`
	HasText   bool      `json:"hasText"`
	Media     []Media   `json:"media,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// Media is one media row of a post. Width, height and duration stay null
// until something other than the indexer fills them in.
type Media struct {
	Filename   string   `json:"filename"`
	OrderIndex int      `json:"orderIndex"`
	MimeType   string   `json:"mimeType,omitempty"`
	Width      *int     `json:"width,omitempty"`
	Height     *int     `json:"height,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
}

// Tag is a normalized, lower-cased hashtag.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	PostCount int       `json:"postCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfilePic is a dated profile picture row.
type ProfilePic struct {
	AccountID string    `json:"accountId"`
	TakenAt   time.Time `json:"takenAt"`
	Filename  string    `json:"filename"`
}

// Highlight is a persisted highlight, keyed by account and title.
type Highlight struct {
	AccountID string  `json:"accountId"`
	Title     string  `json:"title"`
	Cover     string  `json:"cover,omitempty"`
	Media     []Media `json:"media,omitempty"`
}

// ArchiveStats summarizes the store contents. It is recomputed after each
// successful reconciliation and served from memory.
type ArchiveStats struct {
	TotalAccounts   int       `json:"totalAccounts"`
	TotalPosts      int       `json:"totalPosts"`
	TotalMedia      int       `json:"totalMedia"`
	TotalTags       int       `json:"totalTags"`
	TotalHighlights int       `json:"totalHighlights"`
	LastIndexed     time.Time `json:"lastIndexed"`
	IndexDuration   string    `json:"indexDuration"`
}
