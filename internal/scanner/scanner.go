package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"insta-archive/internal/logging"
	"insta-archive/internal/metrics"
)

// Scanner walks an export tree and produces fully-structured snapshots.
// The tree has one directory per account under the data root; media,
// caption, sidecar and profile-picture files sit directly in the account
// directory, and each subdirectory is a highlight.
type Scanner struct {
	dataDir string
}

// New creates a Scanner rooted at dataDir.
func New(dataDir string) *Scanner {
	return &Scanner{dataDir: dataDir}
}

// ScanRoot enumerates account directories under the data root and scans
// each in turn. Accounts are scanned sequentially; the first failure
// aborts the whole scan. The returned snapshot lists accounts in
// ascending id order.
func (s *Scanner) ScanRoot() (*Snapshot, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data root %s: %w", s.dataDir, err)
	}

	snap := &Snapshot{}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		account, err := s.ScanAccount(entry.Name())
		if err != nil {
			return nil, err
		}
		snap.Accounts = append(snap.Accounts, account)
		metrics.IndexerAccountsScanned.Inc()
	}

	sort.Slice(snap.Accounts, func(i, j int) bool {
		return snap.Accounts[i].ID < snap.Accounts[j].ID
	})

	return snap, nil
}

// ScanAccount reads one account directory in a single pass, grouping files
// into posts, profile pictures and highlights. A directory read error is
// fatal for the whole scan; there is no per-account isolation.
func (s *Scanner) ScanAccount(accountID string) (AccountSnapshot, error) {
	dir := filepath.Join(s.dataDir, accountID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return AccountSnapshot{}, fmt.Errorf("failed to read account directory %s: %w", accountID, err)
	}

	account := AccountSnapshot{ID: accountID}
	posts := make(map[string]*Post)

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		if entry.IsDir() {
			highlight, ok, err := s.scanHighlight(dir, entry.Name())
			if err != nil {
				return AccountSnapshot{}, err
			}
			if ok {
				account.Highlights = append(account.Highlights, highlight)
			}
			continue
		}

		m := Classify(entry.Name())
		switch m.Kind {
		case KindCaption:
			post := findOrCreatePost(posts, accountID, m)
			if err := s.applyCaption(post, filepath.Join(dir, entry.Name())); err != nil {
				return AccountSnapshot{}, err
			}

		case KindMedia:
			switch m.Ext {
			case "txt":
				// Indexed caption-shaped file; the caption itself was
				// already handled, so skip it.
			case "json":
				post := findOrCreatePost(posts, accountID, m)
				if t, ok := readSidecarType(filepath.Join(dir, entry.Name())); ok {
					post.Type = t
				}
			default:
				post := findOrCreatePost(posts, accountID, m)
				orderIndex := m.Index - 1
				if m.Index <= 0 {
					// No usable sequence suffix: fall back to the current
					// position, which can never collide within the post.
					orderIndex = len(post.Media)
				}
				post.Media = append(post.Media, Media{
					Filename:   entry.Name(),
					OrderIndex: orderIndex,
					Mime:       mimeForExt(m.Ext),
				})
			}

		case KindProfilePic:
			account.ProfilePics = append(account.ProfilePics, ProfilePic{
				TakenAt:  m.Timestamp,
				Filename: entry.Name(),
			})
		}
	}

	for _, post := range posts {
		// A suffix-less file's positional fallback can collide with an
		// explicit _1 suffix (both land on 0), and order_index is part of
		// the media primary key. Sort with a filename tie-break, then
		// renumber so indexes are always strictly increasing.
		sort.SliceStable(post.Media, func(i, j int) bool {
			a, b := post.Media[i], post.Media[j]
			if a.OrderIndex != b.OrderIndex {
				return a.OrderIndex < b.OrderIndex
			}
			return a.Filename < b.Filename
		})
		for i := range post.Media {
			post.Media[i].OrderIndex = i
		}
		account.Posts = append(account.Posts, *post)
	}
	sort.Slice(account.Posts, func(i, j int) bool {
		a, b := account.Posts[i], account.Posts[j]
		if !a.PostedAt.Equal(b.PostedAt) {
			return a.PostedAt.After(b.PostedAt)
		}
		return a.ID < b.ID
	})
	sort.Slice(account.ProfilePics, func(i, j int) bool {
		return account.ProfilePics[i].TakenAt.Before(account.ProfilePics[j].TakenAt)
	})

	return account, nil
}

// scanHighlight reads one highlight subdirectory. Media files are sorted
// by filename and renumbered 0..n-1; a highlight with no qualifying media
// is dropped (ok=false).
func (s *Scanner) scanHighlight(accountDir, title string) (Highlight, bool, error) {
	dir := filepath.Join(accountDir, title)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Highlight{}, false, fmt.Errorf("failed to read highlight directory %s: %w", title, err)
	}

	highlight := Highlight{Title: title}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		m := Classify(entry.Name())
		if m.Kind == KindCover {
			highlight.Cover = entry.Name()
			continue
		}
		if (m.Kind == KindMedia || m.Kind == KindCaption) && (m.Ext == "json" || m.Ext == "txt") {
			continue
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
		highlight.Media = append(highlight.Media, Media{
			Filename: entry.Name(),
			Mime:     mimeForExt(ext),
		})
	}

	if len(highlight.Media) == 0 {
		return Highlight{}, false, nil
	}

	sort.Slice(highlight.Media, func(i, j int) bool {
		return highlight.Media[i].Filename < highlight.Media[j].Filename
	})
	for i := range highlight.Media {
		highlight.Media[i].OrderIndex = i
	}

	return highlight, true, nil
}

// applyCaption loads the caption file into the post and merges any
// hashtags found in non-empty text.
func (s *Scanner) applyCaption(post *Post, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read caption %s: %w", filepath.Base(path), err)
	}

	caption := string(data)
	post.Caption = caption
	post.HasText = strings.TrimSpace(caption) != ""
	if post.HasText {
		post.Tags = mergeTags(post.Tags, ExtractHashtags(caption))
	}
	return nil
}

// findOrCreatePost returns the accumulator for the post id carried by the
// match, creating it with default type on first sight.
func findOrCreatePost(posts map[string]*Post, accountID string, m Match) *Post {
	if post, ok := posts[m.PostID]; ok {
		return post
	}
	post := &Post{
		ID:        m.PostID,
		AccountID: accountID,
		PostedAt:  m.Timestamp,
		Type:      TypePost,
	}
	posts[m.PostID] = post
	return post
}

// mergeTags merges two deduplicated tag sets, keeping the result sorted.
func mergeTags(existing, extra []string) []string {
	if len(extra) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(extra))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	for _, t := range extra {
		seen[t] = struct{}{}
	}
	merged := make([]string, 0, len(seen))
	for t := range seen {
		merged = append(merged, t)
	}
	sort.Strings(merged)
	return merged
}

// sidecarNode is the recognized shape of the optional JSON sidecar: an
// object carrying a nested node-type marker.
type sidecarNode struct {
	Node struct {
		Typename string `json:"__typename"`
	} `json:"node"`
}

// readSidecarType parses a JSON sidecar and reports the post type it
// implies. The sidecar is metadata-only: read and parse failures are
// swallowed and leave the post type untouched.
func readSidecarType(path string) (PostType, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Debug("sidecar %s unreadable: %v", filepath.Base(path), err)
		return "", false
	}

	var sidecar sidecarNode
	if err := json.Unmarshal(data, &sidecar); err != nil {
		logging.Debug("sidecar %s not valid JSON: %v", filepath.Base(path), err)
		return "", false
	}

	if sidecar.Node.Typename == "" {
		return "", false
	}
	if sidecar.Node.Typename == "StoryItem" {
		return TypeStory, true
	}
	return TypePost, true
}
