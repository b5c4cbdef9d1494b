package indexer

import (
	"database/sql"
	"fmt"
	"time"

	"insta-archive/internal/database"
	"insta-archive/internal/logging"
	"insta-archive/internal/metrics"
	"insta-archive/internal/scanner"
)

// RunCounts reports how many entities a reconciliation run created. Updates
// to already-known entities are not counted.
type RunCounts struct {
	AccountsCreated    int `json:"accountsCreated"`
	PostsCreated       int `json:"postsCreated"`
	MediaCreated       int `json:"mediaCreated"`
	ProfilePicsCreated int `json:"profilePicsCreated"`
	TagsCreated        int `json:"tagsCreated"`
	HighlightsCreated  int `json:"highlightsCreated"`
}

// Reconcile merges a scan snapshot into the store inside a single
// transaction. Either every account in the snapshot lands, or none do.
func Reconcile(db *database.Database, snap *scanner.Snapshot, now time.Time) (RunCounts, error) {
	var counts RunCounts

	tx, err := db.BeginBatch()
	if err != nil {
		return counts, fmt.Errorf("failed to begin reconciliation: %w", err)
	}

	for _, account := range snap.Accounts {
		if err = reconcileAccount(db, tx, account, now, &counts); err != nil {
			break
		}
	}

	if endErr := db.EndBatch(tx, err); endErr != nil {
		return RunCounts{}, endErr
	}

	metrics.IndexerEntitiesCreated.WithLabelValues("account").Add(float64(counts.AccountsCreated))
	metrics.IndexerEntitiesCreated.WithLabelValues("post").Add(float64(counts.PostsCreated))
	metrics.IndexerEntitiesCreated.WithLabelValues("media").Add(float64(counts.MediaCreated))
	metrics.IndexerEntitiesCreated.WithLabelValues("profile_pic").Add(float64(counts.ProfilePicsCreated))
	metrics.IndexerEntitiesCreated.WithLabelValues("tag").Add(float64(counts.TagsCreated))
	metrics.IndexerEntitiesCreated.WithLabelValues("highlight").Add(float64(counts.HighlightsCreated))

	logging.Info("Reconciled %d accounts: %d new posts, %d new media, %d new tags",
		len(snap.Accounts), counts.PostsCreated, counts.MediaCreated, counts.TagsCreated)
	return counts, nil
}

func reconcileAccount(db *database.Database, tx *sql.Tx, account scanner.AccountSnapshot, now time.Time, counts *RunCounts) error {
	accountExisted, err := db.AccountExists(tx, account.ID)
	if err != nil {
		return fmt.Errorf("failed to look up account %s: %w", account.ID, err)
	}
	if !accountExisted {
		counts.AccountsCreated++
	}

	// Profile pics are sorted ascending by takenAt, so the last one is the
	// account's current picture.
	var latestPic string
	if len(account.ProfilePics) > 0 {
		latestPic = account.ProfilePics[len(account.ProfilePics)-1].Filename
	}

	if err := db.UpsertAccount(tx, account.ID, latestPic, now); err != nil {
		return err
	}

	for _, post := range account.Posts {
		if err := reconcilePost(db, tx, post, counts); err != nil {
			return err
		}
	}

	created, err := db.ReplaceProfilePics(tx, account.ID, toDBProfilePics(account.ProfilePics))
	if err != nil {
		return err
	}
	if !accountExisted {
		counts.ProfilePicsCreated += created
	}

	for _, highlight := range account.Highlights {
		existed, err := db.HighlightExists(tx, account.ID, highlight.Title)
		if err != nil {
			return fmt.Errorf("failed to look up highlight %s/%s: %w", account.ID, highlight.Title, err)
		}
		if !existed {
			counts.HighlightsCreated++
		}
		if err := db.UpsertHighlight(tx, account.ID, highlight.Title, highlight.Cover); err != nil {
			return err
		}
		if err := db.UpdateHighlightMedia(tx, account.ID, highlight.Title, toDBMedia(highlight.Media)); err != nil {
			return err
		}
	}

	return nil
}

func reconcilePost(db *database.Database, tx *sql.Tx, post scanner.Post, counts *RunCounts) error {
	existed, err := db.PostExists(tx, post.AccountID, post.ID)
	if err != nil {
		return fmt.Errorf("failed to look up post %s/%s: %w", post.AccountID, post.ID, err)
	}
	if !existed {
		counts.PostsCreated++
		// Media created with a brand-new post is counted; media churn on a
		// known post is a replace, not a creation.
		counts.MediaCreated += len(post.Media)
	}

	if err := db.UpsertPost(tx, post.AccountID, post.ID, post.PostedAt, string(post.Type), post.Caption, post.HasText); err != nil {
		return err
	}
	if err := db.ReplacePostMedia(tx, post.AccountID, post.ID, toDBMedia(post.Media)); err != nil {
		return err
	}

	tagIDs := make([]int64, 0, len(post.Tags))
	for _, tag := range post.Tags {
		id, created, err := db.GetOrCreateTag(tx, tag)
		if err != nil {
			return err
		}
		if created {
			counts.TagsCreated++
		}
		tagIDs = append(tagIDs, id)
	}
	if err := db.ReplacePostTags(tx, post.AccountID, post.ID, tagIDs); err != nil {
		return err
	}

	return db.UpsertPostText(tx, post.AccountID, post.ID, post.Caption)
}

func toDBMedia(media []scanner.Media) []database.Media {
	out := make([]database.Media, len(media))
	for i, m := range media {
		out[i] = database.Media{
			Filename:   m.Filename,
			OrderIndex: m.OrderIndex,
			MimeType:   m.Mime,
		}
	}
	return out
}

func toDBProfilePics(pics []scanner.ProfilePic) []database.ProfilePic {
	out := make([]database.ProfilePic, len(pics))
	for i, pic := range pics {
		out[i] = database.ProfilePic{
			TakenAt:  pic.TakenAt,
			Filename: pic.Filename,
		}
	}
	return out
}
