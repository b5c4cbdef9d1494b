package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// The methods in this file are the write side of reconciliation. They all
// operate on the transaction passed in and never touch d.db directly, so
// a failed run rolls back without leaving partial state.

// AccountExists reports whether an account row exists.
func (d *Database) AccountExists(tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(context.Background(),
		"SELECT 1 FROM accounts WHERE id = ?", id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpsertAccount creates or updates an account row. latestPic is the
// filename of the most recent profile picture, empty when there is none.
func (d *Database) UpsertAccount(tx *sql.Tx, id, latestPic string, indexedAt time.Time) error {
	var pic sql.NullString
	if latestPic != "" {
		pic = sql.NullString{String: latestPic, Valid: true}
	}

	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO accounts (id, latest_profile_pic, last_indexed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			latest_profile_pic = excluded.latest_profile_pic,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = strftime('%s', 'now')
	`, id, pic, indexedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", id, err)
	}
	return nil
}

// PostExists reports whether a post row exists.
func (d *Database) PostExists(tx *sql.Tx, accountID, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(context.Background(),
		"SELECT 1 FROM posts WHERE account_id = ? AND id = ?", accountID, id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpsertPost creates or updates the core post fields.
func (d *Database) UpsertPost(tx *sql.Tx, accountID, id string, postedAt time.Time, postType, caption string, hasText bool) error {
	var captionVal sql.NullString
	if caption != "" {
		captionVal = sql.NullString{String: caption, Valid: true}
	}

	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO posts (account_id, id, posted_at, type, caption, has_text)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			posted_at = excluded.posted_at,
			type = excluded.type,
			caption = excluded.caption,
			has_text = excluded.has_text,
			updated_at = strftime('%s', 'now')
	`, accountID, id, postedAt.Unix(), postType, captionVal, hasText)
	if err != nil {
		return fmt.Errorf("failed to upsert post %s/%s: %w", accountID, id, err)
	}
	return nil
}

// ReplacePostMedia deletes and recreates a post's media rows from the
// snapshot. Full replace, not a diff.
func (d *Database) ReplacePostMedia(tx *sql.Tx, accountID, postID string, media []Media) error {
	ctx := context.Background()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM media WHERE account_id = ? AND post_id = ?", accountID, postID,
	); err != nil {
		return fmt.Errorf("failed to clear media for %s/%s: %w", accountID, postID, err)
	}

	for _, m := range media {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO media (account_id, post_id, order_index, filename, mime_type)
			VALUES (?, ?, ?, ?, ?)
		`, accountID, postID, m.OrderIndex, m.Filename, m.MimeType); err != nil {
			return fmt.Errorf("failed to insert media %s: %w", m.Filename, err)
		}
	}
	return nil
}

// GetOrCreateTag finds a tag by name or creates it, reporting whether a
// new row was created.
func (d *Database) GetOrCreateTag(tx *sql.Tx, name string) (int64, bool, error) {
	ctx := context.Background()

	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}

	result, err := tx.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?)", name)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ReplacePostTags deletes and recreates a post's tag associations.
func (d *Database) ReplacePostTags(tx *sql.Tx, accountID, postID string, tagIDs []int64) error {
	ctx := context.Background()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM post_tags WHERE account_id = ? AND post_id = ?", accountID, postID,
	); err != nil {
		return fmt.Errorf("failed to clear tags for %s/%s: %w", accountID, postID, err)
	}

	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO post_tags (account_id, post_id, tag_id) VALUES (?, ?, ?)",
			accountID, postID, tagID,
		); err != nil {
			return fmt.Errorf("failed to tag post %s/%s: %w", accountID, postID, err)
		}
	}
	return nil
}

// UpsertPostText creates or updates the post's text-content row.
func (d *Database) UpsertPostText(tx *sql.Tx, accountID, postID, content string) error {
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO post_texts (account_id, post_id, content)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id, post_id) DO UPDATE SET
			content = excluded.content
	`, accountID, postID, content)
	if err != nil {
		return fmt.Errorf("failed to upsert text for %s/%s: %w", accountID, postID, err)
	}
	return nil
}

// ReplaceProfilePics deletes and recreates an account's profile picture
// rows, returning the number created.
func (d *Database) ReplaceProfilePics(tx *sql.Tx, accountID string, pics []ProfilePic) (int, error) {
	ctx := context.Background()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM profile_pics WHERE account_id = ?", accountID,
	); err != nil {
		return 0, fmt.Errorf("failed to clear profile pics for %s: %w", accountID, err)
	}

	for _, pic := range pics {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO profile_pics (account_id, taken_at, filename) VALUES (?, ?, ?)",
			accountID, pic.TakenAt.Unix(), pic.Filename,
		); err != nil {
			return 0, fmt.Errorf("failed to insert profile pic %s: %w", pic.Filename, err)
		}
	}
	return len(pics), nil
}

// HighlightExists reports whether a highlight row exists.
func (d *Database) HighlightExists(tx *sql.Tx, accountID, title string) (bool, error) {
	var one int
	err := tx.QueryRowContext(context.Background(),
		"SELECT 1 FROM highlights WHERE account_id = ? AND title = ?", accountID, title,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpsertHighlight creates or updates a highlight row.
func (d *Database) UpsertHighlight(tx *sql.Tx, accountID, title, cover string) error {
	var coverMedia sql.NullString
	if cover != "" {
		coverMedia = sql.NullString{String: cover, Valid: true}
	}

	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO highlights (account_id, title, cover_media)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id, title) DO UPDATE SET
			cover_media = excluded.cover_media,
			updated_at = strftime('%s', 'now')
	`, accountID, title, coverMedia)
	if err != nil {
		return fmt.Errorf("failed to upsert highlight %s/%s: %w", accountID, title, err)
	}
	return nil
}

// UpdateHighlightMedia upserts the highlight's media rows in place and
// trims any rows past the new set. The media set is updated, not
// deleted-and-recreated.
func (d *Database) UpdateHighlightMedia(tx *sql.Tx, accountID, title string, media []Media) error {
	ctx := context.Background()

	for _, m := range media {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO highlight_media (account_id, title, order_index, filename, mime_type)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, title, order_index) DO UPDATE SET
				filename = excluded.filename,
				mime_type = excluded.mime_type
		`, accountID, title, m.OrderIndex, m.Filename, m.MimeType); err != nil {
			return fmt.Errorf("failed to upsert highlight media %s: %w", m.Filename, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM highlight_media WHERE account_id = ? AND title = ? AND order_index >= ?",
		accountID, title, len(media),
	); err != nil {
		return fmt.Errorf("failed to trim highlight media for %s/%s: %w", accountID, title, err)
	}
	return nil
}
