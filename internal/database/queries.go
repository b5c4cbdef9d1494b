package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"insta-archive/internal/logging"
)

// ErrSearchUnavailable is returned by SearchPosts when the SQLite library
// was built without the FTS5 module (no sqlite_fts5 build tag).
var ErrSearchUnavailable = errors.New("full-text search unavailable: SQLite built without FTS5")

// closeRows closes a row set, logging the error since readers have
// already consumed what they need.
func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Error("error closing rows: %v", err)
	}
}

// ListAccounts returns all accounts in ascending id order.
func (d *Database) ListAccounts(ctx context.Context) ([]Account, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_accounts", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, latest_profile_pic, last_indexed_at, created_at, updated_at
		FROM accounts ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var accounts []Account
	for rows.Next() {
		account, scanErr := scanAccount(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		accounts = append(accounts, account)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetAccount returns one account by id, or sql.ErrNoRows.
func (d *Database) GetAccount(ctx context.Context, id string) (*Account, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_account", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, latest_profile_pic, last_indexed_at, created_at, updated_at
		FROM accounts WHERE id = ?
	`, id)

	account, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (Account, error) {
	var account Account
	var pic sql.NullString
	var lastIndexed, createdAt, updatedAt int64

	if err := row.Scan(&account.ID, &pic, &lastIndexed, &createdAt, &updatedAt); err != nil {
		return Account{}, err
	}
	if pic.Valid {
		account.LatestProfilePic = pic.String
	}
	account.LastIndexedAt = time.Unix(lastIndexed, 0).UTC()
	account.CreatedAt = time.Unix(createdAt, 0).UTC()
	account.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return account, nil
}

// ListPosts returns an account's posts in descending postedAt order, each
// with its media and tags attached.
func (d *Database) ListPosts(ctx context.Context, accountID string) ([]Post, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_posts", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT account_id, id, posted_at, type, caption, has_text
		FROM posts WHERE account_id = ?
		ORDER BY posted_at DESC, id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var posts []Post
	for rows.Next() {
		post, scanErr := scanPost(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range posts {
		if err = d.attachPostChildren(ctx, &posts[i]); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// GetPost returns one post with media and tags, or sql.ErrNoRows.
func (d *Database) GetPost(ctx context.Context, accountID, id string) (*Post, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_post", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT account_id, id, posted_at, type, caption, has_text
		FROM posts WHERE account_id = ? AND id = ?
	`, accountID, id)

	post, err := scanPost(row)
	if err != nil {
		return nil, err
	}
	if err = d.attachPostChildren(ctx, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func scanPost(row rowScanner) (Post, error) {
	var post Post
	var caption sql.NullString
	var postedAt int64

	if err := row.Scan(&post.AccountID, &post.ID, &postedAt, &post.Type, &caption, &post.HasText); err != nil {
		return Post{}, err
	}
	if caption.Valid {
		post.Caption = caption.String
	}
	post.PostedAt = time.Unix(postedAt, 0).UTC()
	return post, nil
}

// attachPostChildren loads media and tags for a post. Caller must hold at
// least a read lock.
func (d *Database) attachPostChildren(ctx context.Context, post *Post) error {
	mediaRows, err := d.db.QueryContext(ctx, `
		SELECT filename, order_index, mime_type, width, height, duration
		FROM media WHERE account_id = ? AND post_id = ?
		ORDER BY order_index
	`, post.AccountID, post.ID)
	if err != nil {
		return err
	}
	defer closeRows(mediaRows)

	for mediaRows.Next() {
		var m Media
		var mime sql.NullString
		if err := mediaRows.Scan(&m.Filename, &m.OrderIndex, &mime, &m.Width, &m.Height, &m.Duration); err != nil {
			return err
		}
		if mime.Valid {
			m.MimeType = mime.String
		}
		post.Media = append(post.Media, m)
	}
	if err := mediaRows.Err(); err != nil {
		return err
	}

	tagRows, err := d.db.QueryContext(ctx, `
		SELECT t.name
		FROM tags t
		INNER JOIN post_tags pt ON t.id = pt.tag_id
		WHERE pt.account_id = ? AND pt.post_id = ?
		ORDER BY t.name
	`, post.AccountID, post.ID)
	if err != nil {
		return err
	}
	defer closeRows(tagRows)

	for tagRows.Next() {
		var name string
		if err := tagRows.Scan(&name); err != nil {
			return err
		}
		post.Tags = append(post.Tags, name)
	}
	return tagRows.Err()
}

// ListTags returns all tags with their post counts, most used first.
func (d *Database) ListTags(ctx context.Context) ([]Tag, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_tags", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at, COUNT(pt.tag_id)
		FROM tags t
		LEFT JOIN post_tags pt ON t.id = pt.tag_id
		GROUP BY t.id
		ORDER BY COUNT(pt.tag_id) DESC, t.name
	`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var tags []Tag
	for rows.Next() {
		var tag Tag
		var createdAt int64
		if err = rows.Scan(&tag.ID, &tag.Name, &createdAt, &tag.PostCount); err != nil {
			return nil, err
		}
		tag.CreatedAt = time.Unix(createdAt, 0).UTC()
		tags = append(tags, tag)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// ListPostsByTag returns all posts carrying the given tag, newest first.
func (d *Database) ListPostsByTag(ctx context.Context, tag string) ([]Post, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_posts_by_tag", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT p.account_id, p.id, p.posted_at, p.type, p.caption, p.has_text
		FROM posts p
		INNER JOIN post_tags pt ON pt.account_id = p.account_id AND pt.post_id = p.id
		INNER JOIN tags t ON t.id = pt.tag_id
		WHERE t.name = ?
		ORDER BY p.posted_at DESC, p.id
	`, tag)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var posts []Post
	for rows.Next() {
		post, scanErr := scanPost(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range posts {
		if err = d.attachPostChildren(ctx, &posts[i]); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// ListProfilePics returns an account's profile pictures, oldest first.
func (d *Database) ListProfilePics(ctx context.Context, accountID string) ([]ProfilePic, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_profile_pics", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT account_id, taken_at, filename
		FROM profile_pics WHERE account_id = ?
		ORDER BY taken_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var pics []ProfilePic
	for rows.Next() {
		var pic ProfilePic
		var takenAt int64
		if err = rows.Scan(&pic.AccountID, &takenAt, &pic.Filename); err != nil {
			return nil, err
		}
		pic.TakenAt = time.Unix(takenAt, 0).UTC()
		pics = append(pics, pic)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return pics, nil
}

// ListHighlights returns an account's highlights with their media.
func (d *Database) ListHighlights(ctx context.Context, accountID string) ([]Highlight, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_highlights", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT account_id, title, cover_media
		FROM highlights WHERE account_id = ?
		ORDER BY title
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var highlights []Highlight
	for rows.Next() {
		var h Highlight
		var cover sql.NullString
		if err = rows.Scan(&h.AccountID, &h.Title, &cover); err != nil {
			return nil, err
		}
		if cover.Valid {
			h.Cover = cover.String
		}
		highlights = append(highlights, h)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range highlights {
		h := &highlights[i]
		mediaRows, mErr := d.db.QueryContext(ctx, `
			SELECT filename, order_index, mime_type
			FROM highlight_media WHERE account_id = ? AND title = ?
			ORDER BY order_index
		`, h.AccountID, h.Title)
		if mErr != nil {
			err = mErr
			return nil, err
		}
		for mediaRows.Next() {
			var m Media
			var mime sql.NullString
			if err = mediaRows.Scan(&m.Filename, &m.OrderIndex, &mime); err != nil {
				closeRows(mediaRows)
				return nil, err
			}
			if mime.Valid {
				m.MimeType = mime.String
			}
			h.Media = append(h.Media, m)
		}
		err = mediaRows.Err()
		closeRows(mediaRows)
		if err != nil {
			return nil, err
		}
	}
	return highlights, nil
}

// SearchPosts runs a full-text query over captions, newest match first.
func (d *Database) SearchPosts(ctx context.Context, query string, limit int) ([]Post, error) {
	if !d.ftsEnabled {
		return nil, ErrSearchUnavailable
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("search_posts", start, err) }()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT p.account_id, p.id, p.posted_at, p.type, p.caption, p.has_text
		FROM posts p
		INNER JOIN posts_fts f ON f.rowid = p.rowid
		WHERE posts_fts MATCH ?
		ORDER BY p.posted_at DESC
		LIMIT ?
	`, escapeFTSQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var posts []Post
	for rows.Next() {
		post, scanErr := scanPost(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		posts = append(posts, post)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// escapeFTSQuery quotes the user's query so FTS5 treats it as a plain
// string match instead of query syntax.
func escapeFTSQuery(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}
