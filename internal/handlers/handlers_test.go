package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"insta-archive/internal/cache"
	"insta-archive/internal/database"
	"insta-archive/internal/indexer"
	"insta-archive/internal/scanner"
)

type testEnv struct {
	handlers *Handlers
	router   *mux.Router
	coord    *indexer.Coordinator
	db       *database.Database
	dataDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dataDir := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	cch := cache.New(time.Minute)
	coord := indexer.New(db, scanner.New(dataDir), cch)
	h := New(db, coord, cch, dataDir)

	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.Version).Methods(http.MethodGet)
	r.HandleFunc("/api/reindex", h.TriggerReindex).Methods(http.MethodPost)
	r.HandleFunc("/api/indexer/status", h.IndexerStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts", h.ListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{id}", h.GetAccount).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{id}/posts", h.ListAccountPosts).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{id}/highlights", h.ListAccountHighlights).Methods(http.MethodGet)
	r.HandleFunc("/api/posts/{account}/{id}", h.GetPost).Methods(http.MethodGet)
	r.HandleFunc("/api/tags", h.ListTags).Methods(http.MethodGet)
	r.HandleFunc("/api/tags/{tag}/posts", h.ListTagPosts).Methods(http.MethodGet)
	r.HandleFunc("/api/search", h.SearchPosts).Methods(http.MethodGet)

	return &testEnv{handlers: h, router: r, coord: coord, db: db, dataDir: dataDir}
}

// seedAccount writes a small export tree: one post with two media files,
// a caption with a hashtag, and a profile picture.
func (e *testEnv) seedAccount(t *testing.T, id string) {
	t.Helper()
	dir := filepath.Join(e.dataDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"2024-01-01_10-00-00_UTC_1.jpg":           "x",
		"2024-01-01_10-00-00_UTC_2.jpg":           "x",
		"2024-01-01_10-00-00_UTC.txt":             "hi #test",
		"2024-01-01_09-00-00_UTC_profile_pic.jpg": "x",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func (e *testEnv) index(t *testing.T) {
	t.Helper()
	if err := e.coord.TriggerAndWait(context.Background(), "test"); err != nil {
		t.Fatalf("index run: %v", err)
	}
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadinessLifecycle(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.get("/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before first run = %d, want 503", rec.Code)
	}

	env.index(t)

	if rec := env.get("/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz after first run = %d, want 200", rec.Code)
	}
	if rec := env.get("/health"); rec.Code != http.StatusOK {
		t.Errorf("health = %d, want 200", rec.Code)
	}
}

func TestLiveness(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.get("/livez"); rec.Code != http.StatusOK {
		t.Errorf("livez = %d, want 200", rec.Code)
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("version = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] == "" {
		t.Error("missing version field")
	}
}

func TestTriggerReindexAndWait(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acct1")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reindex?wait=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reindex = %d: %s", rec.Code, rec.Body.String())
	}

	var status indexer.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.State != indexer.StateSuccess {
		t.Errorf("state = %q, want success", status.State)
	}
	if status.LastCounts == nil || status.LastCounts.AccountsCreated != 1 {
		t.Errorf("counts = %+v", status.LastCounts)
	}
}

func TestTriggerReindexAsync(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reindex", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("reindex = %d, want 202", rec.Code)
	}
}

func TestListAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acct1")
	env.index(t)

	rec := env.get("/api/accounts")
	if rec.Code != http.StatusOK {
		t.Fatalf("accounts = %d", rec.Code)
	}

	var accounts []database.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "acct1" {
		t.Errorf("accounts = %+v", accounts)
	}
	if accounts[0].LatestProfilePic != "2024-01-01_09-00-00_UTC_profile_pic.jpg" {
		t.Errorf("LatestProfilePic = %q", accounts[0].LatestProfilePic)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.index(t)

	if rec := env.get("/api/accounts/nobody"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown account = %d, want 404", rec.Code)
	}
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acct1")
	env.index(t)

	rec := env.get("/api/posts/acct1/2024-01-01_10-00-00_UTC")
	if rec.Code != http.StatusOK {
		t.Fatalf("post = %d", rec.Code)
	}

	var post database.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &post); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(post.Media) != 2 || !post.HasText {
		t.Errorf("post = %+v", post)
	}
	if len(post.Tags) != 1 || post.Tags[0] != "test" {
		t.Errorf("tags = %v", post.Tags)
	}

	if rec := env.get("/api/posts/acct1/2099-01-01_00-00-00_UTC"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown post = %d, want 404", rec.Code)
	}
}

func TestListTagsAndTagPosts(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acct1")
	env.index(t)

	rec := env.get("/api/tags")
	if rec.Code != http.StatusOK {
		t.Fatalf("tags = %d", rec.Code)
	}
	var tags []database.Tag
	if err := json.Unmarshal(rec.Body.Bytes(), &tags); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "test" || tags[0].PostCount != 1 {
		t.Errorf("tags = %+v", tags)
	}

	rec = env.get("/api/tags/test/posts")
	if rec.Code != http.StatusOK {
		t.Fatalf("tag posts = %d", rec.Code)
	}
	var posts []database.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &posts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "2024-01-01_10-00-00_UTC" {
		t.Errorf("posts = %+v", posts)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acct1")
	env.index(t)

	if rec := env.get("/api/search"); rec.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", rec.Code)
	}

	rec := env.get("/api/search?q=test")
	if !env.db.FTSEnabled() {
		// Built without the sqlite_fts5 tag: the endpoint reports the
		// feature as unavailable instead of erroring.
		if rec.Code != http.StatusNotImplemented {
			t.Fatalf("search without FTS5 = %d, want 501", rec.Code)
		}
		return
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("search = %d", rec.Code)
	}
	var posts []database.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &posts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("results = %d, want 1", len(posts))
	}
}

func TestCacheInvalidatedByRun(t *testing.T) {
	env := newTestEnv(t)
	env.index(t)

	// Prime the cache with an empty account list.
	rec := env.get("/api/accounts")
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("accounts = %q, want empty list", body)
	}

	// New data lands, the run must clear the cached empty list.
	env.seedAccount(t, "acct1")
	env.index(t)

	rec = env.get("/api/accounts")
	var accounts []database.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("accounts after rerun = %d, want 1", len(accounts))
	}
}
