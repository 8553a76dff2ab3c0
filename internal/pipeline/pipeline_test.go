package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoronov/demorelay/internal/logging"
	"github.com/avoronov/demorelay/internal/server/models"
	"github.com/avoronov/demorelay/internal/server/repositories/matches"
)

type fakeStore struct {
	mu        sync.Mutex
	resolved  []*models.Match
	findErr   error
	claimOK   bool
	claimErr  error
	updates   map[string][]matches.Update
	updateErr error
}

func newFakeStore(resolved ...*models.Match) *fakeStore {
	return &fakeStore{resolved: resolved, claimOK: true, updates: make(map[string][]matches.Update)}
}

func (f *fakeStore) FindByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error) {
	return f.resolved, f.findErr
}

func (f *fakeStore) TryClaim(ctx context.Context, code string, from, to models.MatchStatus) (bool, error) {
	return f.claimOK, f.claimErr
}

func (f *fakeStore) Update(ctx context.Context, code string, upd matches.Update) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[code] = append(f.updates[code], upd)
	return nil
}

func (f *fakeStore) statuses(code string) []models.MatchStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MatchStatus
	for _, u := range f.updates[code] {
		if u.Status != nil {
			out = append(out, *u.Status)
		}
	}
	return out
}

type fakeUploader struct {
	mu   sync.Mutex
	name string
	body string
	ref  string
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name = name
	f.body = string(data)
	return f.ref, nil
}

func gzipped(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func artifactServer(t *testing.T, body []byte, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func scratchIsEmpty(t *testing.T, dir string) bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries) == 0
}

func TestTick_ProcessesResolvedMatch(t *testing.T) {
	srv := artifactServer(t, gzipped(t, "demo-bytes"), http.StatusOK)

	m := &models.Match{
		MatchCode:   "CODE-A",
		MatchID:     "3123456789",
		Status:      models.StatusResolved,
		ArtifactURL: srv.URL + "/match730_003.dem.gz",
	}
	store := newFakeStore(m)
	uploader := &fakeUploader{ref: "msg-42"}
	dir := t.TempDir()

	p := NewPipeline(store, uploader, dir, logging.NewNopLogger())
	p.Tick(context.Background())

	assert.Equal(t, []models.MatchStatus{
		models.StatusDownloaded,
		models.StatusUploading,
		models.StatusUploaded,
	}, store.statuses("CODE-A"))

	last := store.updates["CODE-A"][len(store.updates["CODE-A"])-1]
	require.NotNil(t, last.UploadRef)
	assert.Equal(t, "msg-42", *last.UploadRef)

	assert.Equal(t, "match730_003.dem", uploader.name)
	assert.Equal(t, "demo-bytes", uploader.body)
	assert.True(t, scratchIsEmpty(t, dir))
}

func TestTick_PassthroughForUncompressedArtifact(t *testing.T) {
	srv := artifactServer(t, []byte("plain-demo"), http.StatusOK)

	m := &models.Match{
		MatchCode:   "CODE-A",
		MatchID:     "3123456789",
		ArtifactURL: srv.URL + "/match730_003.dem",
	}
	store := newFakeStore(m)
	uploader := &fakeUploader{ref: "msg-1"}

	p := NewPipeline(store, uploader, t.TempDir(), logging.NewNopLogger())
	p.Tick(context.Background())

	assert.Equal(t, "plain-demo", uploader.body)
	assert.Equal(t, "match730_003.dem", uploader.name)
}

func TestTick_LostClaimSkipsMatch(t *testing.T) {
	m := &models.Match{MatchCode: "CODE-A", ArtifactURL: "http://replay.invalid/x.dem"}
	store := newFakeStore(m)
	store.claimOK = false
	uploader := &fakeUploader{}

	p := NewPipeline(store, uploader, t.TempDir(), logging.NewNopLogger())
	p.Tick(context.Background())

	assert.Empty(t, store.updates)
	assert.Empty(t, uploader.body)
}

func TestTick_DownloadErrorMarksFailed(t *testing.T) {
	srv := artifactServer(t, nil, http.StatusNotFound)

	m := &models.Match{MatchCode: "CODE-A", ArtifactURL: srv.URL + "/gone.dem.bz2"}
	store := newFakeStore(m)
	uploader := &fakeUploader{}
	dir := t.TempDir()

	p := NewPipeline(store, uploader, dir, logging.NewNopLogger())
	p.Tick(context.Background())

	assert.Equal(t, []models.MatchStatus{models.StatusFailed}, store.statuses("CODE-A"))
	assert.Empty(t, uploader.body)
	assert.True(t, scratchIsEmpty(t, dir))
}

func TestTick_UploadErrorMarksFailedAndCleansScratch(t *testing.T) {
	srv := artifactServer(t, gzipped(t, "demo-bytes"), http.StatusOK)

	m := &models.Match{MatchCode: "CODE-A", MatchID: "31", ArtifactURL: srv.URL + "/x.dem.gz"}
	store := newFakeStore(m)
	uploader := &fakeUploader{err: errors.New("chat not found")}
	dir := t.TempDir()

	p := NewPipeline(store, uploader, dir, logging.NewNopLogger())
	p.Tick(context.Background())

	assert.Equal(t, []models.MatchStatus{
		models.StatusDownloaded,
		models.StatusUploading,
		models.StatusFailed,
	}, store.statuses("CODE-A"))
	assert.True(t, scratchIsEmpty(t, dir))
}

func TestTick_ProcessesMatchesConcurrently(t *testing.T) {
	srv := artifactServer(t, []byte("demo"), http.StatusOK)

	store := newFakeStore(
		&models.Match{MatchCode: "CODE-A", MatchID: "1", ArtifactURL: srv.URL + "/a.dem"},
		&models.Match{MatchCode: "CODE-B", MatchID: "2", ArtifactURL: srv.URL + "/b.dem"},
		&models.Match{MatchCode: "CODE-C", MatchID: "3", ArtifactURL: srv.URL + "/c.dem"},
	)
	uploader := &fakeUploader{ref: "msg"}
	dir := t.TempDir()

	p := NewPipeline(store, uploader, dir, logging.NewNopLogger())
	p.Tick(context.Background())

	for _, code := range []string{"CODE-A", "CODE-B", "CODE-C"} {
		assert.Contains(t, store.statuses(code), models.StatusUploaded, code)
	}
	assert.True(t, scratchIsEmpty(t, dir))
}

func TestNewArtifactReader(t *testing.T) {
	t.Run("gzip", func(t *testing.T) {
		r, err := NewArtifactReader("match.dem.gz", bytes.NewReader(gzipped(t, "hello")))
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("passthrough", func(t *testing.T) {
		r, err := NewArtifactReader("match.dem", strings.NewReader("hello"))
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		_, err := NewArtifactReader("match.dem.gz", strings.NewReader("not gzip"))
		require.Error(t, err)
	})
}

func TestDemoName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://replay.example/003/match730_003.dem.bz2", "match730_003.dem"},
		{"http://replay.example/003/match730_003.dem.gz", "match730_003.dem"},
		{"http://replay.example/003/match730_003.dem", "match730_003.dem"},
		{"", "3123.dem"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, demoName(tt.url, "3123"))
	}
}
