package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biscuitvixen/e6-dl/pkg/e621"
	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/pooldb"
)

// fakeClient serves posts from memory and counts every call
type fakeClient struct {
	mu       sync.Mutex
	posts    map[int]*e621.Post
	fail     map[int]error
	resolves atomic.Int32
	fetches  atomic.Int32
	onFetch  func(post *e621.Post)
}

func newFakeClient() *fakeClient {
	return &fakeClient{posts: map[int]*e621.Post{}, fail: map[int]error{}}
}

func (f *fakeClient) add(id int, ext string) {
	f.posts[id] = &e621.Post{ID: id, Ext: ext, FileURL: fmt.Sprintf("https://static1.e621.net/data/%d.%s", id, ext)}
}

func (f *fakeClient) ResolvePost(ctx context.Context, ref e621.PostRef) (*e621.Post, error) {
	f.resolves.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[ref.ID]
	if !ok {
		return nil, errs.NotFound("post %d does not exist", ref.ID)
	}
	resolved := *post
	resolved.Page = ref.Page
	return &resolved, nil
}

func (f *fakeClient) FetchPostMedia(ctx context.Context, post *e621.Post) (io.ReadCloser, error) {
	f.fetches.Add(1)
	if f.onFetch != nil {
		f.onFetch(post)
	}
	if err := f.fail[post.ID]; err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(fmt.Sprintf("post-%d", post.ID))), nil
}

// failingRecorder rejects one post
type failingRecorder struct {
	inner  Recorder
	postID int
}

func (r *failingRecorder) RecordDownload(meta *pooldb.PoolRecord, postID, page int, file string) error {
	if postID == r.postID {
		return errors.New("disk full")
	}
	return r.inner.RecordDownload(meta, postID, page, file)
}

type fixture struct {
	root    string
	client  *fakeClient
	store   *pooldb.Store
	tracker *pooldb.Tracker
	log     *logger.TestLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store := pooldb.NewStore(filepath.Join(t.TempDir(), "pools.json"), nil)
	return &fixture{
		root:    root,
		client:  newFakeClient(),
		store:   store,
		tracker: pooldb.NewTracker(store, pooldb.New()),
		log:     logger.NewTestLogger(),
	}
}

func (f *fixture) downloader(concurrency int) *Downloader {
	return New(f.client, f.tracker, Options{Root: f.root, SiteURL: "https://e621.net", Concurrency: concurrency}, f.log)
}

// tenPostPool has post IDs in descending order so pages never match IDs
func (f *fixture) tenPostPool() *e621.Pool {
	pool := &e621.Pool{ID: 77, Name: "Ten Pages", Artist: "fox"}
	for i := 0; i < 10; i++ {
		id := 1000 - i*7
		ext := "png"
		if i%3 == 0 {
			ext = "jpg"
		}
		f.client.add(id, ext)
		pool.Posts = append(pool.Posts, e621.PostRef{ID: id, Page: i + 1})
	}
	return pool
}

func (f *fixture) recorded(t *testing.T, poolID int) *pooldb.PoolRecord {
	t.Helper()
	db, err := f.store.Load()
	require.NoError(t, err)
	rec, ok := db.Get(poolID)
	require.True(t, ok, "pool %d not in database", poolID)
	return rec
}

func TestDownloadPoolWritesPageNumberedFiles(t *testing.T) {
	f := newFixture(t)
	pool := f.tenPostPool()
	d := f.downloader(3)

	summary, err := d.DownloadPool(context.Background(), pool, d.TargetDir(pool), nil)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Succeeded)
	assert.True(t, summary.OK())
	assert.Equal(t, "Ten Pages by fox", summary.Folder)

	dir := filepath.Join(f.root, "Ten Pages by fox")
	for _, ref := range pool.Posts {
		post := f.client.posts[ref.ID]
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("%d.%s", ref.Page, post.Ext)))
		require.NoError(t, err, "page %d", ref.Page)
		assert.Equal(t, fmt.Sprintf("post-%d", ref.ID), string(data))
	}

	shortcut, err := os.ReadFile(filepath.Join(dir, "Ten Pages by fox.url"))
	require.NoError(t, err)
	assert.Equal(t, "[InternetShortcut]\nURL=https://e621.net/pools/77\n", string(shortcut))

	rec := f.recorded(t, 77)
	assert.Len(t, rec.Downloaded, 10)
	assert.Equal(t, "Ten Pages by fox", rec.Folder)
	assert.Equal(t, 4, rec.Downloaded[1000-3*7].Page)
}

func TestDownloadPoolOneFailure(t *testing.T) {
	f := newFixture(t)
	pool := f.tenPostPool()
	failing := pool.Posts[4]
	f.client.fail[failing.ID] = errs.NotFound("post %d has no file URL", failing.ID)
	d := f.downloader(2)

	summary, err := d.DownloadPool(context.Background(), pool, d.TargetDir(pool), nil)
	require.NoError(t, err)

	assert.Equal(t, 9, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.FailedEntirely())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, failing.ID, summary.Failures[0].PostID)
	assert.Equal(t, 5, summary.Failures[0].Page)
	assert.True(t, errs.IsNotFound(summary.Failures[0].Err))

	entries, err := os.ReadDir(filepath.Join(f.root, "Ten Pages by fox"))
	require.NoError(t, err)
	assert.Len(t, entries, 10, "9 media files and the shortcut")

	rec := f.recorded(t, 77)
	assert.Len(t, rec.Downloaded, 9)
	assert.False(t, rec.Has(failing.ID))
	assert.Len(t, f.log.GetMessagesByLevel("WARN"), 1)
}

func TestDownloadPoolSkipsDeletedPosts(t *testing.T) {
	f := newFixture(t)
	f.client.add(1, "png")
	f.client.add(2, "png")
	f.client.posts[2].Deleted = true
	pool := &e621.Pool{ID: 5, Name: "p", Artist: "a", Posts: []e621.PostRef{{ID: 1, Page: 1}, {ID: 2, Page: 2}}}
	d := f.downloader(1)

	summary, err := d.DownloadPool(context.Background(), pool, d.TargetDir(pool), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, errs.IsNotFound(summary.Failures[0].Err))
	assert.Equal(t, int32(1), f.client.fetches.Load(), "deleted posts are never fetched")
}

func TestDownloadPoolRerunFetchesNothing(t *testing.T) {
	f := newFixture(t)
	pool := f.tenPostPool()
	d := f.downloader(2)

	_, err := d.DownloadPool(context.Background(), pool, d.TargetDir(pool), nil)
	require.NoError(t, err)
	f.client.resolves.Store(0)
	f.client.fetches.Store(0)

	rec := f.recorded(t, 77)
	summary, err := d.DownloadPool(context.Background(), pool, rec.Dir(f.root), rec.DownloadedIDs())
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Skipped)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, int32(0), f.client.resolves.Load())
	assert.Equal(t, int32(0), f.client.fetches.Load())
}

func TestDownloadPoolOnlyMissingPosts(t *testing.T) {
	f := newFixture(t)
	pool := f.tenPostPool()
	d := f.downloader(4)

	existing := map[int]bool{}
	for _, ref := range pool.Posts {
		if ref.Page != 3 && ref.Page != 7 {
			existing[ref.ID] = true
		}
	}

	var fetched sync.Map
	f.client.onFetch = func(post *e621.Post) { fetched.Store(post.Page, true) }

	summary, err := d.DownloadPool(context.Background(), pool, d.TargetDir(pool), existing)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 8, summary.Skipped)

	pages := []int{}
	fetched.Range(func(k, _ interface{}) bool { pages = append(pages, k.(int)); return true })
	assert.ElementsMatch(t, []int{3, 7}, pages)
}

func TestDownloadPoolCancelled(t *testing.T) {
	f := newFixture(t)
	pool := f.tenPostPool()
	d := f.downloader(1)

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	f.client.onFetch = func(post *e621.Post) { once.Do(cancel) }

	summary, err := d.DownloadPool(ctx, pool, d.TargetDir(pool), nil)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Succeeded+summary.Failed+summary.Cancelled)
	assert.Equal(t, 0, summary.Failed)
	assert.Greater(t, summary.Cancelled, 0)
	assert.False(t, summary.OK())
	assert.LessOrEqual(t, f.client.fetches.Load(), int32(1))

	if summary.Succeeded > 0 {
		rec := f.recorded(t, 77)
		assert.Len(t, rec.Downloaded, summary.Succeeded)
	}
}

func TestDownloadPoolStopsWhenFolderBreaks(t *testing.T) {
	f := newFixture(t)
	pool := f.tenPostPool()
	d := f.downloader(1)
	dir := d.TargetDir(pool)

	var once sync.Once
	f.client.onFetch = func(post *e621.Post) {
		once.Do(func() {
			assert.NoError(t, os.RemoveAll(dir))
			assert.NoError(t, os.WriteFile(dir, nil, 0644))
		})
	}

	summary, err := d.DownloadPool(context.Background(), pool, dir, nil)
	require.NoError(t, err)

	require.Error(t, summary.Aborted)
	assert.True(t, errs.IsFilesystem(summary.Aborted))
	assert.False(t, summary.OK())
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 10, summary.Succeeded+summary.Failed+summary.Cancelled)
	assert.GreaterOrEqual(t, summary.Cancelled, 7)
	// one worker can pick up at most two more posts before the pool stops
	assert.LessOrEqual(t, f.client.fetches.Load(), int32(3))
	assert.True(t, f.log.HasMessage("Pool folder is not writable, stopping pool"))
}

func TestDownloadPoolRecordFailure(t *testing.T) {
	f := newFixture(t)
	pool := f.tenPostPool()
	d := New(f.client, &failingRecorder{inner: f.tracker, postID: pool.Posts[0].ID},
		Options{Root: f.root, Concurrency: 2}, f.log)

	summary, err := d.DownloadPool(context.Background(), pool, d.TargetDir(pool), nil)
	require.NoError(t, err)
	assert.Equal(t, 9, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Failures[0].Err.Error(), "disk full")
}

func TestDownloadPoolUnwritableRoot(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(f.root, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	pool := f.tenPostPool()
	d := New(f.client, f.tracker, Options{Root: blocker}, nil)

	_, err := d.DownloadPool(context.Background(), pool, d.TargetDir(pool), nil)
	assert.True(t, errs.IsFilesystem(err))
}

func TestNewClampsConcurrency(t *testing.T) {
	assert.Equal(t, MaxConcurrency, New(nil, nil, Options{Concurrency: 20}, nil).concurrency)
	assert.Equal(t, 1, New(nil, nil, Options{}, nil).concurrency)
}

func TestRelativeFolder(t *testing.T) {
	root := t.TempDir()
	d := New(nil, nil, Options{Root: root}, nil)
	assert.Equal(t, "Pool by A", d.relativeFolder(filepath.Join(root, "Pool by A")))

	outside := filepath.Join(filepath.Dir(root), "other")
	assert.Equal(t, outside, d.relativeFolder(outside))

	rel := New(nil, nil, Options{Root: "downloads"}, nil)
	assert.Equal(t, "x", rel.relativeFolder(filepath.Join("downloads", "x")))
}

type recordingObserver struct {
	mu       sync.Mutex
	pending  int
	started  int
	finished map[int]error
	summary  *Summary
}

func (o *recordingObserver) PoolStarted(pool *e621.Pool, pending int) { o.pending = pending }

func (o *recordingObserver) PostStarted(poolID int, ref e621.PostRef) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *recordingObserver) PostFinished(poolID int, ref e621.PostRef, size int64, err error) {
	o.finished[ref.ID] = err
}

func (o *recordingObserver) PoolFinished(summary *Summary) { o.summary = summary }

func TestDownloadPoolNotifiesObserver(t *testing.T) {
	f := newFixture(t)
	pool := f.tenPostPool()
	f.client.fail[pool.Posts[0].ID] = errs.NotFound("gone")
	d := f.downloader(3)
	obs := &recordingObserver{finished: map[int]error{}}
	d.SetObserver(obs)

	existing := map[int]bool{pool.Posts[9].ID: true}
	summary, err := d.DownloadPool(context.Background(), pool, d.TargetDir(pool), existing)
	require.NoError(t, err)

	assert.Equal(t, 9, obs.pending)
	assert.Equal(t, 9, obs.started)
	assert.Len(t, obs.finished, 9)
	assert.Error(t, obs.finished[pool.Posts[0].ID])
	assert.NoError(t, obs.finished[pool.Posts[1].ID])
	assert.Same(t, summary, obs.summary)

	d.SetObserver(nil)
	_, err = d.DownloadPool(context.Background(), pool, d.TargetDir(pool), nil)
	require.NoError(t, err)
}
