package poolsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biscuitvixen/e6-dl/internal/downloader"
	"github.com/biscuitvixen/e6-dl/pkg/e621"
	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/pooldb"
)

// fakeSite plays both the pool API and the media host
type fakeSite struct {
	mu      sync.Mutex
	pools   map[int]*e621.Pool
	fetched []int
	onFetch func(post *e621.Post)
}

func newFakeSite() *fakeSite {
	return &fakeSite{pools: map[int]*e621.Pool{}}
}

func (f *fakeSite) setPool(id int, name string, postIDs ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pool := &e621.Pool{ID: id, Name: name, Artist: "fox"}
	for i, postID := range postIDs {
		pool.Posts = append(pool.Posts, e621.PostRef{ID: postID, Page: i + 1})
	}
	f.pools[id] = pool
}

func (f *fakeSite) ResolvePool(ctx context.Context, idOrURL string) (*e621.Pool, error) {
	id, err := e621.ParsePoolID(idOrURL)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pool, ok := f.pools[id]
	if !ok {
		return nil, errs.NotFound("pool %d does not exist", id)
	}
	copied := *pool
	copied.Posts = append([]e621.PostRef(nil), pool.Posts...)
	return &copied, nil
}

func (f *fakeSite) ResolvePost(ctx context.Context, ref e621.PostRef) (*e621.Post, error) {
	return &e621.Post{ID: ref.ID, Page: ref.Page, Ext: "png", FileURL: fmt.Sprintf("https://static1.e621.net/%d.png", ref.ID)}, nil
}

func (f *fakeSite) FetchPostMedia(ctx context.Context, post *e621.Post) (io.ReadCloser, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, post.Page)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(post)
	}
	return io.NopCloser(strings.NewReader(fmt.Sprintf("post-%d", post.ID))), nil
}

func (f *fakeSite) takeFetched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := f.fetched
	f.fetched = nil
	return pages
}

// answer is a scripted Confirmer
type answer struct {
	yes       bool
	err       error
	questions []string
}

func (a *answer) Confirm(question string) (bool, error) {
	a.questions = append(a.questions, question)
	return a.yes, a.err
}

type harness struct {
	root   string
	site   *fakeSite
	store  *pooldb.Store
	syncer *Syncer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		root:  t.TempDir(),
		site:  newFakeSite(),
		store: pooldb.NewStore(filepath.Join(t.TempDir(), "pools.json"), nil),
	}
	h.reload(t)
	return h
}

// reload rebuilds the syncer from the database on disk, as a new run would
func (h *harness) reload(t *testing.T) {
	t.Helper()
	db, err := h.store.Load()
	require.NoError(t, err)
	tracker := pooldb.NewTracker(h.store, db)
	log := logger.NewTestLogger()
	dl := downloader.New(h.site, tracker, downloader.Options{Root: h.root, Concurrency: 2}, log)
	h.syncer = New(h.site, dl, tracker, Options{Root: h.root, CheckConcurrency: 2}, log)
}

func (h *harness) read(t *testing.T, folder, file string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.root, folder, file))
	require.NoError(t, err)
	return string(data)
}

func TestDownloadNewPool(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(10, "Comic", 105, 103, 101)

	status := h.syncer.Download(context.Background(), "https://e621.net/pools/10")
	require.NoError(t, status.Err)
	assert.Equal(t, StateDone, status.State)
	assert.Equal(t, 3, status.Summary.Succeeded)
	assert.ElementsMatch(t, []int{1, 2, 3}, h.site.takeFetched())

	assert.Equal(t, "post-105", h.read(t, "Comic by fox", "1.png"))
	assert.Equal(t, "post-101", h.read(t, "Comic by fox", "3.png"))

	// a second run fetches nothing
	h.reload(t)
	status = h.syncer.Download(context.Background(), "10")
	assert.Equal(t, StateDone, status.State)
	assert.Equal(t, 3, status.Summary.Skipped)
	assert.Empty(t, h.site.takeFetched())
}

func TestDownloadUnknownPool(t *testing.T) {
	h := newHarness(t)
	report := h.syncer.DownloadAll(context.Background(), []string{"404", "not-a-pool"})

	require.Len(t, report.Pools, 2)
	assert.True(t, errs.IsNotFound(report.Pools[0].Err))
	assert.Equal(t, 404, report.Pools[0].PoolID)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(report.Pools[1].Err))
	assert.True(t, report.AnyFailed())
	assert.Equal(t, 2, report.Count(StateFailed))
}

func TestUpdateDownloadsOnlyMissingPages(t *testing.T) {
	h := newHarness(t)
	postIDs := []int{210, 209, 208, 207, 206, 205, 204, 203, 202, 201}
	h.site.setPool(20, "Ten", postIDs...)

	// seed a record missing pages 3 and 7
	db := pooldb.New()
	db.Upsert(20, &pooldb.PoolRecord{Name: "Ten", Artist: "fox", Folder: "Ten by fox", Downloaded: map[int]pooldb.DownloadedPost{}})
	rec, _ := db.Get(20)
	require.NoError(t, os.MkdirAll(filepath.Join(h.root, "Ten by fox"), 0755))
	for i, id := range postIDs {
		page := i + 1
		if page == 3 || page == 7 {
			continue
		}
		file := fmt.Sprintf("%d.png", page)
		rec.Downloaded[id] = pooldb.DownloadedPost{Page: page, File: file}
		require.NoError(t, os.WriteFile(filepath.Join(h.root, "Ten by fox", file), []byte(fmt.Sprintf("post-%d", id)), 0644))
	}
	require.NoError(t, h.store.Save(db))
	h.reload(t)

	confirm := &answer{yes: true}
	report, err := h.syncer.Update(context.Background(), confirm)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{3, 7}, h.site.takeFetched())
	require.Len(t, confirm.questions, 1)
	assert.Contains(t, confirm.questions[0], "2 new posts")
	assert.Equal(t, 1, report.Count(StateDone))
	assert.Equal(t, 2, report.Downloaded())
	assert.Equal(t, "post-208", h.read(t, "Ten by fox", "3.png"))
	assert.Equal(t, "post-204", h.read(t, "Ten by fox", "7.png"))

	saved, err := h.store.Load()
	require.NoError(t, err)
	stored, _ := saved.Get(20)
	assert.Len(t, stored.Downloaded, 10)
}

func TestUpdateDeclineLeavesDatabaseUntouched(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(30, "Growing", 1, 2)
	require.Equal(t, StateDone, h.syncer.Download(context.Background(), "30").State)
	h.site.takeFetched()

	before, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)

	h.site.setPool(30, "Growing", 1, 2, 3)
	h.reload(t)
	report, err := h.syncer.Update(context.Background(), &answer{yes: false})
	require.NoError(t, err)

	after, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, h.site.takeFetched())
	assert.Equal(t, 1, report.Count(StateSkipped))
}

func TestUpdateUpToDatePoolsAreNotPrompted(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(40, "Done", 1, 2)
	h.site.setPool(41, "Gone", 3)
	h.syncer.Download(context.Background(), "40")
	h.syncer.Download(context.Background(), "41")
	h.site.takeFetched()

	h.site.mu.Lock()
	delete(h.site.pools, 41)
	h.site.mu.Unlock()

	confirm := &answer{yes: true}
	report, err := h.syncer.Update(context.Background(), confirm)
	require.NoError(t, err)

	assert.Empty(t, confirm.questions)
	require.Len(t, report.Pools, 2)
	assert.Equal(t, StateUpToDate, report.Pools[0].State)
	assert.Equal(t, StateFailed, report.Pools[1].State)
	assert.True(t, errs.IsNotFound(report.Pools[1].Err))
	assert.True(t, report.AnyFailed())
}

func TestUpdateRenumbersReorderedPool(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(50, "Shuffle", 501, 502, 503, 504)
	require.Equal(t, StateDone, h.syncer.Download(context.Background(), "50").State)
	h.site.takeFetched()

	// 503 and 502 swap, 504 is removed, 505 is added at the end
	h.site.setPool(50, "Shuffle", 501, 503, 502, 505)
	h.reload(t)

	confirm := &answer{yes: true}
	report, err := h.syncer.Update(context.Background(), confirm)
	require.NoError(t, err)
	require.Len(t, confirm.questions, 1)
	assert.Contains(t, confirm.questions[0], "1 new post, 2 reordered, 1 removed")
	assert.Equal(t, StateDone, report.Pools[0].State)

	folder := "Shuffle by fox"
	assert.Equal(t, "post-501", h.read(t, folder, "1.png"))
	assert.Equal(t, "post-503", h.read(t, folder, "2.png"))
	assert.Equal(t, "post-502", h.read(t, folder, "3.png"))
	assert.Equal(t, "post-505", h.read(t, folder, "4.png"))
	assert.Equal(t, "post-504", h.read(t, folder, "removed-504.png"))
	assert.Equal(t, []int{4}, h.site.takeFetched())

	saved, err := h.store.Load()
	require.NoError(t, err)
	rec, _ := saved.Get(50)
	assert.Equal(t, pooldb.DownloadedPost{Page: 2, File: "2.png", DownloadedAt: rec.Downloaded[503].DownloadedAt}, rec.Downloaded[503])
	assert.Equal(t, "removed-504.png", rec.Downloaded[504].File)

	// nothing left to do afterwards
	h.reload(t)
	report, err = h.syncer.Update(context.Background(), confirm)
	require.NoError(t, err)
	assert.Equal(t, StateUpToDate, report.Pools[0].State)
}

func TestUpdateConfirmError(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(60, "P", 1)
	h.syncer.Download(context.Background(), "60")
	h.site.setPool(60, "P", 1, 2)
	h.reload(t)

	_, err := h.syncer.Update(context.Background(), &answer{err: io.EOF})
	assert.True(t, errors.Is(err, io.EOF))
}

func TestUpdateCancelled(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(70, "P", 1)
	h.syncer.Download(context.Background(), "70")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := h.syncer.Update(ctx, &answer{yes: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, report.Pools[0].State)
}

func TestDownloadFailsPoolWhenFolderBreaks(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(80, "Broken", 1, 2, 3, 4, 5, 6)
	dir := filepath.Join(h.root, "Broken by fox")

	var once sync.Once
	h.site.onFetch = func(post *e621.Post) {
		once.Do(func() {
			assert.NoError(t, os.RemoveAll(dir))
			assert.NoError(t, os.WriteFile(dir, nil, 0644))
		})
	}

	report := h.syncer.DownloadAll(context.Background(), []string{"80"})
	status := report.Pools[0]
	assert.Equal(t, StateFailed, status.State)
	assert.True(t, errs.IsFilesystem(status.Err))
	require.NotNil(t, status.Summary)
	assert.Greater(t, status.Summary.Cancelled, 0)
	assert.True(t, report.AnyFailed())
}

// interruptingConfirmer cancels the run while the question is open
type interruptingConfirmer struct {
	cancel  context.CancelFunc
	release chan struct{}
	asked   chan struct{}
}

func (c *interruptingConfirmer) Confirm(question string) (bool, error) {
	close(c.asked)
	if c.cancel != nil {
		c.cancel()
	}
	if c.release != nil {
		<-c.release
	}
	return true, nil
}

func TestUpdateInterruptedAtPrompt(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(90, "P", 1)
	h.syncer.Download(context.Background(), "90")
	h.site.takeFetched()
	h.site.setPool(90, "P", 1, 2, 3)
	h.reload(t)

	before, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	c := &interruptingConfirmer{cancel: cancel, asked: make(chan struct{})}
	report, err := h.syncer.Update(ctx, c)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateSkipped, report.Pools[0].State)
	assert.Nil(t, report.Pools[0].Summary)
	assert.Empty(t, h.site.takeFetched())

	after, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateDoesNotWaitForAnswerAfterInterrupt(t *testing.T) {
	h := newHarness(t)
	h.site.setPool(91, "P", 1)
	h.syncer.Download(context.Background(), "91")
	h.site.setPool(91, "P", 1, 2)
	h.reload(t)

	ctx, cancel := context.WithCancel(context.Background())
	c := &interruptingConfirmer{release: make(chan struct{}), asked: make(chan struct{})}
	defer close(c.release)
	go func() {
		<-c.asked
		cancel()
	}()

	report, err := h.syncer.Update(ctx, c)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateSkipped, report.Pools[0].State)
}
