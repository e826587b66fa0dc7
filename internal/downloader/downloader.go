package downloader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/biscuitvixen/e6-dl/pkg/e621"
	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/pooldb"
	"github.com/biscuitvixen/e6-dl/pkg/storage"
)

// MaxConcurrency is the upper bound on parallel post downloads per pool
const MaxConcurrency = 4

// Recorder persists successful downloads. It is only called from the
// goroutine running DownloadPool.
type Recorder interface {
	RecordDownload(meta *pooldb.PoolRecord, postID, page int, file string) error
}

// Observer receives progress events. PostStarted is called from worker
// goroutines, the other methods from the goroutine running DownloadPool.
type Observer interface {
	PoolStarted(pool *e621.Pool, pending int)
	PostStarted(poolID int, ref e621.PostRef)
	PostFinished(poolID int, ref e621.PostRef, size int64, err error)
	PoolFinished(summary *Summary)
}

type nopObserver struct{}

func (nopObserver) PoolStarted(*e621.Pool, int)                  {}
func (nopObserver) PostStarted(int, e621.PostRef)                {}
func (nopObserver) PostFinished(int, e621.PostRef, int64, error) {}
func (nopObserver) PoolFinished(*Summary)                        {}

// Options configures a Downloader
type Options struct {
	// Root is the download root pool folders are recorded relative to
	Root string
	// SiteURL is used for the pool shortcut, e.g. https://e621.net
	SiteURL string
	// Concurrency is the number of parallel post downloads, 1 to MaxConcurrency
	Concurrency int
}

// Failure describes a post that could not be downloaded
type Failure struct {
	PostID int
	Page   int
	Err    error
}

// Summary is the outcome of downloading one pool
type Summary struct {
	PoolID    int
	PoolName  string
	Folder    string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled int
	Bytes     int64
	Failures  []Failure
	Duration  time.Duration
	// Aborted is the filesystem error that stopped the pool, if any
	Aborted error
}

// OK reports whether every attempted post was downloaded
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.Cancelled == 0 && s.Aborted == nil
}

// FailedEntirely reports whether posts were attempted and none succeeded
func (s *Summary) FailedEntirely() bool {
	return s.Succeeded == 0 && s.Failed > 0
}

// Downloader writes pools into page-numbered files
type Downloader struct {
	client      PostFetcher
	recorder    Recorder
	root        string
	siteURL     string
	concurrency int
	observer    Observer
	logger      logger.Logger
}

// New creates a Downloader
func New(client PostFetcher, recorder Recorder, opts Options, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.Nop()
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	siteURL := opts.SiteURL
	if siteURL == "" {
		siteURL = e621.DefaultBaseURL
	}

	return &Downloader{
		client:      client,
		recorder:    recorder,
		root:        opts.Root,
		siteURL:     siteURL,
		concurrency: concurrency,
		observer:    nopObserver{},
		logger:      log,
	}
}

// SetObserver registers an observer for progress events
func (d *Downloader) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	d.observer = o
}

// TargetDir returns the folder a newly downloaded pool is written to
func (d *Downloader) TargetDir(pool *e621.Pool) string {
	return filepath.Join(d.root, storage.FolderName(pool.Name, pool.Artist))
}

// DownloadPool downloads every post of pool not in existingIDs into
// targetDir as {page}.{ext}. Post failures are collected in the summary
// instead of aborting the pool, except for filesystem errors: the first one
// stops the pool, is kept in Summary.Aborted and the posts not yet fetched
// are counted as cancelled. The returned error is only set when the pool
// folder cannot be prepared.
func (d *Downloader) DownloadPool(ctx context.Context, pool *e621.Pool, targetDir string, existingIDs map[int]bool) (*Summary, error) {
	start := time.Now()
	folder := d.relativeFolder(targetDir)
	summary := &Summary{PoolID: pool.ID, PoolName: pool.Name, Folder: folder, Total: len(pool.Posts)}
	log := d.logger.WithFields(map[string]interface{}{
		"pool_id": pool.ID,
		"folder":  folder,
	})

	store, err := storage.NewManager(d.root, folder)
	if err != nil {
		return nil, err
	}
	if written, err := store.WriteShortcut(e621.PoolURL(d.siteURL, pool.ID)); err != nil {
		log.WithError(err).Warn("Failed to write pool shortcut")
	} else if written {
		log.Debug("Wrote pool shortcut")
	}

	var pending []e621.PostRef
	for _, ref := range pool.Posts {
		if existingIDs[ref.ID] {
			summary.Skipped++
			continue
		}
		pending = append(pending, ref)
	}

	d.observer.PoolStarted(pool, len(pending))
	if len(pending) == 0 {
		log.Info("Pool already complete")
		summary.Duration = time.Since(start)
		d.observer.PoolFinished(summary)
		return summary, nil
	}

	log.InfoWithFields("Downloading pool", map[string]interface{}{
		"name":    pool.Name,
		"pending": len(pending),
		"skipped": summary.Skipped,
	})

	workers := d.concurrency
	if workers > len(pending) {
		workers = len(pending)
	}
	poolCtx, abort := context.WithCancel(ctx)
	defer abort()

	wp := NewWorkerPool(poolCtx, workers, d.client, store, log)
	wp.onStart = func(job Job) { d.observer.PostStarted(job.PoolID, job.Ref) }
	wp.Start()

	submitted := make(chan int, 1)
	go func() {
		defer wp.Stop()
		n := 0
		for _, ref := range pending {
			if err := wp.Submit(Job{PoolID: pool.ID, Ref: ref}); err != nil {
				break
			}
			n++
		}
		submitted <- n
	}()

	meta := &pooldb.PoolRecord{ID: pool.ID, Name: pool.Name, Artist: pool.Artist, Folder: folder}
	for result := range wp.Results() {
		d.handleResult(poolCtx, summary, meta, result, log)
		if summary.Aborted == nil && errs.IsFilesystem(result.Err) {
			summary.Aborted = result.Err
			log.WithError(result.Err).Error("Pool folder is not writable, stopping pool")
			abort()
		}
	}
	summary.Cancelled += len(pending) - <-submitted

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Page < summary.Failures[j].Page
	})
	summary.Duration = time.Since(start)

	log.InfoWithFields("Pool download finished", map[string]interface{}{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"cancelled": summary.Cancelled,
		"aborted":   summary.Aborted != nil,
		"duration":  summary.Duration,
	})
	d.observer.PoolFinished(summary)
	return summary, nil
}

// handleResult runs on the coordinating goroutine only
func (d *Downloader) handleResult(ctx context.Context, summary *Summary, meta *pooldb.PoolRecord, result Result, log logger.Logger) {
	ref := result.Job.Ref

	if result.Err != nil {
		if ctx.Err() != nil && (errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded)) {
			summary.Cancelled++
			return
		}
		summary.Failed++
		summary.Failures = append(summary.Failures, Failure{PostID: ref.ID, Page: ref.Page, Err: result.Err})
		logger.LogDownload(log, meta.ID, ref.ID, ref.Page, result.Err)
		d.observer.PostFinished(meta.ID, ref, 0, result.Err)
		return
	}

	if err := d.recorder.RecordDownload(meta, ref.ID, ref.Page, result.File); err != nil {
		err = fmt.Errorf("recording post %d: %w", ref.ID, err)
		summary.Failed++
		summary.Failures = append(summary.Failures, Failure{PostID: ref.ID, Page: ref.Page, Err: err})
		log.WithError(err).Error("Failed to persist pool database")
		d.observer.PostFinished(meta.ID, ref, 0, err)
		return
	}

	summary.Succeeded++
	summary.Bytes += result.Size
	logger.LogDownload(log, meta.ID, ref.ID, ref.Page, nil)
	d.observer.PostFinished(meta.ID, ref, result.Size, nil)
}

// relativeFolder expresses targetDir relative to the download root when it
// lies beneath it
func (d *Downloader) relativeFolder(targetDir string) string {
	if !filepath.IsAbs(targetDir) && !filepath.IsAbs(d.root) {
		if rel, err := filepath.Rel(filepath.Clean(d.root), filepath.Clean(targetDir)); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}

	absRoot, err := filepath.Abs(d.root)
	if err != nil {
		return targetDir
	}
	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return targetDir
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || strings.HasPrefix(rel, "..") {
		return absTarget
	}
	return rel
}
