package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/biscuitvixen/e6-dl/pkg/e621"
	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
)

// Job is a single post to download
type Job struct {
	PoolID int
	Ref    e621.PostRef
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Post     *e621.Post
	File     string
	Size     int64
	Err      error
	Duration time.Duration
}

// PostFetcher resolves posts and opens their media
type PostFetcher interface {
	ResolvePost(ctx context.Context, ref e621.PostRef) (*e621.Post, error)
	FetchPostMedia(ctx context.Context, post *e621.Post) (io.ReadCloser, error)
}

// MediaStore writes media files into a pool folder
type MediaStore interface {
	SaveMedia(r io.Reader, filename string) (int64, error)
}

// WorkerPool runs download jobs on a fixed number of workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	client      PostFetcher
	store       MediaStore
	onStart     func(job Job)
	logger      logger.Logger
}

// NewWorkerPool creates a worker pool; jobs stop being processed once ctx
// is cancelled
func NewWorkerPool(ctx context.Context, numWorkers int, client PostFetcher, store MediaStore, log logger.Logger) *WorkerPool {
	if log == nil {
		log = logger.Nop()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		client:      client,
		store:       store,
		logger:      log,
	}
}

// Start starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// Submit queues a job. It fails once the pool's context is done.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	default:
	}

	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the channel results are delivered on
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result Result
		if err := wp.ctx.Err(); err != nil {
			// drain without fetching so every queued job is accounted for
			result = Result{Job: job, Err: err}
		} else {
			result = wp.processJob(job, id)
		}
		wp.resultQueue <- result
	}
}

// processJob resolves the post, streams its media and saves it under its page
func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	if wp.onStart != nil {
		wp.onStart(job)
	}

	start := time.Now()
	result := Result{Job: job}
	log := wp.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"post_id":   job.Ref.ID,
		"page":      job.Ref.Page,
	})

	post, err := wp.client.ResolvePost(wp.ctx, job.Ref)
	if err != nil {
		result.Err = fmt.Errorf("resolving post %d: %w", job.Ref.ID, err)
		result.Duration = time.Since(start)
		return result
	}
	result.Post = post

	if !post.Downloadable() {
		if post.Deleted {
			result.Err = errs.NotFound("post %d is deleted", post.ID)
		} else {
			result.Err = errs.NotFound("post %d has no file URL", post.ID)
		}
		result.Duration = time.Since(start)
		return result
	}

	body, err := wp.client.FetchPostMedia(wp.ctx, post)
	if err != nil {
		result.Err = fmt.Errorf("fetching media of post %d: %w", post.ID, err)
		result.Duration = time.Since(start)
		return result
	}
	defer body.Close()

	file := post.Filename()
	size, err := wp.store.SaveMedia(body, file)
	if err != nil {
		result.Err = fmt.Errorf("saving post %d as %s: %w", post.ID, file, err)
		result.Duration = time.Since(start)
		return result
	}

	result.File = file
	result.Size = size
	result.Duration = time.Since(start)

	log.DebugWithFields("Worker completed job", map[string]interface{}{
		"file":     file,
		"size":     size,
		"duration": result.Duration,
	})
	return result
}
