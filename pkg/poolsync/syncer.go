package poolsync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/biscuitvixen/e6-dl/internal/downloader"
	"github.com/biscuitvixen/e6-dl/pkg/e621"
	"github.com/biscuitvixen/e6-dl/pkg/logger"
	"github.com/biscuitvixen/e6-dl/pkg/pooldb"
	"github.com/biscuitvixen/e6-dl/pkg/storage"
)

// PoolResolver fetches pool metadata
type PoolResolver interface {
	ResolvePool(ctx context.Context, idOrURL string) (*e621.Pool, error)
}

// PoolDownloader downloads the posts of a pool
type PoolDownloader interface {
	DownloadPool(ctx context.Context, pool *e621.Pool, targetDir string, existingIDs map[int]bool) (*downloader.Summary, error)
	TargetDir(pool *e621.Pool) string
}

// Confirmer asks the user a yes/no question
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// Options configures a Syncer
type Options struct {
	// Root is the download root records are relative to
	Root string
	// CheckConcurrency bounds the pools checked at the same time
	CheckConcurrency int
}

// Syncer downloads new pools and brings recorded pools up to date
type Syncer struct {
	client           PoolResolver
	downloader       PoolDownloader
	tracker          *pooldb.Tracker
	root             string
	checkConcurrency int
	logger           logger.Logger
}

// New creates a Syncer
func New(client PoolResolver, dl PoolDownloader, tracker *pooldb.Tracker, opts Options, log logger.Logger) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	concurrency := opts.CheckConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Syncer{
		client:           client,
		downloader:       dl,
		tracker:          tracker,
		root:             opts.Root,
		checkConcurrency: concurrency,
		logger:           log,
	}
}

// Download fetches the pool identified by idOrURL. A pool that is already
// recorded continues in its existing folder and is renumbered first if
// its order changed remotely.
func (s *Syncer) Download(ctx context.Context, idOrURL string) *PoolStatus {
	status := &PoolStatus{State: StatePending}
	if id, err := e621.ParsePoolID(idOrURL); err == nil {
		status.PoolID = id
	}

	remote, err := s.client.ResolvePool(ctx, idOrURL)
	if err != nil {
		status.fail(err)
		s.logger.WithField("pool", idOrURL).WithError(err).Error("Failed to resolve pool")
		return status
	}
	status.PoolID = remote.ID
	status.Name = remote.Name

	rec, _ := s.tracker.Database().Get(remote.ID)
	status.Plan = BuildPlan(rec, remote)
	status.State = StateConfirmed

	s.apply(ctx, status)
	return status
}

// DownloadAll runs Download for every argument in order and stops early
// when ctx is cancelled
func (s *Syncer) DownloadAll(ctx context.Context, idsOrURLs []string) *Report {
	start := time.Now()
	report := &Report{}
	for _, arg := range idsOrURLs {
		if ctx.Err() != nil {
			break
		}
		report.Pools = append(report.Pools, s.Download(ctx, arg))
	}
	report.Duration = time.Since(start)
	return report
}

// Check resolves every recorded pool and diffs it against its record
// without changing anything
func (s *Syncer) Check(ctx context.Context) []*PoolStatus {
	db := s.tracker.Database()
	ids := db.PoolIDs()
	statuses := make([]*PoolStatus, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.checkConcurrency)

	for i, id := range ids {
		rec, _ := db.Get(id)
		status := &PoolStatus{PoolID: id, Name: rec.Name, State: StatePending}
		statuses[i] = status

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				status.fail(err)
				return nil
			}

			remote, err := s.client.ResolvePool(gctx, strconv.Itoa(id))
			if err != nil {
				s.logger.WithField("pool_id", id).WithError(err).Warn("Failed to check pool")
				status.fail(err)
				return nil
			}

			status.State = StateChecked
			status.Name = remote.Name
			status.Plan = BuildPlan(rec, remote)
			if status.Plan.HasUpdates() {
				status.State = StateHasUpdates
			} else {
				status.State = StateUpToDate
			}

			s.logger.DebugWithFields("Checked pool", map[string]interface{}{
				"pool_id": id,
				"state":   status.State.String(),
				"changes": status.Plan.Describe(),
			})
			return nil
		})
	}

	_ = g.Wait()
	return statuses
}

// Update checks every recorded pool and, for each pool with changes the
// confirmer accepts, applies them. Declined pools are left untouched.
func (s *Syncer) Update(ctx context.Context, confirmer Confirmer) (*Report, error) {
	start := time.Now()
	report := &Report{Pools: s.Check(ctx)}

	for _, status := range report.Pools {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		if status.State != StateHasUpdates {
			continue
		}

		question := fmt.Sprintf("Pool %q (%d): %s. Update?", status.Name, status.PoolID, status.Plan.Describe())
		ok, err := confirm(ctx, confirmer, question)
		if ctxErr := ctx.Err(); ctxErr != nil {
			status.State = StateSkipped
			s.logger.WithField("pool_id", status.PoolID).Info("Update interrupted at the prompt")
			report.Duration = time.Since(start)
			return report, ctxErr
		}
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("confirming update of pool %d: %w", status.PoolID, err)
		}
		if !ok {
			status.State = StateSkipped
			s.logger.WithField("pool_id", status.PoolID).Info("Update declined")
			continue
		}

		status.State = StateConfirmed
		s.apply(ctx, status)
	}

	report.Duration = time.Since(start)
	return report, ctx.Err()
}

// confirm asks confirmer but gives up as soon as ctx is done, so an
// interrupt does not wait for the answer
func confirm(ctx context.Context, confirmer Confirmer, question string) (bool, error) {
	type reply struct {
		ok  bool
		err error
	}
	replies := make(chan reply, 1)
	go func() {
		ok, err := confirmer.Confirm(question)
		replies <- reply{ok: ok, err: err}
	}()

	select {
	case r := <-replies:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// apply renumbers moved posts and downloads missing ones
func (s *Syncer) apply(ctx context.Context, status *PoolStatus) {
	plan := status.Plan
	log := s.logger.WithField("pool_id", status.PoolID)

	targetDir := s.downloader.TargetDir(plan.Remote)
	if plan.Record != nil {
		targetDir = plan.Record.Dir(s.root)
		if moves := plan.Moves(); len(moves) > 0 {
			if err := s.renumber(plan); err != nil {
				log.WithError(err).Error("Failed to renumber pool files")
				status.fail(err)
				return
			}
		}
	}

	var existing map[int]bool
	if rec, ok := s.tracker.Database().Get(status.PoolID); ok {
		existing = rec.DownloadedIDs()
	}

	status.State = StateDownloading
	summary, err := s.downloader.DownloadPool(ctx, plan.Remote, targetDir, existing)
	if err != nil {
		status.fail(err)
		log.WithError(err).Error("Pool download failed")
		return
	}
	status.Summary = summary

	if summary.Aborted != nil {
		status.fail(summary.Aborted)
		return
	}
	if summary.FailedEntirely() {
		status.fail(fmt.Errorf("all %d posts of pool %d failed", summary.Failed, status.PoolID))
		return
	}
	status.State = StateDone
}

// renumber renames files whose page changed and updates the record to match.
// Posts whose file is missing are dropped from the record so they are
// downloaded again.
func (s *Syncer) renumber(plan *Plan) error {
	rec := plan.Record
	folder, err := storage.NewManager(s.root, rec.Folder)
	if err != nil {
		return err
	}

	applied, renumberErr := folder.Renumber(plan.Moves())
	done := make(map[string]bool, len(applied))
	for _, mv := range applied {
		done[mv.From] = true
	}

	updateErr := s.tracker.Update(func(db *pooldb.Database) error {
		stored, ok := db.Get(rec.ID)
		if !ok {
			return nil
		}
		relocate := func(r Relocation) {
			post, ok := stored.Downloaded[r.PostID]
			if !ok {
				return
			}
			if done[r.Move.From] {
				post.Page = r.Page
				post.File = r.Move.To
				stored.Downloaded[r.PostID] = post
			} else if renumberErr == nil {
				delete(stored.Downloaded, r.PostID)
			}
		}
		for _, r := range plan.Relocations {
			relocate(r)
		}
		for _, r := range plan.Removed {
			relocate(r)
		}
		return nil
	})

	if renumberErr != nil {
		return renumberErr
	}
	if updateErr != nil {
		return updateErr
	}

	s.logger.WithField("pool_id", rec.ID).InfoWithFields("Renumbered pool files", map[string]interface{}{
		"moved":   len(applied),
		"planned": len(plan.Relocations) + len(plan.Removed),
	})
	return nil
}
