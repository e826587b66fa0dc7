package poolsync

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/biscuitvixen/e6-dl/pkg/e621"
	"github.com/biscuitvixen/e6-dl/pkg/pooldb"
	"github.com/biscuitvixen/e6-dl/pkg/storage"
)

const removedPrefix = "removed-"

// Relocation moves the file of an already downloaded post
type Relocation struct {
	PostID int
	Page   int
	Move   storage.Move
}

// Plan is the difference between a pool record and the remote pool
type Plan struct {
	Record *pooldb.PoolRecord
	Remote *e621.Pool
	// NewPosts are remote posts not downloaded yet, in remote order
	NewPosts []e621.PostRef
	// Relocations renumber downloaded posts whose page changed
	Relocations []Relocation
	// Removed are downloaded posts no longer in the pool; their files are
	// renamed to removed-{postID}.{ext} and their records kept
	Removed []Relocation
}

// HasUpdates reports whether applying the plan changes anything
func (p *Plan) HasUpdates() bool {
	return len(p.NewPosts) > 0 || len(p.Relocations) > 0 || len(p.Removed) > 0
}

// Moves returns every rename the plan needs
func (p *Plan) Moves() []storage.Move {
	moves := make([]storage.Move, 0, len(p.Relocations)+len(p.Removed))
	for _, r := range p.Relocations {
		moves = append(moves, r.Move)
	}
	for _, r := range p.Removed {
		moves = append(moves, r.Move)
	}
	return moves
}

// Describe summarizes the plan for a confirmation prompt
func (p *Plan) Describe() string {
	var parts []string
	if n := len(p.NewPosts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d new %s", n, plural(n, "post", "posts")))
	}
	if n := len(p.Relocations); n > 0 {
		parts = append(parts, fmt.Sprintf("%d reordered", n))
	}
	if n := len(p.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// BuildPlan diffs a record against the remote pool. A nil record means the
// pool was never downloaded. It does not modify rec.
func BuildPlan(rec *pooldb.PoolRecord, remote *e621.Pool) *Plan {
	plan := &Plan{Record: rec, Remote: remote}

	downloaded := map[int]pooldb.DownloadedPost{}
	if rec != nil {
		downloaded = rec.Downloaded
	}

	remotePages := make(map[int]int, len(remote.Posts))
	for _, ref := range remote.Posts {
		remotePages[ref.ID] = ref.Page
		if _, ok := downloaded[ref.ID]; !ok {
			plan.NewPosts = append(plan.NewPosts, ref)
		}
	}

	for postID, post := range downloaded {
		ext := filepath.Ext(post.File)
		page, inPool := remotePages[postID]

		if !inPool {
			if strings.HasPrefix(post.File, removedPrefix) {
				continue
			}
			plan.Removed = append(plan.Removed, Relocation{
				PostID: postID,
				Page:   0,
				Move:   storage.Move{From: post.File, To: fmt.Sprintf("%s%d%s", removedPrefix, postID, ext)},
			})
			continue
		}

		target := fmt.Sprintf("%d%s", page, ext)
		if post.Page == page && post.File == target {
			continue
		}
		plan.Relocations = append(plan.Relocations, Relocation{
			PostID: postID,
			Page:   page,
			Move:   storage.Move{From: post.File, To: target},
		})
	}

	sort.Slice(plan.Relocations, func(i, j int) bool { return plan.Relocations[i].Page < plan.Relocations[j].Page })
	sort.Slice(plan.Removed, func(i, j int) bool { return plan.Removed[i].PostID < plan.Removed[j].PostID })
	return plan
}
