package e621

import (
	"fmt"
	"strings"
)

// UnknownArtist is used when a pool has no usable artist tag
const UnknownArtist = "Unknown Artist"

// metaArtistTags are tags e621 files under "artist" that do not name one
var metaArtistTags = map[string]bool{
	"conditional_dnp":  true,
	"avoid_posting":    true,
	"sound_warning":    true,
	"epilepsy_warning": true,
	"unknown_artist":   true,
}

// Pool is an ordered collection of posts
type Pool struct {
	ID      int
	Name    string
	Artist  string
	Creator string
	Posts   []PostRef
}

// PostRef identifies a post and its 1-based position within a pool
type PostRef struct {
	ID   int
	Page int
}

// Post is a resolved post with its downloadable file
type Post struct {
	ID      int
	Page    int
	Ext     string
	FileURL string
	MD5     string
	Size    int64
	Deleted bool
	Artists []string
}

// Filename returns the page-numbered file name the post is stored under
func (p *Post) Filename() string {
	return fmt.Sprintf("%d.%s", p.Page, p.Ext)
}

// Downloadable reports whether the post still has a file to fetch
func (p *Post) Downloadable() bool {
	return !p.Deleted && p.FileURL != ""
}

// PostIDs returns the post IDs of the pool in page order
func (p *Pool) PostIDs() []int {
	ids := make([]int, len(p.Posts))
	for i, ref := range p.Posts {
		ids[i] = ref.ID
	}
	return ids
}

// SelectArtist returns the first artist tag that names an actual artist
func SelectArtist(tags []string) string {
	for _, tag := range tags {
		if tag == "" || metaArtistTags[tag] {
			continue
		}
		return tag
	}
	return UnknownArtist
}

// apiPool is the JSON shape of GET /pools/{id}.json
type apiPool struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	CreatorName string `json:"creator_name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	Category    string `json:"category"`
	PostIDs     []int  `json:"post_ids"`
	PostCount   int    `json:"post_count"`
}

func (ap *apiPool) toPool() *Pool {
	pool := &Pool{
		ID:      ap.ID,
		Name:    strings.ReplaceAll(ap.Name, "_", " "),
		Creator: ap.CreatorName,
		Posts:   make([]PostRef, len(ap.PostIDs)),
	}
	for i, id := range ap.PostIDs {
		pool.Posts[i] = PostRef{ID: id, Page: i + 1}
	}
	return pool
}

// apiPostEnvelope is the JSON shape of GET /posts/{id}.json
type apiPostEnvelope struct {
	Post *apiPost `json:"post"`
}

type apiPost struct {
	ID   int `json:"id"`
	File struct {
		Ext  string `json:"ext"`
		Size int64  `json:"size"`
		MD5  string `json:"md5"`
		URL  string `json:"url"`
	} `json:"file"`
	Tags struct {
		Artist []string `json:"artist"`
	} `json:"tags"`
	Flags struct {
		Deleted bool `json:"deleted"`
	} `json:"flags"`
}

func (ap *apiPost) toPost(page int) *Post {
	return &Post{
		ID:      ap.ID,
		Page:    page,
		Ext:     ap.File.Ext,
		FileURL: ap.File.URL,
		MD5:     ap.File.MD5,
		Size:    ap.File.Size,
		Deleted: ap.Flags.Deleted,
		Artists: ap.Tags.Artist,
	}
}
