// Package post is the read model: posts with their comments, as projected
// from the write side's event log.
package post

import (
	"sort"
	"time"
)

// Post is the read model's aggregate root.
type Post struct {
	ID          string     `json:"postId"`
	Author      string     `json:"author"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DateCreated time.Time  `json:"datePosted"`
	Likes       int        `json:"likes"`
	Comments    []*Comment `json:"comments"`
}

// Comment belongs to exactly one Post.
type Comment struct {
	ID          string    `json:"commentId"`
	PostID      string    `json:"postId"`
	Author      string    `json:"username"`
	Text        string    `json:"comment"`
	DateCreated time.Time `json:"commentDate"`
	Edited      bool      `json:"edited"`
}

// Changes lists the post fields an update touches; nil means unchanged.
type Changes struct {
	Author      *string
	Title       *string
	Description *string
}

// IsEmpty reports whether applying c would change nothing.
func (c Changes) IsEmpty() bool {
	return c.Author == nil && c.Title == nil && c.Description == nil
}

// Apply writes the present fields onto p.
func (c Changes) Apply(p *Post) {
	if c.Author != nil {
		p.Author = *c.Author
	}
	if c.Title != nil {
		p.Title = *c.Title
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
}

// HasComments reports whether the post has at least one live comment.
func (p *Post) HasComments() bool {
	return len(p.Comments) > 0
}

// SortComments orders comments by creation time, then id.
func SortComments(comments []*Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].DateCreated.Equal(comments[j].DateCreated) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].DateCreated.Before(comments[j].DateCreated)
	})
}
