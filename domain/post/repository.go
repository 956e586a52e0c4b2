package post

import (
	"context"
	"errors"

	"postquery/domain/shared"
)

// ErrPostNotFound is returned by single-row operations on an absent post.
var ErrPostNotFound = shared.NewNotFoundError("post")

// IsNotFound matches ErrPostNotFound and any other not-found domain error.
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

// Repository reads and writes posts. Every List/Get method states whether
// comments are loaded; nothing is fetched lazily.
//
// Deleted posts and comments are invisible to every method.
type Repository interface {
	// ListAll returns every post with comments.
	ListAll(ctx context.Context) ([]*Post, error)
	// GetByID returns one post with comments or ErrPostNotFound.
	GetByID(ctx context.Context, id string) (*Post, error)
	// ListByAuthor returns posts whose author matches exactly, with comments.
	ListByAuthor(ctx context.Context, author string) ([]*Post, error)
	// ListWithComments returns posts having at least one comment, with comments.
	ListWithComments(ctx context.Context) ([]*Post, error)
	// ListWithLikesAtLeast returns posts with Likes >= threshold, with comments.
	ListWithLikesAtLeast(ctx context.Context, threshold int) ([]*Post, error)

	// Exists reports whether a live post with id exists.
	Exists(ctx context.Context, id string) (bool, error)
	// Insert stores p without comments; inserted is false if the id exists.
	Insert(ctx context.Context, p *Post) (inserted bool, err error)
	// Update applies changes or returns ErrPostNotFound.
	Update(ctx context.Context, id string, changes Changes) error
	// IncrementLikes adds one like; found is false if the post is absent.
	IncrementLikes(ctx context.Context, id string) (found bool, err error)
	// Delete removes the post and all of its comments; absent is not an error.
	Delete(ctx context.Context, id string) error
}

// CommentRepository writes comments. Reads go through Repository.
type CommentRepository interface {
	// Add stores c; added is false if a comment with the id already exists.
	Add(ctx context.Context, c *Comment) (added bool, err error)
	// Edit replaces the text and author and marks the comment edited;
	// found is false if postID has no comment with id.
	Edit(ctx context.Context, postID, id, author, text string) (found bool, err error)
	// Remove deletes comment id of postID; absent is not an error.
	Remove(ctx context.Context, postID, id string) error
}
