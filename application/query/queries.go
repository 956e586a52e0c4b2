// Package query answers read requests against the post read model.
//
// A request is one of a closed set of Query values. The Dispatcher routes it
// by Kind to the function registered for that kind, normally a Handler method.
package query

import "fmt"

// Kind is the discriminant of a Query.
type Kind int

const (
	KindFindAll Kind = iota + 1
	KindFindByID
	KindFindByAuthor
	KindFindWithComments
	KindFindWithLikes
)

func (k Kind) String() string {
	switch k {
	case KindFindAll:
		return "find_all"
	case KindFindByID:
		return "find_by_id"
	case KindFindByAuthor:
		return "find_by_author"
	case KindFindWithComments:
		return "find_with_comments"
	case KindFindWithLikes:
		return "find_with_likes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Query is implemented only by the variants below.
type Query interface {
	Kind() Kind
}

// FindAll returns every post.
type FindAll struct{}

// FindByID returns the post with ID, if any.
type FindByID struct {
	ID string
}

// FindByAuthor returns posts whose author equals Author exactly.
type FindByAuthor struct {
	Author string
}

// FindWithComments returns posts that have at least one comment.
type FindWithComments struct{}

// FindWithLikes returns posts liked at least Threshold times.
type FindWithLikes struct {
	Threshold int
}

func (FindAll) Kind() Kind          { return KindFindAll }
func (FindByID) Kind() Kind         { return KindFindByID }
func (FindByAuthor) Kind() Kind     { return KindFindByAuthor }
func (FindWithComments) Kind() Kind { return KindFindWithComments }
func (FindWithLikes) Kind() Kind    { return KindFindWithLikes }
