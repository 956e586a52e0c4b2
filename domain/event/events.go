package event

import (
	"errors"
	"time"
)

// Type is the envelope discriminator.
type Type string

const (
	TypePostCreated    Type = "PostCreatedEvent"
	TypePostUpdated    Type = "MessageUpdatedEvent"
	TypePostLiked      Type = "PostLikedEvent"
	TypePostRemoved    Type = "PostRemovedEvent"
	TypeCommentAdded   Type = "CommentAddedEvent"
	TypeCommentUpdated Type = "CommentUpdatedEvent"
	TypeCommentRemoved Type = "CommentRemovedEvent"
)

// Event is a decoded payload.
type Event interface {
	EventType() Type
	validate() error
}

var registry = map[Type]func() Event{
	TypePostCreated:    func() Event { return &PostCreated{} },
	TypePostUpdated:    func() Event { return &PostUpdated{} },
	TypePostLiked:      func() Event { return &PostLiked{} },
	TypePostRemoved:    func() Event { return &PostRemoved{} },
	TypeCommentAdded:   func() Event { return &CommentAdded{} },
	TypeCommentUpdated: func() Event { return &CommentUpdated{} },
	TypeCommentRemoved: func() Event { return &CommentRemoved{} },
}

// Types lists every discriminator the projector understands.
func Types() []Type {
	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

type PostCreated struct {
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DatePosted  time.Time `json:"datePosted"`
}

func (*PostCreated) EventType() Type { return TypePostCreated }

func (e *PostCreated) validate() error {
	if e.Author == "" {
		return errors.New("author is required")
	}
	return nil
}

// PostUpdated carries only the fields that changed.
type PostUpdated struct {
	Author      *string `json:"author,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (*PostUpdated) EventType() Type { return TypePostUpdated }

func (e *PostUpdated) validate() error {
	if e.Author == nil && e.Title == nil && e.Description == nil {
		return errors.New("no fields to update")
	}
	return nil
}

type PostLiked struct{}

func (*PostLiked) EventType() Type { return TypePostLiked }
func (*PostLiked) validate() error { return nil }

type PostRemoved struct{}

func (*PostRemoved) EventType() Type { return TypePostRemoved }
func (*PostRemoved) validate() error { return nil }

type CommentAdded struct {
	CommentID   string    `json:"commentId"`
	Comment     string    `json:"comment"`
	Username    string    `json:"username"`
	CommentDate time.Time `json:"commentDate"`
}

func (*CommentAdded) EventType() Type { return TypeCommentAdded }

func (e *CommentAdded) validate() error {
	if e.CommentID == "" {
		return errors.New("commentId is required")
	}
	return nil
}

type CommentUpdated struct {
	CommentID string    `json:"commentId"`
	Comment   string    `json:"comment"`
	Username  string    `json:"username"`
	EditDate  time.Time `json:"editDate"`
}

func (*CommentUpdated) EventType() Type { return TypeCommentUpdated }

func (e *CommentUpdated) validate() error {
	if e.CommentID == "" {
		return errors.New("commentId is required")
	}
	return nil
}

type CommentRemoved struct {
	CommentID string `json:"commentId"`
}

func (*CommentRemoved) EventType() Type { return TypeCommentRemoved }

func (e *CommentRemoved) validate() error {
	if e.CommentID == "" {
		return errors.New("commentId is required")
	}
	return nil
}
