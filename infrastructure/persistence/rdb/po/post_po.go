package po

import (
	"time"

	"postquery/domain/post"

	"gorm.io/gorm"
)

// PostPO Post persistence object. Comments are loaded by explicit queries,
// no GORM associations are declared.
type PostPO struct {
	ID          string         `gorm:"primaryKey;size:64"`
	Author      string         `gorm:"size:255;index;not null"`
	Title       string         `gorm:"size:255;not null;default:''"`
	Description string         `gorm:"type:text"`
	DateCreated time.Time      `gorm:"not null"`
	Likes       int            `gorm:"not null;default:0;index"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (PostPO) TableName() string {
	return "posts"
}

// CommentPO Comment persistence object
type CommentPO struct {
	ID          string         `gorm:"primaryKey;size:64"`
	PostID      string         `gorm:"size:64;index;not null"`
	Author      string         `gorm:"size:255;not null"`
	Text        string         `gorm:"type:text"`
	DateCreated time.Time      `gorm:"not null"`
	Edited      bool           `gorm:"not null;default:false"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (CommentPO) TableName() string {
	return "comments"
}

func FromPostDomain(p *post.Post) *PostPO {
	return &PostPO{
		ID:          p.ID,
		Author:      p.Author,
		Title:       p.Title,
		Description: p.Description,
		DateCreated: p.DateCreated.UTC(),
		Likes:       p.Likes,
	}
}

func (po *PostPO) ToDomain(comments []CommentPO) *post.Post {
	p := &post.Post{
		ID:          po.ID,
		Author:      po.Author,
		Title:       po.Title,
		Description: po.Description,
		DateCreated: po.DateCreated,
		Likes:       po.Likes,
		Comments:    make([]*post.Comment, 0, len(comments)),
	}
	for i := range comments {
		p.Comments = append(p.Comments, comments[i].ToDomain())
	}
	post.SortComments(p.Comments)
	return p
}

func FromCommentDomain(c *post.Comment) *CommentPO {
	return &CommentPO{
		ID:          c.ID,
		PostID:      c.PostID,
		Author:      c.Author,
		Text:        c.Text,
		DateCreated: c.DateCreated.UTC(),
		Edited:      c.Edited,
	}
}

func (po *CommentPO) ToDomain() *post.Comment {
	return &post.Comment{
		ID:          po.ID,
		PostID:      po.PostID,
		Author:      po.Author,
		Text:        po.Text,
		DateCreated: po.DateCreated,
		Edited:      po.Edited,
	}
}
