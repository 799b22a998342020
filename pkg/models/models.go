package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// IsValid reports whether v is one of the known visibility values.
func (v Visibility) IsValid() bool {
	return v == Public || v == Private
}

type Post struct {
	ID         uuid.UUID  `bson:"_id" json:"id"`
	AuthorID   string     `bson:"author_id" json:"author_id"`
	Content    string     `bson:"content,omitempty" json:"content,omitempty"`
	ImageURL   string     `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Visibility Visibility `bson:"visibility" json:"visibility"`
	LikerIDs   []string   `bson:"liker_ids" json:"liker_ids"`
	Comments   []Comment  `bson:"comments" json:"comments"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
}

// VisibleTo reports whether the post may be read by viewerID. An empty viewerID is an
// anonymous reader.
func (p *Post) VisibleTo(viewerID string) bool {
	return p.Visibility != Private || (viewerID != "" && viewerID == p.AuthorID)
}

// Comment returns a pointer to the embedded comment with the given id.
func (p *Post) Comment(id uuid.UUID) (*Comment, bool) {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i], true
		}
	}
	return nil, false
}

type Comment struct {
	ID        uuid.UUID `bson:"_id" json:"id"`
	AuthorID  string    `bson:"author_id" json:"author_id"`
	Content   string    `bson:"content" json:"content"`
	LikerIDs  []string  `bson:"liker_ids" json:"liker_ids"`
	Replies   []Reply   `bson:"replies" json:"replies"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Reply returns a pointer to the embedded reply with the given id.
func (c *Comment) Reply(id uuid.UUID) (*Reply, bool) {
	for i := range c.Replies {
		if c.Replies[i].ID == id {
			return &c.Replies[i], true
		}
	}
	return nil, false
}

type Reply struct {
	ID        uuid.UUID `bson:"_id" json:"id"`
	AuthorID  string    `bson:"author_id" json:"author_id"`
	Content   string    `bson:"content" json:"content"`
	LikerIDs  []string  `bson:"liker_ids" json:"liker_ids"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Clone returns a deep copy of the post, so the copy shares no slices with p.
func (p Post) Clone() Post {
	p.LikerIDs = append([]string{}, p.LikerIDs...)
	comments := make([]Comment, len(p.Comments))
	for i, c := range p.Comments {
		c.LikerIDs = append([]string{}, c.LikerIDs...)
		replies := make([]Reply, len(c.Replies))
		for j, r := range c.Replies {
			r.LikerIDs = append([]string{}, r.LikerIDs...)
			replies[j] = r
		}
		c.Replies = replies
		comments[i] = c
	}
	p.Comments = comments
	return p
}

// Normalize replaces nil slices with empty ones at every level, so the JSON form carries []
// rather than null.
func (p *Post) Normalize() {
	if p.LikerIDs == nil {
		p.LikerIDs = []string{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	for i := range p.Comments {
		c := &p.Comments[i]
		if c.LikerIDs == nil {
			c.LikerIDs = []string{}
		}
		if c.Replies == nil {
			c.Replies = []Reply{}
		}
		for j := range c.Replies {
			if c.Replies[j].LikerIDs == nil {
				c.Replies[j].LikerIDs = []string{}
			}
		}
	}
}
