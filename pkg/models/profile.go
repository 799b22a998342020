package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const DefaultProfilePicture = "/default-avatar.png"

// PublicProfile is the only view of a user that leaves the service.
type PublicProfile struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ProfilePicture string `json:"profile_picture"`
}

// UnknownAuthor is substituted for authors whose profile no longer resolves.
func UnknownAuthor(id string) PublicProfile {
	return PublicProfile{
		ID:             id,
		FirstName:      "Unknown",
		LastName:       "Author",
		ProfilePicture: DefaultProfilePicture,
	}
}

type EnrichedPost struct {
	ID         uuid.UUID         `json:"id"`
	Author     PublicProfile     `json:"author"`
	Content    string            `json:"content,omitempty"`
	ImageURL   string            `json:"image_url,omitempty"`
	Visibility Visibility        `json:"visibility"`
	LikerIDs   []string          `json:"liker_ids"`
	LikesCount int               `json:"likes_count"`
	Comments   []EnrichedComment `json:"comments"`
	CreatedAt  time.Time         `json:"created_at"`
}

type EnrichedComment struct {
	ID         uuid.UUID       `json:"id"`
	Author     PublicProfile   `json:"author"`
	Content    string          `json:"content"`
	LikerIDs   []string        `json:"liker_ids"`
	LikesCount int             `json:"likes_count"`
	Replies    []EnrichedReply `json:"replies"`
	CreatedAt  time.Time       `json:"created_at"`
}

type EnrichedReply struct {
	ID         uuid.UUID     `json:"id"`
	Author     PublicProfile `json:"author"`
	Content    string        `json:"content"`
	LikerIDs   []string      `json:"liker_ids"`
	LikesCount int           `json:"likes_count"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AuthorIDs returns the distinct author ids referenced anywhere in posts, in first-seen order.
func AuthorIDs(posts ...Post) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, p := range posts {
		add(p.AuthorID)
		for _, c := range p.Comments {
			add(c.AuthorID)
			for _, r := range c.Replies {
				add(r.AuthorID)
			}
		}
	}

	return ids
}
