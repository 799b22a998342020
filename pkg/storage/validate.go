package storage

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"buddyfeed/pkg/models"
)

// Now returns the creation timestamp used for new entities. It is truncated to the
// millisecond, the precision every backend stores.
var Now = func() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// ParseVisibility converts a client supplied value into a Visibility.
func ParseVisibility(s string) (models.Visibility, error) {
	v := models.Visibility(s)
	if !v.IsValid() {
		return "", ErrInvalidVisibility
	}
	return v, nil
}

// NewPost builds a post ready to be persisted. Content is trimmed; a post needs either
// content or an image. An empty vis defaults to public.
func NewPost(authorID, content, imageURL string, vis models.Visibility) (models.Post, error) {
	if authorID == "" {
		return models.Post{}, ErrMissingIdentity
	}

	content = strings.TrimSpace(content)
	imageURL = strings.TrimSpace(imageURL)
	if content == "" && imageURL == "" {
		return models.Post{}, ErrEmptyPost
	}

	if vis == "" {
		vis = models.Public
	}
	if !vis.IsValid() {
		return models.Post{}, ErrInvalidVisibility
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.Post{}, err
	}

	return models.Post{
		ID:         id,
		AuthorID:   authorID,
		Content:    content,
		ImageURL:   imageURL,
		Visibility: vis,
		LikerIDs:   []string{},
		Comments:   []models.Comment{},
		CreatedAt:  Now(),
	}, nil
}

func NewComment(authorID, content string) (models.Comment, error) {
	if authorID == "" {
		return models.Comment{}, ErrMissingIdentity
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, ErrEmptyComment
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.Comment{}, err
	}

	return models.Comment{
		ID:        id,
		AuthorID:  authorID,
		Content:   content,
		LikerIDs:  []string{},
		Replies:   []models.Reply{},
		CreatedAt: Now(),
	}, nil
}

func NewReply(authorID, content string) (models.Reply, error) {
	if authorID == "" {
		return models.Reply{}, ErrMissingIdentity
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Reply{}, ErrEmptyReply
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.Reply{}, err
	}

	return models.Reply{
		ID:        id,
		AuthorID:  authorID,
		Content:   content,
		LikerIDs:  []string{},
		CreatedAt: Now(),
	}, nil
}

// ValidateToggle checks the arguments shared by every backend's ToggleLike and Likers.
func ValidateToggle(path models.Path, actorID string) error {
	if !path.IsValid() {
		return ErrInvalidPath
	}
	if actorID == "" {
		return ErrMissingIdentity
	}
	return nil
}
