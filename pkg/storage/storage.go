package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"

	"buddyfeed/pkg/models"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("user not authorized")
	ErrUnavailable  = errors.New("store unavailable")

	ErrEmptyPost         = fmt.Errorf("%w: post must have content or an image", ErrValidation)
	ErrEmptyComment      = fmt.Errorf("%w: comment content cannot be empty", ErrValidation)
	ErrEmptyReply        = fmt.Errorf("%w: reply content cannot be empty", ErrValidation)
	ErrInvalidVisibility = fmt.Errorf("%w: invalid visibility value", ErrValidation)
	ErrInvalidPath       = fmt.Errorf("%w: invalid entity path", ErrValidation)
	ErrMissingIdentity   = fmt.Errorf("%w: identity not provided", ErrValidation)

	ErrPostNotFound    = fmt.Errorf("%w: post", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("%w: comment", ErrNotFound)
	ErrReplyNotFound   = fmt.Errorf("%w: reply", ErrNotFound)

	ErrConnectDB       = fmt.Errorf("%w: unable to establish DB connection", ErrUnavailable)
	ErrDBNotResponding = fmt.Errorf("%w: DB not responding", ErrUnavailable)
)

// Storage is the content store. It owns post documents with their embedded comments and
// replies. Every mutating method is a single atomic operation on one post document.
type Storage interface {
	// CreatePost validates and persists a new post. An empty vis defaults to public.
	CreatePost(ctx context.Context, authorID, content, imageURL string, vis models.Visibility) (models.Post, error)
	// Post returns the post with the given id regardless of visibility.
	Post(ctx context.Context, id uuid.UUID) (models.Post, error)
	// Posts returns the posts readable by viewerID ("" for anonymous), newest first.
	Posts(ctx context.Context, viewerID string) ([]models.Post, error)
	// DeletePost removes the post and everything embedded in it. Author only.
	DeletePost(ctx context.Context, id uuid.UUID, requesterID string) error
	// SetVisibility changes the post visibility. Author only.
	SetVisibility(ctx context.Context, id uuid.UUID, requesterID string, vis models.Visibility) (models.Post, error)
	// AddComment prepends a new comment to the post.
	AddComment(ctx context.Context, postID uuid.UUID, authorID, content string) (models.Comment, error)
	// AddReply appends a new reply to the comment.
	AddReply(ctx context.Context, postID, commentID uuid.UUID, authorID, content string) (models.Reply, error)
	// ToggleLike flips actorID's membership in the liker set addressed by path and reports
	// the membership after the flip.
	ToggleLike(ctx context.Context, path models.Path, actorID string) (liked bool, err error)
	// Likers returns the raw liker identities of the entity addressed by path.
	Likers(ctx context.Context, path models.Path) ([]string, error)

	Ping(ctx context.Context) error
	Close()
}

// Unavailable wraps a driver error into the ErrUnavailable class.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// PathNotFound returns the not found error matching the deepest level of path.
func PathNotFound(path models.Path) error {
	switch path.Level() {
	case models.LevelReply:
		return ErrReplyNotFound
	case models.LevelComment:
		return ErrCommentNotFound
	}
	return ErrPostNotFound
}

// LikersAt returns the liker set of the entity addressed by path within post.
func LikersAt(post *models.Post, path models.Path) (*[]string, error) {
	if path.Level() == models.LevelPost {
		return &post.LikerIDs, nil
	}

	comment, ok := post.Comment(path.CommentID)
	if !ok {
		return nil, ErrCommentNotFound
	}
	if path.Level() == models.LevelComment {
		return &comment.LikerIDs, nil
	}

	reply, ok := comment.Reply(path.ReplyID)
	if !ok {
		return nil, ErrReplyNotFound
	}
	return &reply.LikerIDs, nil
}

// Toggle flips actorID's membership in set and returns the new membership.
func Toggle(set *[]string, actorID string) bool {
	for i, id := range *set {
		if id == actorID {
			*set = append((*set)[:i:i], (*set)[i+1:]...)
			return false
		}
	}
	*set = append(*set, actorID)
	return true
}

// Contains reports whether id is a member of set.
func Contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
