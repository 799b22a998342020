package memdb

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/gofrs/uuid"

	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
)

// Store keeps post documents in memory. Each operation holds the lock for its whole
// single-document read or mutation, and documents never leave the store by reference.
type Store struct {
	mu    sync.RWMutex
	posts map[uuid.UUID]*models.Post
}

func New() *Store {
	db := Store{
		posts: make(map[uuid.UUID]*models.Post),
	}

	return &db
}

func (db *Store) Ping(ctx context.Context) error {
	return nil
}

func (db *Store) Close() {}

func (db *Store) CreatePost(ctx context.Context, authorID, content, imageURL string, vis models.Visibility) (models.Post, error) {
	post, err := storage.NewPost(authorID, content, imageURL, vis)
	if err != nil {
		return models.Post{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	stored := post.Clone()
	db.posts[post.ID] = &stored

	return post, nil
}

func (db *Store) Post(ctx context.Context, id uuid.UUID) (models.Post, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	post, ok := db.posts[id]
	if !ok {
		return models.Post{}, storage.ErrPostNotFound
	}

	return post.Clone(), nil
}

func (db *Store) Posts(ctx context.Context, viewerID string) ([]models.Post, error) {
	db.mu.RLock()
	posts := make([]models.Post, 0, len(db.posts))
	for _, p := range db.posts {
		if p.VisibleTo(viewerID) {
			posts = append(posts, p.Clone())
		}
	}
	db.mu.RUnlock()

	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return bytes.Compare(posts[i].ID.Bytes(), posts[j].ID.Bytes()) > 0
	})

	return posts, nil
}

func (db *Store) DeletePost(ctx context.Context, id uuid.UUID, requesterID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	post, ok := db.posts[id]
	if !ok {
		return storage.ErrPostNotFound
	}
	if post.AuthorID != requesterID {
		return storage.ErrUnauthorized
	}

	delete(db.posts, id)
	return nil
}

func (db *Store) SetVisibility(ctx context.Context, id uuid.UUID, requesterID string, vis models.Visibility) (models.Post, error) {
	if !vis.IsValid() {
		return models.Post{}, storage.ErrInvalidVisibility
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	post, ok := db.posts[id]
	if !ok {
		return models.Post{}, storage.ErrPostNotFound
	}
	if post.AuthorID != requesterID {
		return models.Post{}, storage.ErrUnauthorized
	}

	post.Visibility = vis
	return post.Clone(), nil
}

func (db *Store) AddComment(ctx context.Context, postID uuid.UUID, authorID, content string) (models.Comment, error) {
	comment, err := storage.NewComment(authorID, content)
	if err != nil {
		return models.Comment{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	post, ok := db.posts[postID]
	if !ok {
		return models.Comment{}, storage.ErrPostNotFound
	}

	comments := make([]models.Comment, 0, len(post.Comments)+1)
	comments = append(comments, comment)
	post.Comments = append(comments, post.Comments...)

	return comment, nil
}

func (db *Store) AddReply(ctx context.Context, postID, commentID uuid.UUID, authorID, content string) (models.Reply, error) {
	reply, err := storage.NewReply(authorID, content)
	if err != nil {
		return models.Reply{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	post, ok := db.posts[postID]
	if !ok {
		return models.Reply{}, storage.ErrPostNotFound
	}
	comment, ok := post.Comment(commentID)
	if !ok {
		return models.Reply{}, storage.ErrCommentNotFound
	}

	comment.Replies = append(comment.Replies, reply)

	return reply, nil
}

func (db *Store) ToggleLike(ctx context.Context, path models.Path, actorID string) (bool, error) {
	if err := storage.ValidateToggle(path, actorID); err != nil {
		return false, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	post, ok := db.posts[path.PostID]
	if !ok {
		return false, storage.ErrPostNotFound
	}
	likers, err := storage.LikersAt(post, path)
	if err != nil {
		return false, err
	}

	return storage.Toggle(likers, actorID), nil
}

func (db *Store) Likers(ctx context.Context, path models.Path) ([]string, error) {
	if !path.IsValid() {
		return nil, storage.ErrInvalidPath
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	post, ok := db.posts[path.PostID]
	if !ok {
		return nil, storage.ErrPostNotFound
	}
	likers, err := storage.LikersAt(post, path)
	if err != nil {
		return nil, err
	}

	return append([]string{}, (*likers)...), nil
}
