package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
)

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		id         UUID PRIMARY KEY,
		author_id  TEXT NOT NULL,
		visibility TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		doc        JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC, id DESC);
`

// Store keeps each post with its comment tree as a JSONB document. The columns next to
// the document carry what reads filter and sort on. Every mutation is a single UPDATE
// that rewrites the document server side, addressing comments and replies by id.
type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, conStr string) (*Store, error) {
	db, err := pgxpool.Connect(ctx, conStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrConnectDB, err)
	}

	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, storage.Unavailable(err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrDBNotResponding, err)
	}
	return nil
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) CreatePost(ctx context.Context, authorID, content, imageURL string, vis models.Visibility) (models.Post, error) {
	post, err := storage.NewPost(authorID, content, imageURL, vis)
	if err != nil {
		return models.Post{}, err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO posts (id, author_id, visibility, created_at, doc)
		VALUES ($1, $2, $3, $4, $5)
	`,
		post.ID,
		post.AuthorID,
		string(post.Visibility),
		post.CreatedAt,
		post,
	)
	if err != nil {
		return models.Post{}, storage.Unavailable(err)
	}

	return post, nil
}

func (s *Store) Post(ctx context.Context, id uuid.UUID) (models.Post, error) {
	var post models.Post
	err := s.db.QueryRow(ctx, `SELECT doc FROM posts WHERE id = $1`, id).Scan(&post)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, storage.ErrPostNotFound
		}
		return models.Post{}, storage.Unavailable(err)
	}

	post.Normalize()
	return post, nil
}

// Posts returns the posts readable by viewerID, newest first, ties broken by id.
func (s *Store) Posts(ctx context.Context, viewerID string) ([]models.Post, error) {
	rows, err := s.db.Query(ctx, `
		SELECT doc
		FROM posts
		WHERE visibility = $1 OR ($2 <> '' AND author_id = $2)
		ORDER BY created_at DESC, id DESC
	`,
		string(models.Public),
		viewerID,
	)
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p); err != nil {
			return nil, storage.Unavailable(err)
		}
		p.Normalize()
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable(err)
	}

	return posts, nil
}

func (s *Store) DeletePost(ctx context.Context, id uuid.UUID, requesterID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND author_id = $2`, id, requesterID)
	if err != nil {
		return storage.Unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return s.authorMismatch(ctx, id)
	}

	return nil
}

func (s *Store) SetVisibility(ctx context.Context, id uuid.UUID, requesterID string, vis models.Visibility) (models.Post, error) {
	if !vis.IsValid() {
		return models.Post{}, storage.ErrInvalidVisibility
	}

	var post models.Post
	err := s.db.QueryRow(ctx, `
		UPDATE posts
		SET visibility = $3, doc = jsonb_set(doc, '{visibility}', to_jsonb($3::text))
		WHERE id = $1 AND author_id = $2
		RETURNING doc
	`,
		id,
		requesterID,
		string(vis),
	).Scan(&post)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, s.authorMismatch(ctx, id)
		}
		return models.Post{}, storage.Unavailable(err)
	}

	post.Normalize()
	return post, nil
}

// AddComment prepends the comment to the post's comment list.
func (s *Store) AddComment(ctx context.Context, postID uuid.UUID, authorID, content string) (models.Comment, error) {
	comment, err := storage.NewComment(authorID, content)
	if err != nil {
		return models.Comment{}, err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE posts
		SET doc = jsonb_set(doc, '{comments}', jsonb_build_array($2::jsonb) || `+jsonArray("doc->'comments'")+`)
		WHERE id = $1
	`,
		postID,
		comment,
	)
	if err != nil {
		return models.Comment{}, storage.Unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return models.Comment{}, storage.ErrPostNotFound
	}

	return comment, nil
}

// AddReply appends the reply to the addressed comment's reply list.
func (s *Store) AddReply(ctx context.Context, postID, commentID uuid.UUID, authorID, content string) (models.Reply, error) {
	reply, err := storage.NewReply(authorID, content)
	if err != nil {
		return models.Reply{}, err
	}

	appendReply := `jsonb_set(c, '{replies}', ` + jsonArray("c->'replies'") + ` || jsonb_build_array($3::jsonb))`
	tag, err := s.db.Exec(ctx, `
		UPDATE posts
		SET doc = jsonb_set(doc, '{comments}', `+mapMatching("doc->'comments'", "c", "$2", appendReply)+`)
		WHERE id = $1 AND doc->'comments' @> jsonb_build_array(jsonb_build_object('id', $2::text))
	`,
		postID,
		commentID.String(),
		reply,
	)
	if err != nil {
		return models.Reply{}, storage.Unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return models.Reply{}, s.missing(ctx, models.CommentPath(postID, commentID))
	}

	return reply, nil
}

// ToggleLike flips the membership with one UPDATE: the membership test and the rewrite of
// the liker set are evaluated by the server against the row being updated, and RETURNING
// reports the membership that was written.
func (s *Store) ToggleLike(ctx context.Context, path models.Path, actorID string) (bool, error) {
	if err := storage.ValidateToggle(path, actorID); err != nil {
		return false, err
	}

	query, args := toggleQuery(path, actorID)
	var liked bool
	err := s.db.QueryRow(ctx, query, args...).Scan(&liked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, s.missing(ctx, path)
		}
		return false, storage.Unavailable(err)
	}

	return liked, nil
}

func (s *Store) Likers(ctx context.Context, path models.Path) ([]string, error) {
	if !path.IsValid() {
		return nil, storage.ErrInvalidPath
	}

	post, err := s.Post(ctx, path.PostID)
	if err != nil {
		return nil, err
	}
	likers, err := storage.LikersAt(&post, path)
	if err != nil {
		return nil, err
	}

	return *likers, nil
}

// missing reports which level of path does not exist after an addressed write matched
// nothing.
func (s *Store) missing(ctx context.Context, path models.Path) error {
	post, err := s.Post(ctx, path.PostID)
	if err != nil {
		return err
	}
	if _, err := storage.LikersAt(&post, path); err != nil {
		return err
	}
	return storage.PathNotFound(path)
}

func (s *Store) authorMismatch(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return storage.Unavailable(err)
	}
	if !exists {
		return storage.ErrPostNotFound
	}
	return storage.ErrUnauthorized
}
