package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
)

const postsCollection = "posts"

// Storage keeps one document per post with comments and replies embedded in it. Every
// mutation is a single update addressed by ids, so the server applies it atomically.
type Storage struct {
	client *mongo.Client
	dbName string
}

func New(ctx context.Context, conf *Config) (*Storage, error) {
	client, err := mongo.Connect(ctx, conf.Options())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrConnectDB, err)
	}

	s := Storage{client: client, dbName: conf.DBName}
	if err := s.createCollection(ctx, postsCollection); err != nil {
		return nil, storage.Unavailable(err)
	}

	_, err = s.posts().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return nil, storage.Unavailable(err)
	}

	return &s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrDBNotResponding, err)
	}
	return nil
}

func (s *Storage) Close() {
	s.client.Disconnect(context.Background())
}

// Database exposes the underlying database so collaborators, such as the user directory,
// can share the connection.
func (s *Storage) Database() *mongo.Database {
	return s.client.Database(s.dbName)
}

func (s *Storage) posts() *mongo.Collection {
	return s.Database().Collection(postsCollection)
}

func (s *Storage) CreatePost(ctx context.Context, authorID, content, imageURL string, vis models.Visibility) (models.Post, error) {
	post, err := storage.NewPost(authorID, content, imageURL, vis)
	if err != nil {
		return models.Post{}, err
	}

	if _, err := s.posts().InsertOne(ctx, post); err != nil {
		return models.Post{}, storage.Unavailable(err)
	}

	return post, nil
}

func (s *Storage) Post(ctx context.Context, id uuid.UUID) (models.Post, error) {
	var post models.Post
	err := s.posts().FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, storage.ErrPostNotFound
		}
		return models.Post{}, storage.Unavailable(err)
	}

	post.Normalize()
	return post, nil
}

// Posts returns the posts readable by viewerID sorted by creation time, newest first, with
// ties broken by id.
func (s *Storage) Posts(ctx context.Context, viewerID string) ([]models.Post, error) {
	filter := bson.M{"visibility": models.Public}
	if viewerID != "" {
		filter = bson.M{"$or": bson.A{
			bson.M{"visibility": models.Public},
			bson.M{"author_id": viewerID},
		}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.posts().Find(ctx, filter, opts)
	if err != nil {
		return nil, storage.Unavailable(err)
	}

	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, storage.Unavailable(err)
	}
	for i := range posts {
		posts[i].Normalize()
	}

	return posts, nil
}

// DeletePost removes the post document, and with it every embedded comment and reply.
func (s *Storage) DeletePost(ctx context.Context, id uuid.UUID, requesterID string) error {
	res, err := s.posts().DeleteOne(ctx, bson.M{"_id": id, "author_id": requesterID})
	if err != nil {
		return storage.Unavailable(err)
	}
	if res.DeletedCount == 0 {
		return s.authorMismatch(ctx, id)
	}

	return nil
}

func (s *Storage) SetVisibility(ctx context.Context, id uuid.UUID, requesterID string, vis models.Visibility) (models.Post, error) {
	if !vis.IsValid() {
		return models.Post{}, storage.ErrInvalidVisibility
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err := s.posts().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "author_id": requesterID},
		bson.M{"$set": bson.M{"visibility": vis}},
		opts,
	).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, s.authorMismatch(ctx, id)
		}
		return models.Post{}, storage.Unavailable(err)
	}

	post.Normalize()
	return post, nil
}

// AddComment prepends the comment to the post's comment list.
func (s *Storage) AddComment(ctx context.Context, postID uuid.UUID, authorID, content string) (models.Comment, error) {
	comment, err := storage.NewComment(authorID, content)
	if err != nil {
		return models.Comment{}, err
	}

	res, err := s.posts().UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$push": bson.M{"comments": bson.M{"$each": bson.A{comment}, "$position": 0}}},
	)
	if err != nil {
		return models.Comment{}, storage.Unavailable(err)
	}
	if res.MatchedCount == 0 {
		return models.Comment{}, storage.ErrPostNotFound
	}

	return comment, nil
}

// AddReply appends the reply to the addressed comment's reply list.
func (s *Storage) AddReply(ctx context.Context, postID, commentID uuid.UUID, authorID, content string) (models.Reply, error) {
	reply, err := storage.NewReply(authorID, content)
	if err != nil {
		return models.Reply{}, err
	}

	res, err := s.posts().UpdateOne(ctx,
		bson.M{"_id": postID, "comments._id": commentID},
		bson.M{"$push": bson.M{"comments.$.replies": reply}},
	)
	if err != nil {
		return models.Reply{}, storage.Unavailable(err)
	}
	if res.MatchedCount == 0 {
		return models.Reply{}, s.missing(ctx, models.CommentPath(postID, commentID))
	}

	return reply, nil
}

// ToggleLike flips the membership with one pipeline update: the server evaluates the
// current membership and rewrites the liker set in the same operation, and returns the
// updated document so the outcome is read from what was written.
func (s *Storage) ToggleLike(ctx context.Context, path models.Path, actorID string) (bool, error) {
	if err := storage.ValidateToggle(path, actorID); err != nil {
		return false, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post models.Post
	err := s.posts().FindOneAndUpdate(ctx, pathFilter(path), togglePipeline(path, actorID), opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, s.missing(ctx, path)
		}
		return false, storage.Unavailable(err)
	}

	likers, err := storage.LikersAt(&post, path)
	if err != nil {
		return false, err
	}

	return storage.Contains(*likers, actorID), nil
}

func (s *Storage) Likers(ctx context.Context, path models.Path) ([]string, error) {
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

// authorMismatch classifies an author-scoped write that matched nothing.
func (s *Storage) authorMismatch(ctx context.Context, id uuid.UUID) error {
	n, err := s.posts().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return storage.Unavailable(err)
	}
	if n == 0 {
		return storage.ErrPostNotFound
	}
	return storage.ErrUnauthorized
}

// missing reports which level of path does not exist after an addressed write matched
// nothing.
func (s *Storage) missing(ctx context.Context, path models.Path) error {
	n, err := s.posts().CountDocuments(ctx, bson.M{"_id": path.PostID})
	if err != nil {
		return storage.Unavailable(err)
	}
	if n == 0 {
		return storage.ErrPostNotFound
	}
	if path.Level() == models.LevelComment {
		return storage.ErrCommentNotFound
	}

	n, err = s.posts().CountDocuments(ctx, bson.M{"_id": path.PostID, "comments._id": path.CommentID})
	if err != nil {
		return storage.Unavailable(err)
	}
	if n == 0 {
		return storage.ErrCommentNotFound
	}
	return storage.ErrReplyNotFound
}

// createCollection creates a collection with the given name in the database if it doesn't already exist.
func (s *Storage) createCollection(ctx context.Context, collName string) error {
	collExists, err := collectionExists(ctx, s.Database(), collName)
	if err != nil {
		return err
	}

	if !collExists {
		err := s.Database().CreateCollection(ctx, collName)
		if err != nil {
			return err
		}
	}

	return nil
}

// collectionExists checks if a collection with the given name exists in the database.
func collectionExists(ctx context.Context, db *mongo.Database, collName string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collName}})
	if err != nil {
		return false, fmt.Errorf("failed to list collection names: %w", err)
	}

	return len(names) > 0, nil
}
