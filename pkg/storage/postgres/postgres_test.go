package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"

	log "github.com/sirupsen/logrus"

	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
	"buddyfeed/pkg/storage/storagetest"
)

const defaultPostgresPass = "some_pass"
const defaultPostgresPort = "5432"

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	os.Exit(m.Run())
}

func postgresConf() Config {
	pass := os.Getenv("POSTGRES_PASSWORD")
	if pass == "" {
		pass = defaultPostgresPass
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = defaultPostgresPort
	}

	return Config{
		User:     "postgres",
		Password: pass,
		Host:     "localhost",
		Port:     port,
		DBName:   "buddyfeed",
	}
}

func storageConnect(t *testing.T) *Store {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conf := postgresConf()
	db, err := New(ctx, conf.ConString())
	if err != nil {
		t.Skipf("test Postgres instance unavailable: %v", err)
	}
	if err := truncatePosts(db); err != nil {
		db.Close()
		t.Fatalf("failed to reset DB: %v", err)
	}

	t.Cleanup(func() {
		if err := truncatePosts(db); err != nil {
			t.Logf("WARNING: unable to restore DB state after the test: %v", err)
		}
		db.Close()
	})

	return db
}

// truncatePosts restores the original state of DB for further testing.
func truncatePosts(db *Store) error {
	_, err := db.db.Exec(context.Background(), "TRUNCATE TABLE posts")
	return err
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return storageConnect(t)
	})
}

func TestStore_VisibilityColumnFollowsDocument(t *testing.T) {
	db := storageConnect(t)
	ctx := context.Background()

	post, err := db.CreatePost(ctx, "alice", "hi", "", models.Public)
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}
	if _, err := db.SetVisibility(ctx, post.ID, "alice", models.Private); err != nil {
		t.Fatalf("unexpected error setting visibility: %v", err)
	}

	var vis string
	err = db.db.QueryRow(ctx, `SELECT visibility FROM posts WHERE id = $1`, post.ID).Scan(&vis)
	if err != nil {
		t.Fatalf("unexpected error reading visibility: %v", err)
	}
	if vis != string(models.Private) {
		t.Errorf("want visibility column %q, got %q", models.Private, vis)
	}

	posts, err := db.Posts(ctx, "bob")
	if err != nil {
		t.Fatalf("unexpected error listing posts: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("want no posts visible to bob, got %d", len(posts))
	}
}

func TestToggleQuery(t *testing.T) {
	postID, commentID, replyID := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	tests := []struct {
		name     string
		path     models.Path
		wantArgs []any
	}{
		{"post", models.PostPath(postID), []any{postID, "bob"}},
		{"comment", models.CommentPath(postID, commentID), []any{postID, "bob", commentID.String()}},
		{"reply", models.ReplyPath(postID, commentID, replyID), []any{postID, "bob", commentID.String(), replyID.String()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := toggleQuery(tt.path, "bob")
			if fmt.Sprint(args) != fmt.Sprint(tt.wantArgs) {
				t.Errorf("want args %v, got %v", tt.wantArgs, args)
			}
			if !strings.Contains(query, "UPDATE posts") || !strings.Contains(query, "RETURNING") {
				t.Errorf("want a single UPDATE ... RETURNING statement, got %s", query)
			}
			if strings.Contains(query, "bob") {
				t.Errorf("actor must be passed as a parameter, got %s", query)
			}
			if strings.Count(query, "(") != strings.Count(query, ")") {
				t.Errorf("unbalanced parentheses in %s", query)
			}
			for n := len(tt.wantArgs) + 1; n <= 4; n++ {
				if strings.Contains(query, fmt.Sprintf("$%d", n)) {
					t.Errorf("query references $%d with %d args: %s", n, len(tt.wantArgs), query)
				}
			}
		})
	}
}

func TestStore_ToggleLikeWhileCommenting(t *testing.T) {
	db := storageConnect(t)
	ctx := context.Background()

	post, err := db.CreatePost(ctx, "alice", "hi", "", models.Public)
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}
	target, err := db.AddComment(ctx, post.ID, "bob", "first")
	if err != nil {
		t.Fatalf("unexpected error adding comment: %v", err)
	}
	reply, err := db.AddReply(ctx, post.ID, target.ID, "carol", "thanks")
	if err != nil {
		t.Fatalf("unexpected error adding reply: %v", err)
	}

	const n = 15
	var wg sync.WaitGroup
	errs := make(chan error, 3*n)
	for i := 0; i < n; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			if _, err := db.AddComment(ctx, post.ID, "dave", fmt.Sprintf("comment %d", i)); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := db.ToggleLike(ctx, models.CommentPath(post.ID, target.ID), "o'brien"); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := db.ToggleLike(ctx, models.ReplyPath(post.ID, target.ID, reply.ID), "$2"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.Post(ctx, post.ID)
	if err != nil {
		t.Fatalf("unexpected error reading post: %v", err)
	}
	if len(got.Comments) != n+1 {
		t.Fatalf("want %d comments, got %d", n+1, len(got.Comments))
	}
	last := got.Comments[len(got.Comments)-1]
	if last.ID != target.ID {
		t.Fatalf("want oldest comment %v last, got %v", target.ID, last.ID)
	}
	if want := []string{"o'brien"}; fmt.Sprint(last.LikerIDs) != fmt.Sprint(want) {
		t.Errorf("want comment likers %v, got %v", want, last.LikerIDs)
	}
	if want := []string{"$2"}; fmt.Sprint(last.Replies[0].LikerIDs) != fmt.Sprint(want) {
		t.Errorf("want reply likers %v, got %v", want, last.Replies[0].LikerIDs)
	}
	for _, c := range got.Comments[:n] {
		if len(c.LikerIDs) != 0 {
			t.Errorf("want no likers on comment %q, got %v", c.Content, c.LikerIDs)
		}
	}
}
