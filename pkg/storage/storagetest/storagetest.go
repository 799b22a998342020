// Package storagetest holds the behavioural checks every storage.Storage implementation
// must pass. Backend packages call Run from their own tests.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"

	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
)

// Opener returns an empty store. It is called once per subtest and is responsible for
// registering its own cleanup.
type Opener func(t *testing.T) storage.Storage

const (
	alice = "alice"
	bob   = "bob"
	carol = "carol"
)

func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, db storage.Storage)
	}{
		{"CreatePost", testCreatePost},
		{"CreatePostEmpty", testCreatePostEmpty},
		{"PostNotExist", testPostNotExist},
		{"ToggleLikeRoundTrip", testToggleLikeRoundTrip},
		{"ToggleLikeNotFound", testToggleLikeNotFound},
		{"ToggleLikeConcurrentSameActor", testToggleLikeConcurrentSameActor},
		{"ConcurrentMutationsNotLost", testConcurrentMutationsNotLost},
		{"CommentsPrepended", testCommentsPrepended},
		{"RepliesAppended", testRepliesAppended},
		{"AddCommentErrors", testAddCommentErrors},
		{"AddReplyErrors", testAddReplyErrors},
		{"PostsVisibility", testPostsVisibility},
		{"PostsOrder", testPostsOrder},
		{"SetVisibility", testSetVisibility},
		{"DeletePost", testDeletePost},
		{"Likers", testLikers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func ctx() context.Context {
	return context.Background()
}

func mustPost(t *testing.T, db storage.Storage, authorID, content string, vis models.Visibility) models.Post {
	t.Helper()
	post, err := db.CreatePost(ctx(), authorID, content, "", vis)
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}
	return post
}

func mustComment(t *testing.T, db storage.Storage, postID uuid.UUID, authorID, content string) models.Comment {
	t.Helper()
	c, err := db.AddComment(ctx(), postID, authorID, content)
	if err != nil {
		t.Fatalf("unexpected error adding comment: %v", err)
	}
	return c
}

func mustReply(t *testing.T, db storage.Storage, postID, commentID uuid.UUID, authorID, content string) models.Reply {
	t.Helper()
	r, err := db.AddReply(ctx(), postID, commentID, authorID, content)
	if err != nil {
		t.Fatalf("unexpected error adding reply: %v", err)
	}
	return r
}

func mustGet(t *testing.T, db storage.Storage, id uuid.UUID) models.Post {
	t.Helper()
	post, err := db.Post(ctx(), id)
	if err != nil {
		t.Fatalf("unexpected error retrieving post %v: %v", id, err)
	}
	return post
}

func testCreatePost(t *testing.T, db storage.Storage) {
	inputs := []struct {
		content  string
		imageURL string
	}{
		{"hi", ""},
		{"", "https://cdn.example.com/cat.png"},
		{"hello there", "https://cdn.example.com/dog.png"},
	}

	for _, in := range inputs {
		post, err := db.CreatePost(ctx(), alice, in.content, in.imageURL, "")
		if err != nil {
			t.Fatalf("unexpected error creating post %+v: %v", in, err)
		}
		if post.ID == uuid.Nil {
			t.Errorf("post id has uuid.Nil value")
		}
		if post.Visibility != models.Public {
			t.Errorf("want default visibility %q, got %q", models.Public, post.Visibility)
		}
		if len(post.LikerIDs) != 0 || len(post.Comments) != 0 {
			t.Errorf("want no likers and no comments, got %v and %v", post.LikerIDs, post.Comments)
		}

		got := mustGet(t, db, post.ID)
		if got.AuthorID != alice || got.Content != in.content || got.ImageURL != in.imageURL {
			t.Errorf("want post\n%+v\n\ngot post\n%+v\n", post, got)
		}
		if !got.CreatedAt.Equal(post.CreatedAt) {
			t.Errorf("want created_at %v, got %v", post.CreatedAt, got.CreatedAt)
		}
	}
}

func testCreatePostEmpty(t *testing.T, db storage.Storage) {
	_, err := db.CreatePost(ctx(), alice, "", "", "")
	if !errors.Is(err, storage.ErrValidation) {
		t.Errorf("want error %v, got %v", storage.ErrValidation, err)
	}

	posts, err := db.Posts(ctx(), alice)
	if err != nil {
		t.Fatalf("unexpected error listing posts: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("want no posts stored, got %d", len(posts))
	}
}

func testPostNotExist(t *testing.T, db storage.Storage) {
	_, err := db.Post(ctx(), uuid.Must(uuid.NewV4()))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}
}

func testToggleLikeRoundTrip(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")
	comment := mustComment(t, db, post.ID, bob, "nice")
	reply := mustReply(t, db, post.ID, comment.ID, carol, "thanks")

	paths := []models.Path{
		models.PostPath(post.ID),
		models.CommentPath(post.ID, comment.ID),
		models.ReplyPath(post.ID, comment.ID, reply.ID),
	}

	for _, path := range paths {
		t.Run(path.Level().String(), func(t *testing.T) {
			for i, want := range []bool{true, false, true} {
				got, err := db.ToggleLike(ctx(), path, bob)
				if err != nil {
					t.Fatalf("toggle #%d: unexpected error: %v", i+1, err)
				}
				if got != want {
					t.Errorf("toggle #%d: want liked %v, got %v", i+1, want, got)
				}
			}

			likers, err := db.Likers(ctx(), path)
			if err != nil {
				t.Fatalf("unexpected error listing likers: %v", err)
			}
			if len(likers) != 1 || likers[0] != bob {
				t.Errorf("want likers [%s], got %v", bob, likers)
			}
		})
	}

	// Likes at one level never leak into another.
	got := mustGet(t, db, post.ID)
	if len(got.LikerIDs) != 1 || len(got.Comments[0].LikerIDs) != 1 || len(got.Comments[0].Replies[0].LikerIDs) != 1 {
		t.Errorf("want exactly one liker per level, got post %v comment %v reply %v",
			got.LikerIDs, got.Comments[0].LikerIDs, got.Comments[0].Replies[0].LikerIDs)
	}
}

func testToggleLikeNotFound(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")
	comment := mustComment(t, db, post.ID, bob, "nice")
	missing := uuid.Must(uuid.NewV4())

	tests := []struct {
		name    string
		path    models.Path
		wantErr error
	}{
		{"missing post", models.PostPath(missing), storage.ErrNotFound},
		{"missing comment", models.CommentPath(post.ID, missing), storage.ErrNotFound},
		{"missing reply", models.ReplyPath(post.ID, comment.ID, missing), storage.ErrNotFound},
		{"comment of another post", models.CommentPath(missing, comment.ID), storage.ErrNotFound},
		{"reply without comment", models.Path{PostID: post.ID, ReplyID: missing}, storage.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.ToggleLike(ctx(), tt.path, bob)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("want error %v, got %v", tt.wantErr, err)
			}
		})
	}

	got := mustGet(t, db, post.ID)
	if len(got.LikerIDs) != 0 || len(got.Comments[0].LikerIDs) != 0 {
		t.Errorf("failed toggles changed state: post %v comment %v", got.LikerIDs, got.Comments[0].LikerIDs)
	}
}

func testToggleLikeConcurrentSameActor(t *testing.T, db storage.Storage) {
	for _, n := range []int{1, 2, 7, 16, 25} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			post := mustPost(t, db, alice, "race me", "")
			comment := mustComment(t, db, post.ID, alice, "me too")
			reply := mustReply(t, db, post.ID, comment.ID, alice, "and me")

			paths := []models.Path{
				models.PostPath(post.ID),
				models.CommentPath(post.ID, comment.ID),
				models.ReplyPath(post.ID, comment.ID, reply.ID),
			}

			var wg sync.WaitGroup
			errs := make(chan error, n*len(paths))
			for _, path := range paths {
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(path models.Path) {
						defer wg.Done()
						if _, err := db.ToggleLike(ctx(), path, bob); err != nil {
							errs <- err
						}
					}(path)
				}
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("unexpected error from concurrent toggle: %v", err)
			}

			wantLiked := n%2 == 1
			for _, path := range paths {
				likers, err := db.Likers(ctx(), path)
				if err != nil {
					t.Fatalf("unexpected error listing likers: %v", err)
				}
				gotLiked := len(likers) == 1 && likers[0] == bob
				if gotLiked != wantLiked || len(likers) > 1 {
					t.Errorf("%s: after %d toggles want liked %v, got likers %v", path.Level(), n, wantLiked, likers)
				}
			}
		})
	}
}

func testConcurrentMutationsNotLost(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "busy post", "")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		actor := fmt.Sprintf("user-%02d", i)
		go func() {
			defer wg.Done()
			if _, err := db.ToggleLike(ctx(), models.PostPath(post.ID), actor); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := db.AddComment(ctx(), post.ID, actor, "comment by "+actor); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error from concurrent mutation: %v", err)
	}

	got := mustGet(t, db, post.ID)
	if len(got.LikerIDs) != n {
		t.Errorf("want %d likers, got %d: %v", n, len(got.LikerIDs), got.LikerIDs)
	}
	if len(got.Comments) != n {
		t.Errorf("want %d comments, got %d", n, len(got.Comments))
	}
}

func testCommentsPrepended(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")
	c1 := mustComment(t, db, post.ID, bob, "first")
	c2 := mustComment(t, db, post.ID, carol, "second")
	c3 := mustComment(t, db, post.ID, bob, "third")

	got := mustGet(t, db, post.ID)
	want := []uuid.UUID{c3.ID, c2.ID, c1.ID}
	if len(got.Comments) != len(want) {
		t.Fatalf("want %d comments, got %d", len(want), len(got.Comments))
	}
	for i, id := range want {
		if got.Comments[i].ID != id {
			t.Errorf("comment #%d: want id %v, got %v", i, id, got.Comments[i].ID)
		}
	}
	if got.Comments[2].AuthorID != bob || got.Comments[2].Content != "first" {
		t.Errorf("unexpected oldest comment %+v", got.Comments[2])
	}
}

func testRepliesAppended(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")
	other := mustComment(t, db, post.ID, carol, "other")
	comment := mustComment(t, db, post.ID, bob, "nice")
	r1 := mustReply(t, db, post.ID, comment.ID, carol, "thanks")
	r2 := mustReply(t, db, post.ID, comment.ID, alice, "welcome")

	got := mustGet(t, db, post.ID)
	target, ok := got.Comment(comment.ID)
	if !ok {
		t.Fatalf("comment %v not found in post", comment.ID)
	}
	if len(target.Replies) != 2 || target.Replies[0].ID != r1.ID || target.Replies[1].ID != r2.ID {
		t.Errorf("want replies [%v %v], got %+v", r1.ID, r2.ID, target.Replies)
	}

	untouched, _ := got.Comment(other.ID)
	if len(untouched.Replies) != 0 {
		t.Errorf("want no replies on sibling comment, got %+v", untouched.Replies)
	}
}

func testAddCommentErrors(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")

	if _, err := db.AddComment(ctx(), post.ID, bob, ""); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("empty comment: want error %v, got %v", storage.ErrValidation, err)
	}
	if _, err := db.AddComment(ctx(), uuid.Must(uuid.NewV4()), bob, "nice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing post: want error %v, got %v", storage.ErrNotFound, err)
	}

	got := mustGet(t, db, post.ID)
	if len(got.Comments) != 0 {
		t.Errorf("want no comments, got %+v", got.Comments)
	}
}

func testAddReplyErrors(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")
	comment := mustComment(t, db, post.ID, bob, "nice")

	tests := []struct {
		name      string
		postID    uuid.UUID
		commentID uuid.UUID
		content   string
		wantErr   error
	}{
		{"empty reply", post.ID, comment.ID, "", storage.ErrValidation},
		{"missing post", uuid.Must(uuid.NewV4()), comment.ID, "thanks", storage.ErrNotFound},
		{"missing comment", post.ID, uuid.Must(uuid.NewV4()), "thanks", storage.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.AddReply(ctx(), tt.postID, tt.commentID, carol, tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("want error %v, got %v", tt.wantErr, err)
			}
		})
	}

	got := mustGet(t, db, post.ID)
	if len(got.Comments[0].Replies) != 0 {
		t.Errorf("want no replies, got %+v", got.Comments[0].Replies)
	}
}

func testPostsVisibility(t *testing.T, db storage.Storage) {
	public := mustPost(t, db, alice, "for everyone", models.Public)
	private := mustPost(t, db, alice, "just me", models.Private)

	tests := []struct {
		name        string
		viewer      string
		wantPrivate bool
	}{
		{"anonymous", "", false},
		{"other user", bob, false},
		{"author", alice, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := db.Posts(ctx(), tt.viewer)
			if err != nil {
				t.Fatalf("unexpected error listing posts: %v", err)
			}
			if !containsPost(posts, public.ID) {
				t.Errorf("public post missing for viewer %q", tt.viewer)
			}
			if got := containsPost(posts, private.ID); got != tt.wantPrivate {
				t.Errorf("viewer %q: want private post present %v, got %v", tt.viewer, tt.wantPrivate, got)
			}
		})
	}
}

func testPostsOrder(t *testing.T, db storage.Storage) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := []time.Time{
		base,
		base.Add(2 * time.Minute),
		base.Add(time.Minute),
		base.Add(2 * time.Minute),
	}

	now := storage.Now
	t.Cleanup(func() { storage.Now = now })

	var posts []models.Post
	for i, ts := range clock {
		storage.Now = func() time.Time { return ts }
		posts = append(posts, mustPost(t, db, alice, fmt.Sprintf("post %d", i), ""))
	}
	storage.Now = now

	// posts[1] and posts[3] share a timestamp and are ordered by id, descending.
	newer, older := posts[1], posts[3]
	if bytes.Compare(newer.ID.Bytes(), older.ID.Bytes()) < 0 {
		newer, older = older, newer
	}
	want := []uuid.UUID{newer.ID, older.ID, posts[2].ID, posts[0].ID}

	got, err := db.Posts(ctx(), "")
	if err != nil {
		t.Fatalf("unexpected error listing posts: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("want %d posts, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: want post %v, got %v (%v)", i, id, got[i].ID, got[i].CreatedAt)
		}
	}
}

func testSetVisibility(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")

	if _, err := db.SetVisibility(ctx(), post.ID, bob, models.Private); !errors.Is(err, storage.ErrUnauthorized) {
		t.Errorf("non-author: want error %v, got %v", storage.ErrUnauthorized, err)
	}
	if _, err := db.SetVisibility(ctx(), post.ID, alice, "draft"); !errors.Is(err, storage.ErrValidation) {
		t.Errorf("invalid value: want error %v, got %v", storage.ErrValidation, err)
	}
	if _, err := db.SetVisibility(ctx(), uuid.Must(uuid.NewV4()), alice, models.Private); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing post: want error %v, got %v", storage.ErrNotFound, err)
	}
	if got := mustGet(t, db, post.ID); got.Visibility != models.Public {
		t.Errorf("failed updates changed visibility to %q", got.Visibility)
	}

	updated, err := db.SetVisibility(ctx(), post.ID, alice, models.Private)
	if err != nil {
		t.Fatalf("unexpected error setting visibility: %v", err)
	}
	if updated.Visibility != models.Private || updated.ID != post.ID {
		t.Errorf("unexpected updated post %+v", updated)
	}

	posts, err := db.Posts(ctx(), bob)
	if err != nil {
		t.Fatalf("unexpected error listing posts: %v", err)
	}
	if containsPost(posts, post.ID) {
		t.Error("private post visible to non-author")
	}
}

func testDeletePost(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")
	comment := mustComment(t, db, post.ID, bob, "nice")
	mustReply(t, db, post.ID, comment.ID, carol, "thanks")

	if err := db.DeletePost(ctx(), post.ID, bob); !errors.Is(err, storage.ErrUnauthorized) {
		t.Errorf("non-author: want error %v, got %v", storage.ErrUnauthorized, err)
	}
	mustGet(t, db, post.ID)

	if err := db.DeletePost(ctx(), post.ID, alice); err != nil {
		t.Fatalf("unexpected error deleting post: %v", err)
	}
	if _, err := db.Post(ctx(), post.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("after delete: want error %v, got %v", storage.ErrNotFound, err)
	}
	if _, err := db.ToggleLike(ctx(), models.CommentPath(post.ID, comment.ID), bob); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("comment of deleted post: want error %v, got %v", storage.ErrNotFound, err)
	}

	posts, err := db.Posts(ctx(), alice)
	if err != nil {
		t.Fatalf("unexpected error listing posts: %v", err)
	}
	if containsPost(posts, post.ID) {
		t.Error("deleted post still listed")
	}

	if err := db.DeletePost(ctx(), post.ID, alice); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete: want error %v, got %v", storage.ErrNotFound, err)
	}
}

func testLikers(t *testing.T, db storage.Storage) {
	post := mustPost(t, db, alice, "hi", "")

	likers, err := db.Likers(ctx(), models.PostPath(post.ID))
	if err != nil {
		t.Fatalf("unexpected error listing likers: %v", err)
	}
	if len(likers) != 0 {
		t.Errorf("want no likers, got %v", likers)
	}

	for _, actor := range []string{bob, carol, alice} {
		if _, err := db.ToggleLike(ctx(), models.PostPath(post.ID), actor); err != nil {
			t.Fatalf("unexpected error toggling like: %v", err)
		}
	}
	if _, err := db.ToggleLike(ctx(), models.PostPath(post.ID), carol); err != nil {
		t.Fatalf("unexpected error toggling like: %v", err)
	}

	likers, err = db.Likers(ctx(), models.PostPath(post.ID))
	if err != nil {
		t.Fatalf("unexpected error listing likers: %v", err)
	}
	if len(likers) != 2 || likers[0] != bob || likers[1] != alice {
		t.Errorf("want likers [%s %s], got %v", bob, alice, likers)
	}

	if _, err := db.Likers(ctx(), models.PostPath(uuid.Must(uuid.NewV4()))); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing post: want error %v, got %v", storage.ErrNotFound, err)
	}
}

func containsPost(posts []models.Post, id uuid.UUID) bool {
	for _, p := range posts {
		if p.ID == id {
			return true
		}
	}
	return false
}
