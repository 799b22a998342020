package storage

import (
	"errors"
	"testing"

	"github.com/gofrs/uuid"

	"buddyfeed/pkg/models"
)

func TestNewPost(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		imageURL string
		vis      models.Visibility
		wantErr  error
		wantVis  models.Visibility
	}{
		{name: "content only", content: "hi", wantVis: models.Public},
		{name: "image only", imageURL: "https://img/1.png", wantVis: models.Public},
		{name: "both", content: "hi", imageURL: "https://img/1.png", wantVis: models.Public},
		{name: "private", content: "hi", vis: models.Private, wantVis: models.Private},
		{name: "empty", wantErr: ErrEmptyPost},
		{name: "whitespace only", content: "   ", imageURL: "\t", wantErr: ErrEmptyPost},
		{name: "unknown visibility", content: "hi", vis: "draft", wantErr: ErrInvalidVisibility},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := NewPost("alice", tt.content, tt.imageURL, tt.vis)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want error %v, got %v", tt.wantErr, err)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("want error of class %v, got %v", ErrValidation, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if post.ID == uuid.Nil {
				t.Error("post id has uuid.Nil value")
			}
			if post.Visibility != tt.wantVis {
				t.Errorf("want visibility %q, got %q", tt.wantVis, post.Visibility)
			}
			if len(post.LikerIDs) != 0 || len(post.Comments) != 0 {
				t.Errorf("want empty likers and comments, got %v and %v", post.LikerIDs, post.Comments)
			}
			if post.CreatedAt.IsZero() {
				t.Error("post created_at has zero time value")
			}
		})
	}
}

func TestNewPostMissingAuthor(t *testing.T) {
	_, err := NewPost("", "hi", "", "")
	if !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("want error %v, got %v", ErrMissingIdentity, err)
	}
}

func TestNewCommentAndReply(t *testing.T) {
	if _, err := NewComment("bob", ""); !errors.Is(err, ErrEmptyComment) {
		t.Errorf("want error %v, got %v", ErrEmptyComment, err)
	}
	if _, err := NewReply("bob", "  "); !errors.Is(err, ErrEmptyReply) {
		t.Errorf("want error %v, got %v", ErrEmptyReply, err)
	}

	c, err := NewComment("bob", " nice\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == uuid.Nil || c.AuthorID != "bob" || c.Content != "nice" {
		t.Errorf("unexpected comment %+v", c)
	}

	r, err := NewReply("carol", "thanks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID == uuid.Nil || r.AuthorID != "carol" || r.Content != "thanks" {
		t.Errorf("unexpected reply %+v", r)
	}
}

func TestParseVisibility(t *testing.T) {
	for _, s := range []string{"public", "private"} {
		if _, err := ParseVisibility(s); err != nil {
			t.Errorf("ParseVisibility(%q) returned error: %v", s, err)
		}
	}
	for _, s := range []string{"", "draft", "PUBLIC"} {
		if _, err := ParseVisibility(s); !errors.Is(err, ErrInvalidVisibility) {
			t.Errorf("ParseVisibility(%q): want error %v, got %v", s, ErrInvalidVisibility, err)
		}
	}
}

func TestToggle(t *testing.T) {
	set := []string{"a", "b", "c"}
	orig := set

	if liked := Toggle(&set, "b"); liked {
		t.Error("want liked false after removing existing member")
	}
	if want := []string{"a", "c"}; !equal(set, want) {
		t.Errorf("want set %v, got %v", want, set)
	}
	if orig[1] != "b" {
		t.Errorf("Toggle modified the original backing array: %v", orig)
	}

	if liked := Toggle(&set, "d"); !liked {
		t.Error("want liked true after adding new member")
	}
	if want := []string{"a", "c", "d"}; !equal(set, want) {
		t.Errorf("want set %v, got %v", want, set)
	}
}

func TestLikersAt(t *testing.T) {
	reply := models.Reply{ID: uuid.Must(uuid.NewV4()), LikerIDs: []string{"r"}}
	comment := models.Comment{ID: uuid.Must(uuid.NewV4()), LikerIDs: []string{"c"}, Replies: []models.Reply{reply}}
	post := models.Post{ID: uuid.Must(uuid.NewV4()), LikerIDs: []string{"p"}, Comments: []models.Comment{comment}}

	tests := []struct {
		name    string
		path    models.Path
		want    []string
		wantErr error
	}{
		{name: "post", path: models.PostPath(post.ID), want: []string{"p"}},
		{name: "comment", path: models.CommentPath(post.ID, comment.ID), want: []string{"c"}},
		{name: "reply", path: models.ReplyPath(post.ID, comment.ID, reply.ID), want: []string{"r"}},
		{name: "missing comment", path: models.CommentPath(post.ID, uuid.Must(uuid.NewV4())), wantErr: ErrCommentNotFound},
		{name: "missing reply", path: models.ReplyPath(post.ID, comment.ID, uuid.Must(uuid.NewV4())), wantErr: ErrReplyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LikersAt(&post, tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && !equal(*got, tt.want) {
				t.Errorf("want likers %v, got %v", tt.want, *got)
			}
		})
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
