package models

import (
	"fmt"

	"github.com/gofrs/uuid"
)

type Level int

const (
	LevelPost Level = iota
	LevelComment
	LevelReply
)

func (l Level) String() string {
	switch l {
	case LevelPost:
		return "post"
	case LevelComment:
		return "comment"
	case LevelReply:
		return "reply"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Path addresses a likeable entity: a post, a comment within a post, or a reply within a
// comment within a post. Zero ids mean "not addressed".
type Path struct {
	PostID    uuid.UUID
	CommentID uuid.UUID
	ReplyID   uuid.UUID
}

func PostPath(postID uuid.UUID) Path {
	return Path{PostID: postID}
}

func CommentPath(postID, commentID uuid.UUID) Path {
	return Path{PostID: postID, CommentID: commentID}
}

func ReplyPath(postID, commentID, replyID uuid.UUID) Path {
	return Path{PostID: postID, CommentID: commentID, ReplyID: replyID}
}

func (p Path) Level() Level {
	switch {
	case p.ReplyID != uuid.Nil:
		return LevelReply
	case p.CommentID != uuid.Nil:
		return LevelComment
	default:
		return LevelPost
	}
}

// IsValid reports whether the path is well formed: a post id is always required and a
// reply can only be addressed through its comment.
func (p Path) IsValid() bool {
	if p.PostID == uuid.Nil {
		return false
	}
	if p.ReplyID != uuid.Nil && p.CommentID == uuid.Nil {
		return false
	}
	return true
}

func (p Path) String() string {
	switch p.Level() {
	case LevelReply:
		return fmt.Sprintf("post:%s/comment:%s/reply:%s", p.PostID, p.CommentID, p.ReplyID)
	case LevelComment:
		return fmt.Sprintf("post:%s/comment:%s", p.PostID, p.CommentID)
	}
	return fmt.Sprintf("post:%s", p.PostID)
}
