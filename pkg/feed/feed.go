// Package feed builds the read views of the content store: the visibility-scoped feed and
// liker lists, with every author reference replaced by a public profile.
package feed

import (
	"context"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"buddyfeed/pkg/identity"
	"buddyfeed/pkg/logger"
	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
)

type Assembler struct {
	db  storage.Storage
	dir identity.Directory
}

func New(db storage.Storage, dir identity.Directory) *Assembler {
	return &Assembler{db: db, dir: dir}
}

// Feed returns the posts viewerID may read, newest first. An empty viewerID sees public
// posts only.
func (a *Assembler) Feed(ctx context.Context, viewerID string) ([]models.EnrichedPost, error) {
	posts, err := a.db.Posts(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	authors := a.profiles(ctx, models.AuthorIDs(posts...))

	feed := make([]models.EnrichedPost, 0, len(posts))
	for _, p := range posts {
		if !p.VisibleTo(viewerID) {
			continue
		}
		feed = append(feed, enrichPost(p, authors))
	}

	return feed, nil
}

// Post returns a single enriched post. A post the viewer may not read is reported as not
// found.
func (a *Assembler) Post(ctx context.Context, id uuid.UUID, viewerID string) (models.EnrichedPost, error) {
	post, err := a.db.Post(ctx, id)
	if err != nil {
		return models.EnrichedPost{}, err
	}
	if !post.VisibleTo(viewerID) {
		return models.EnrichedPost{}, storage.ErrPostNotFound
	}

	return a.EnrichPost(ctx, post), nil
}

func (a *Assembler) EnrichPost(ctx context.Context, post models.Post) models.EnrichedPost {
	return enrichPost(post, a.profiles(ctx, models.AuthorIDs(post)))
}

func (a *Assembler) EnrichComment(ctx context.Context, c models.Comment) models.EnrichedComment {
	ids := []string{c.AuthorID}
	for _, r := range c.Replies {
		ids = append(ids, r.AuthorID)
	}
	return enrichComment(c, a.profiles(ctx, ids))
}

func (a *Assembler) EnrichReply(ctx context.Context, r models.Reply) models.EnrichedReply {
	return enrichReply(r, a.profiles(ctx, []string{r.AuthorID}))
}

// Likers resolves the liker set at path to profiles in stored order. Ids that no longer
// resolve are dropped. Likers of a post viewerID may not read are reported as not found.
func (a *Assembler) Likers(ctx context.Context, path models.Path, viewerID string) ([]models.PublicProfile, error) {
	if !path.IsValid() {
		return nil, storage.ErrInvalidPath
	}
	post, err := a.db.Post(ctx, path.PostID)
	if err != nil {
		return nil, err
	}
	if !post.VisibleTo(viewerID) {
		return nil, storage.ErrPostNotFound
	}

	ids, err := a.db.Likers(ctx, path)
	if err != nil {
		return nil, err
	}

	profiles := []models.PublicProfile{}
	if len(ids) == 0 {
		return profiles, nil
	}

	found, err := a.dir.Profiles(ctx, ids)
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	for _, id := range ids {
		if p, ok := found[id]; ok {
			profiles = append(profiles, p)
		}
	}

	return profiles, nil
}

// profiles resolves ids in one bulk lookup. A failing directory leaves the map empty so
// that every author renders as unknown instead of failing the read.
func (a *Assembler) profiles(ctx context.Context, ids []string) map[string]models.PublicProfile {
	if len(ids) == 0 {
		return nil
	}

	found, err := a.dir.Profiles(ctx, ids)
	if err != nil {
		log.Warnf("[feed][%s] author lookup failed, using placeholders: %v", logger.Short(ctx), err)
		return nil
	}
	return found
}

func author(profiles map[string]models.PublicProfile, id string) models.PublicProfile {
	if p, ok := profiles[id]; ok {
		return p
	}
	return models.UnknownAuthor(id)
}

func enrichPost(p models.Post, profiles map[string]models.PublicProfile) models.EnrichedPost {
	comments := make([]models.EnrichedComment, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, enrichComment(c, profiles))
	}

	return models.EnrichedPost{
		ID:         p.ID,
		Author:     author(profiles, p.AuthorID),
		Content:    p.Content,
		ImageURL:   p.ImageURL,
		Visibility: p.Visibility,
		LikerIDs:   likers(p.LikerIDs),
		LikesCount: len(p.LikerIDs),
		Comments:   comments,
		CreatedAt:  p.CreatedAt,
	}
}

func enrichComment(c models.Comment, profiles map[string]models.PublicProfile) models.EnrichedComment {
	replies := make([]models.EnrichedReply, 0, len(c.Replies))
	for _, r := range c.Replies {
		replies = append(replies, enrichReply(r, profiles))
	}

	return models.EnrichedComment{
		ID:         c.ID,
		Author:     author(profiles, c.AuthorID),
		Content:    c.Content,
		LikerIDs:   likers(c.LikerIDs),
		LikesCount: len(c.LikerIDs),
		Replies:    replies,
		CreatedAt:  c.CreatedAt,
	}
}

func enrichReply(r models.Reply, profiles map[string]models.PublicProfile) models.EnrichedReply {
	return models.EnrichedReply{
		ID:         r.ID,
		Author:     author(profiles, r.AuthorID),
		Content:    r.Content,
		LikerIDs:   likers(r.LikerIDs),
		LikesCount: len(r.LikerIDs),
		CreatedAt:  r.CreatedAt,
	}
}

func likers(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
