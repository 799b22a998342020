package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"buddyfeed/pkg/logger"
	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
)

const maxBodyBytes = 1 << 20

type postRequest struct {
	Content    string `json:"content"`
	ImageURL   string `json:"image_url"`
	Visibility string `json:"visibility"`
}

type contentRequest struct {
	Content string `json:"content"`
}

type visibilityRequest struct {
	Visibility string `json:"visibility"`
}

type likeResponse struct {
	Liked bool `json:"liked"`
}

type deleteResponse struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
}

func (api *API) createPostHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "createPostHandler"

	callerID, err := requireCaller(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	var req postRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, handler, err)
		return
	}
	post, err := api.db.CreatePost(r.Context(), callerID, req.Content, req.ImageURL, models.Visibility(req.Visibility))
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	log.Infof("[%s][%s] post %v created by %s", handler, logger.Short(r.Context()), post.ID, callerID)

	writeJSON(w, http.StatusCreated, api.feed.EnrichPost(r.Context(), post))
}

func (api *API) feedHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := api.feed.Feed(r.Context(), viewer(r))
	if err != nil {
		fail(w, r, "feedHandler", err)
		return
	}

	writeJSON(w, http.StatusOK, posts)
}

func (api *API) postHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "postHandler"

	path, err := pathFromRequest(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	post, err := api.feed.Post(r.Context(), path.PostID, viewer(r))
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (api *API) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "deletePostHandler"

	callerID, err := requireCaller(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	path, err := pathFromRequest(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	if err := api.db.DeletePost(r.Context(), path.PostID, callerID); err != nil {
		fail(w, r, handler, err)
		return
	}
	log.Infof("[%s][%s] post %v removed by %s", handler, logger.Short(r.Context()), path.PostID, callerID)

	writeJSON(w, http.StatusOK, deleteResponse{ID: path.PostID, Message: "post removed"})
}

func (api *API) visibilityHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "visibilityHandler"

	callerID, err := requireCaller(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	path, err := pathFromRequest(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	var req visibilityRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, handler, err)
		return
	}
	vis, err := storage.ParseVisibility(req.Visibility)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	post, err := api.db.SetVisibility(r.Context(), path.PostID, callerID, vis)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	writeJSON(w, http.StatusOK, api.feed.EnrichPost(r.Context(), post))
}

// likeHandler serves the like toggle at every level; the route variables present decide
// which entity is addressed.
func (api *API) likeHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "likeHandler"

	callerID, err := requireCaller(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	path, err := pathFromRequest(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	liked, err := api.db.ToggleLike(r.Context(), path, callerID)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	log.Debugf("[%s][%s] %s like on %v by %s set to %v", handler, logger.Short(r.Context()), path.Level(), path, callerID, liked)

	writeJSON(w, http.StatusOK, likeResponse{Liked: liked})
}

func (api *API) likersHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "likersHandler"

	callerID, err := requireCaller(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	path, err := likersPath(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	likers, err := api.feed.Likers(r.Context(), path, callerID)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	writeJSON(w, http.StatusOK, likers)
}

func (api *API) commentHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "commentHandler"

	callerID, err := requireCaller(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	path, err := pathFromRequest(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	var req contentRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, handler, err)
		return
	}

	comment, err := api.db.AddComment(r.Context(), path.PostID, callerID, req.Content)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.feed.EnrichComment(r.Context(), comment))
}

func (api *API) replyHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "replyHandler"

	callerID, err := requireCaller(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	path, err := pathFromRequest(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	var req contentRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, handler, err)
		return
	}

	reply, err := api.db.AddReply(r.Context(), path.PostID, path.CommentID, callerID, req.Content)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.feed.EnrichReply(r.Context(), reply))
}

// pathFromRequest builds the entity path from the route variables.
func pathFromRequest(r *http.Request) (models.Path, error) {
	vars := mux.Vars(r)
	return buildPath(vars["id"], vars["cid"], vars["rid"])
}

// likersPath scopes the likers listing with the optional comment_id and reply_id query
// parameters. The camelCase commentId and replyId spellings are accepted too.
func likersPath(r *http.Request) (models.Path, error) {
	query := r.URL.Query()
	return buildPath(mux.Vars(r)["id"], queryParam(query, "comment_id", "commentId"), queryParam(query, "reply_id", "replyId"))
}

// queryParam returns the first non-empty value among names.
func queryParam(query url.Values, names ...string) string {
	for _, name := range names {
		if v := query.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func buildPath(postID, commentID, replyID string) (models.Path, error) {
	var path models.Path
	var err error

	if path.PostID, err = parseID(postID); err != nil {
		return models.Path{}, err
	}
	if path.CommentID, err = parseID(commentID); err != nil {
		return models.Path{}, err
	}
	if path.ReplyID, err = parseID(replyID); err != nil {
		return models.Path{}, err
	}

	if !path.IsValid() {
		return models.Path{}, storage.ErrInvalidPath
	}
	return path, nil
}

// parseID accepts an empty string as "not given".
func parseID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrMalformedID, raw)
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}
