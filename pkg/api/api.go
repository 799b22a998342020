package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"

	"buddyfeed/pkg/feed"
	"buddyfeed/pkg/identity"
	"buddyfeed/pkg/storage"
)

// LogWriter publishes request log entries. *kafka.Writer satisfies it.
type LogWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Deps are the collaborators of the API. Accounts and Issuer enable the /users routes
// when both are set; LogWriter enables request log publishing.
type Deps struct {
	Storage   storage.Storage
	Directory identity.Directory
	Resolver  identity.Resolver
	Accounts  identity.Accounts
	Issuer    identity.Issuer
	LogWriter LogWriter
}

type API struct {
	ServiceName string

	r        *mux.Router
	db       storage.Storage
	feed     *feed.Assembler
	auth     identity.Resolver
	accounts identity.Accounts
	issuer   identity.Issuer
	lw       LogWriter
}

func New(name string, deps Deps) *API {
	api := API{
		ServiceName: name,
		r:           mux.NewRouter(),
		db:          deps.Storage,
		feed:        feed.New(deps.Storage, deps.Directory),
		auth:        deps.Resolver,
		accounts:    deps.Accounts,
		issuer:      deps.Issuer,
		lw:          deps.LogWriter,
	}
	api.endpoints()

	return &api
}

func (api *API) Router() *mux.Router {
	return api.r
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	api.r.Use(api.callerMiddleware)
	if api.lw != nil {
		api.r.Use(api.loggingMiddleware(api.lw))
	}
	api.r.Use(api.headerMiddleware)

	api.r.HandleFunc("/posts", api.feedHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/posts", api.createPostHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/posts/{id}", api.postHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/posts/{id}", api.deletePostHandler).Methods(http.MethodDelete)
	api.r.HandleFunc("/posts/{id}/visibility", api.visibilityHandler).Methods(http.MethodPut)
	api.r.HandleFunc("/posts/{id}/like", api.likeHandler).Methods(http.MethodPut)
	api.r.HandleFunc("/posts/{id}/likers", api.likersHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/posts/{id}/comments", api.commentHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/posts/{id}/comments/{cid}/like", api.likeHandler).Methods(http.MethodPut)
	api.r.HandleFunc("/posts/{id}/comments/{cid}/replies", api.replyHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/posts/{id}/comments/{cid}/replies/{rid}/like", api.likeHandler).Methods(http.MethodPut)

	if api.accounts != nil && api.issuer != nil {
		api.r.HandleFunc("/users/register", api.registerHandler).Methods(http.MethodPost)
		api.r.HandleFunc("/users/login", api.loginHandler).Methods(http.MethodPost)
		api.r.HandleFunc("/users/me", api.meHandler).Methods(http.MethodGet)
	}

	api.r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(preflightHandler)
}
