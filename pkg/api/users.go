package api

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"buddyfeed/pkg/identity"
	"buddyfeed/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	identity.Account
	Token string `json:"token,omitempty"`
}

func (api *API) registerHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "registerHandler"

	var req identity.Registration
	if err := decode(w, r, &req); err != nil {
		fail(w, r, handler, err)
		return
	}

	acc, err := api.accounts.Register(r.Context(), req)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	log.Infof("[%s][%s] user %s registered", handler, logger.Short(r.Context()), acc.ID)

	api.writeAccount(w, r, handler, http.StatusCreated, acc)
}

func (api *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "loginHandler"

	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, handler, err)
		return
	}

	acc, err := api.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	api.writeAccount(w, r, handler, http.StatusOK, acc)
}

func (api *API) meHandler(w http.ResponseWriter, r *http.Request) {
	const handler = "meHandler"

	callerID, err := requireCaller(r)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	acc, err := api.accounts.Account(r.Context(), callerID)
	if err != nil {
		fail(w, r, handler, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{Account: acc})
}

func (api *API) writeAccount(w http.ResponseWriter, r *http.Request, handler string, code int, acc identity.Account) {
	token, err := api.issuer.Issue(acc.ID)
	if err != nil {
		fail(w, r, handler, err)
		return
	}
	writeJSON(w, code, accountResponse{Account: acc, Token: token})
}
