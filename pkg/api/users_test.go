package api

import (
	"fmt"
	"net/http"
	"testing"

	"buddyfeed/pkg/identity"
	"buddyfeed/pkg/models"
)

func TestAPI_accounts(t *testing.T) {
	f := newFixture(t, nil)

	reg := identity.Registration{FirstName: "Dave", LastName: "Bowman", Email: "dave@discovery.one", Password: "open-the-pod-bay-doors"}

	rr := f.do(t, http.MethodPost, "/users/register", "", reg)
	if rr.Code != http.StatusCreated {
		t.Fatalf("want status code %v, got status code %v: %s", http.StatusCreated, rr.Code, rr.Body)
	}
	created := decodeBody[accountResponse](t, rr)
	if created.ID == "" || created.Token == "" {
		t.Fatalf("want id and token, got %+v", created)
	}
	if created.Email != reg.Email {
		t.Errorf("want email %q, got %q", reg.Email, created.Email)
	}

	if rr := f.do(t, http.MethodPost, "/users/register", "", reg); rr.Code != http.StatusConflict {
		t.Errorf("want status code %v for duplicate, got %v", http.StatusConflict, rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/users/login", "", loginRequest{Email: reg.Email, Password: "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("want status code %v for bad password, got %v", http.StatusUnauthorized, rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/users/login", "", loginRequest{Email: reg.Email, Password: reg.Password})
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v: %s", http.StatusOK, rr.Code, rr.Body)
	}
	login := decodeBody[accountResponse](t, rr)
	if login.ID != created.ID {
		t.Errorf("want id %q, got %q", created.ID, login.ID)
	}

	auth := "Bearer " + login.Token
	rr = f.send(t, http.MethodGet, "/users/me", auth, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v: %s", http.StatusOK, rr.Code, rr.Body)
	}
	if me := decodeBody[accountResponse](t, rr); me.Account != created.Account || me.Token != "" {
		t.Errorf("want account %+v without token, got %+v", created.Account, me)
	}

	rr = f.send(t, http.MethodPost, "/posts", auth, postRequest{Content: "daisy"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("want status code %v, got status code %v: %s", http.StatusCreated, rr.Code, rr.Body)
	}
	post := decodeBody[models.EnrichedPost](t, rr)
	if post.Author != created.PublicProfile {
		t.Errorf("want author %+v, got %+v", created.PublicProfile, post.Author)
	}

	rr = f.do(t, http.MethodGet, fmt.Sprintf("/posts/%s", post.ID), "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("want status code %v, got %v", http.StatusOK, rr.Code)
	}
}

func TestAPI_accountsErrors(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		target string
		body   any
		want   int
	}{
		{"missing fields", "/users/register", identity.Registration{Email: "x@y.io", Password: "p"}, http.StatusBadRequest},
		{"invalid email", "/users/register", identity.Registration{FirstName: "A", LastName: "B", Email: "nope", Password: "p"}, http.StatusBadRequest},
		{"malformed body", "/users/register", "{", http.StatusBadRequest},
		{"unknown user", "/users/login", loginRequest{Email: "ghost@example.com", Password: "p"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, tt.target, "", tt.body)
			if rr.Code != tt.want {
				t.Errorf("want status code %v, got status code %v: %s", tt.want, rr.Code, rr.Body)
			}
		})
	}

	if rr := f.do(t, http.MethodGet, "/users/me", "", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("want status code %v without token, got %v", http.StatusUnauthorized, rr.Code)
	}
}
