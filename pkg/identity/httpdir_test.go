package identity

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/h2non/gock"

	"buddyfeed/pkg/models"
)

const usersServiceURL = "http://users.local"

func TestHTTPDirectory_Profile(t *testing.T) {
	defer gock.Off()

	gock.New(usersServiceURL).
		Get("/users/alice").
		Reply(http.StatusOK).
		JSON(map[string]string{
			"first_name": "Alice",
			"last_name":  "Liddell",
			"email":      "alice@example.com",
		})
	gock.New(usersServiceURL).
		Get("/users/ghost").
		Reply(http.StatusNotFound)

	d := NewHTTPDirectory(usersServiceURL+"/", time.Second)

	got, err := d.Profile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.PublicProfile{
		ID:             "alice",
		FirstName:      "Alice",
		LastName:       "Liddell",
		ProfilePicture: models.DefaultProfilePicture,
	}
	if got != want {
		t.Errorf("want profile %+v, got %+v", want, got)
	}

	if _, err := d.Profile(context.Background(), "ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("want error %v, got %v", ErrProfileNotFound, err)
	}

	if !gock.IsDone() {
		t.Error("not all expected requests were made")
	}
}

func TestHTTPDirectory_Profiles(t *testing.T) {
	defer gock.Off()

	gock.New(usersServiceURL).
		Get("/users/alice").
		Reply(http.StatusOK).
		JSON(map[string]string{"first_name": "Alice", "last_name": "Liddell", "profile_picture": "/a.png"})
	gock.New(usersServiceURL).
		Get("/users/bob").
		Reply(http.StatusOK).
		JSON(map[string]string{"first_name": "Bob", "last_name": "Builder"})
	gock.New(usersServiceURL).
		Get("/users/ghost").
		Reply(http.StatusNotFound)

	d := NewHTTPDirectory(usersServiceURL, time.Second)
	d.Limit = 2

	got, err := d.Profiles(context.Background(), []string{"alice", "ghost", "bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]models.PublicProfile{
		"alice": {ID: "alice", FirstName: "Alice", LastName: "Liddell", ProfilePicture: "/a.png"},
		"bob":   {ID: "bob", FirstName: "Bob", LastName: "Builder", ProfilePicture: models.DefaultProfilePicture},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("want profiles\n%+v\ngot\n%+v", want, got)
	}
}

func TestHTTPDirectory_ProfilesUnavailable(t *testing.T) {
	defer gock.Off()

	gock.New(usersServiceURL).
		Get("/users/alice").
		Reply(http.StatusInternalServerError)

	d := NewHTTPDirectory(usersServiceURL, time.Second)

	_, err := d.Profiles(context.Background(), []string{"alice"})
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Errorf("want error %v, got %v", ErrDirectoryUnavailable, err)
	}
}
