package memdb

import (
	"context"
	"testing"

	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
	"buddyfeed/pkg/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New()
	})
}

func TestStore_PostIsolated(t *testing.T) {
	db := New()

	post, err := db.CreatePost(context.Background(), "alice", "hi", "", "")
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}
	if _, err := db.AddComment(context.Background(), post.ID, "bob", "nice"); err != nil {
		t.Fatalf("unexpected error adding comment: %v", err)
	}

	got, err := db.Post(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("unexpected error retrieving post: %v", err)
	}
	got.LikerIDs = append(got.LikerIDs, "mallory")
	got.Comments[0].Content = "edited outside the store"

	again, err := db.Post(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("unexpected error retrieving post: %v", err)
	}
	if len(again.LikerIDs) != 0 {
		t.Errorf("caller copy leaked into store likers: %v", again.LikerIDs)
	}
	if again.Comments[0].Content != "nice" {
		t.Errorf("caller copy leaked into store comment: %q", again.Comments[0].Content)
	}
}

func TestStore_ToggleLikeConcurrentManyActors(t *testing.T) {
	db := New()
	post, err := db.CreatePost(context.Background(), "alice", "hi", "", models.Public)
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}

	const actors, rounds = 10, 3
	done := make(chan struct{})
	for a := 0; a < actors; a++ {
		go func(a int) {
			defer func() { done <- struct{}{} }()
			actor := string(rune('a' + a))
			for i := 0; i < rounds; i++ {
				if _, err := db.ToggleLike(context.Background(), models.PostPath(post.ID), actor); err != nil {
					t.Errorf("unexpected error toggling like: %v", err)
				}
			}
		}(a)
	}
	for a := 0; a < actors; a++ {
		<-done
	}

	// Every actor toggled an odd number of times.
	likers, err := db.Likers(context.Background(), models.PostPath(post.ID))
	if err != nil {
		t.Fatalf("unexpected error listing likers: %v", err)
	}
	if len(likers) != actors {
		t.Errorf("want %d likers, got %v", actors, likers)
	}
}
