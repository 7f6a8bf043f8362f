package gitsource

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
		wantErr  bool
	}{
		{url: "https://github.com/acme/decks.git", expected: filepath.Join("repos", "github.com", "acme", "decks")},
		{url: "http://git.example.com:8080/acme/decks", expected: filepath.Join("repos", "git.example.com", "acme", "decks")},
		{url: "git@github.com:acme/decks.git", expected: filepath.Join("repos", "github.com", "acme", "decks")},
		{url: "ssh://git@github.com/acme/decks.git", expected: filepath.Join("repos", "github.com", "acme", "decks")},
		{url: "./notes", wantErr: true},
		{url: "https://github.com/", wantErr: true},
		{url: "https://github.com/../../etc", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected an error, got path %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath() returned an unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %s, but got %s", tc.expected, got)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	remotes := []string{"https://github.com/a/b.git", "git@github.com:a/b.git", "ssh://host/a/b"}
	for _, r := range remotes {
		if !IsRemote(r) {
			t.Errorf("Expected %s to be remote", r)
		}
	}
	locals := []string{"notes", "./decks/biology", "/home/me/decks", "C:/decks"}
	for _, l := range locals {
		if IsRemote(l) {
			t.Errorf("Expected %s to be local", l)
		}
	}
}

func TestSyncRejectsNonRepository(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := Sync(context.Background(), logger, "https://example.com/a/b.git", t.TempDir(), nil)
	if err == nil {
		t.Fatal("Expected an error pulling into a directory that is not a repository")
	}
}
