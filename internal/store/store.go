// Package store writes capture artifacts to the content store. It is the only
// package that writes there.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"x-post-capture/internal/document"
)

// Store is a content-store directory keyed by status id.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir.
func New(dir string) *Store { return &Store{Dir: dir} }

// JSONPath is the machine-readable artifact path for statusID.
func (s *Store) JSONPath(statusID string) string {
	return filepath.Join(s.Dir, statusID+".json")
}

// MarkdownPath is the human-readable artifact path for statusID.
func (s *Store) MarkdownPath(statusID string) string {
	return filepath.Join(s.Dir, statusID+".md")
}

// EncodeJSON encodes the artifact as indented JSON with a trailing newline.
func EncodeJSON(a *document.CaptureArtifact) ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes both representations, replacing any previous artifact for the
// same status id. extraJSON, if set, receives another copy of the JSON.
func (s *Store) Save(a *document.CaptureArtifact, extraJSON string) (Summary, error) {
	sid := a.Main.StatusID
	if sid == "" {
		sid = a.TargetStatusID
	}
	if sid == "" {
		return Summary{}, errors.New("artifact has no status id")
	}
	if a.Thread == nil {
		a.Thread = []document.Post{}
	}
	if a.Articles == nil {
		a.Articles = []document.Article{}
	}
	a.ThreadCount = len(a.Thread)

	data, err := EncodeJSON(a)
	if err != nil {
		return Summary{}, fmt.Errorf("encode artifact: %w", err)
	}
	md, err := RenderMarkdown(a)
	if err != nil {
		return Summary{}, fmt.Errorf("render markdown: %w", err)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Summary{}, err
	}
	jsonPath, mdPath := s.JSONPath(sid), s.MarkdownPath(sid)
	if err := WriteFileAtomic(jsonPath, data, 0o644); err != nil {
		return Summary{}, fmt.Errorf("write json: %w", err)
	}
	if err := WriteFileAtomic(mdPath, md, 0o644); err != nil {
		return Summary{}, fmt.Errorf("write markdown: %w", err)
	}
	if extraJSON != "" {
		if err := os.MkdirAll(filepath.Dir(extraJSON), 0o755); err != nil {
			return Summary{}, err
		}
		if err := WriteFileAtomic(extraJSON, data, 0o644); err != nil {
			return Summary{}, fmt.Errorf("write output copy: %w", err)
		}
	}

	sum := Summarize(a)
	sum.JSONPath, sum.MarkdownPath, sum.ExtraPath = jsonPath, mdPath, extraJSON
	return sum, nil
}

// Load reads a previously written artifact.
func (s *Store) Load(statusID string) (*document.CaptureArtifact, error) {
	b, err := os.ReadFile(s.JSONPath(statusID))
	if err != nil {
		return nil, err
	}
	var a document.CaptureArtifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", statusID, err)
	}
	return &a, nil
}

// WriteFileAtomic writes data to a temp file in path's directory and renames
// it over path, so readers see either the old or the new file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	cleanup := func() { _ = os.Remove(name) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(name, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(name, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
