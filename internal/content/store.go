// Package content reads and writes conference content documents, one JSON
// file per conference slug. Registration and check-in data lives in SQL; only
// content (sessions, whitelist, metadata) is file-backed.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
)

var (
	ErrConferenceNotFound = errors.New("conference not found")
	ErrSessionNotFound    = errors.New("session not found")
)

// Store is the file-backed conference content store.
type Store struct {
	dir    string
	locks  *keyedMutex
	logger *zap.Logger
}

// NewStore creates a store over dir, creating it if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	return &Store{dir: dir, locks: newKeyedMutex(), logger: logger}, nil
}

func (s *Store) path(slug string) string {
	return filepath.Join(s.dir, slug+".json")
}

// Conference loads one conference document by slug.
func (s *Store) Conference(slug string) (*models.Conference, error) {
	unlock := s.locks.lock(slug)
	defer unlock()
	return s.read(slug)
}

// Conferences returns every conference document, active or not.
func (s *Store) Conferences() ([]models.Conference, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}
	var all []models.Conference
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		slug := strings.TrimSuffix(e.Name(), ".json")
		conf, err := s.Conference(slug)
		if err != nil {
			s.logger.Warn("skipping unreadable conference file", zap.String("slug", slug), zap.Error(err))
			continue
		}
		all = append(all, *conf)
	}
	return all, nil
}

// ActiveConferences returns every conference document marked active.
func (s *Store) ActiveConferences() ([]models.Conference, error) {
	all, err := s.Conferences()
	if err != nil {
		return nil, err
	}
	var active []models.Conference
	for _, conf := range all {
		if conf.Active {
			active = append(active, conf)
		}
	}
	return active, nil
}

// Sessions returns all sessions of a conference.
func (s *Store) Sessions(slug string) ([]models.Session, error) {
	conf, err := s.Conference(slug)
	if err != nil {
		return nil, err
	}
	return conf.Sessions, nil
}

// SessionByID returns one session of a conference, or ErrSessionNotFound.
func (s *Store) SessionByID(slug, id string) (*models.Session, error) {
	conf, err := s.Conference(slug)
	if err != nil {
		return nil, err
	}
	for i := range conf.Sessions {
		if conf.Sessions[i].ID == id {
			return &conf.Sessions[i], nil
		}
	}
	return nil, ErrSessionNotFound
}

// SaveConference writes a conference document atomically (temp file + rename)
// under the slug lock.
func (s *Store) SaveConference(conf *models.Conference) error {
	if conf.Slug == "" {
		return errors.New("conference slug required")
	}
	unlock := s.locks.lock(conf.Slug)
	defer unlock()

	for i := range conf.Sessions {
		conf.Sessions[i].ConferenceSlug = conf.Slug
	}

	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conference: %w", err)
	}
	tmp := s.path(conf.Slug) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write conference: %w", err)
	}
	if err := os.Rename(tmp, s.path(conf.Slug)); err != nil {
		return fmt.Errorf("rename conference: %w", err)
	}
	return nil
}

func (s *Store) read(slug string) (*models.Conference, error) {
	data, err := os.ReadFile(s.path(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConferenceNotFound
		}
		return nil, fmt.Errorf("read conference %s: %w", slug, err)
	}
	var conf models.Conference
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("parse conference %s: %w", slug, err)
	}
	conf.Slug = slug
	for i := range conf.Sessions {
		conf.Sessions[i].ConferenceSlug = slug
	}
	return &conf, nil
}
