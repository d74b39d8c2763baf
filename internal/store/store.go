// Package store holds live games in memory, generates room codes, and
// reaps finished games past the retention window.
package store

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/tworooms/internal/model"
)

var (
	ErrGameNotFound  = errors.New("game not found")
	ErrCodeExhausted = errors.New("room code generation exhausted after 100 attempts")
)

// CodeAlphabet is the confusion-reduced character set for room codes:
// no I, O, 0, or 1.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeLength  = 6
	codeRetries = 100
)

// Archiver receives a finished game before the reaper drops it.
// Implemented by the postgres archive repository; nil disables archiving.
type Archiver interface {
	ArchiveFinished(ctx context.Context, g *model.Game) error
}

// Store is the concurrency-safe map of live games.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*model.Game
	byCode    map[string]*model.Game
	retention time.Duration
	archiver  Archiver
}

// New creates a store with the given FINISHED-game retention window.
func New(retention time.Duration) *Store {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Store{
		byID:      make(map[string]*model.Game),
		byCode:    make(map[string]*model.Game),
		retention: retention,
	}
}

// SetArchiver wires the optional finished-game archiver.
func (s *Store) SetArchiver(a Archiver) { s.archiver = a }

// NewCode generates a unique room code, retrying on collision up to 100
// times before failing fast. Callers must hold the store lock.
func (s *Store) newCodeLocked() (string, error) {
	for i := 0; i < codeRetries; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// Register assigns a fresh code to the game and adds it to the store.
func (s *Store) Register(g *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, err := s.newCodeLocked()
	if err != nil {
		return err
	}
	g.Code = code
	s.byID[g.ID] = g
	s.byCode[code] = g
	return nil
}

// Get returns a game by id.
func (s *Store) Get(id string) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.byID[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// GetByCode returns a game by room code, case-insensitively.
func (s *Store) GetByCode(code string) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// Remove drops a game from the store.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.byID[id]; ok {
		delete(s.byCode, g.Code)
		delete(s.byID, id)
	}
}

// Count returns the number of live games.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Reap removes games whose phase is FINISHED and whose last mutation is
// older than the retention window, archiving each first when an archiver
// is configured. Returns the number of games removed.
func (s *Store) Reap(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	var expired []*model.Game
	for _, g := range s.byID {
		g.Lock()
		done := g.State.Phase == model.PhaseFinished && now.Sub(g.UpdatedAt) > s.retention
		g.Unlock()
		if done {
			expired = append(expired, g)
			delete(s.byCode, g.Code)
			delete(s.byID, g.ID)
		}
	}
	s.mu.Unlock()

	for _, g := range expired {
		if s.archiver != nil {
			if err := s.archiver.ArchiveFinished(ctx, g); err != nil {
				log.Error().Err(err).Str("gameId", g.ID).Msg("Failed to archive finished game")
			}
		}
		log.Info().Str("gameId", g.ID).Str("code", g.Code).Msg("Reaped finished game")
	}
	return len(expired)
}

// StartReaper runs Reap on the given interval until the context is done.
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Dur("retention", s.retention).Msg("Game reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Game reaper stopped")
			return
		case now := <-ticker.C:
			s.Reap(ctx, now)
		}
	}
}

// randomCode draws codeLength characters uniformly from CodeAlphabet
// using a cryptographically strong source.
func randomCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = CodeAlphabet[int(b[i])%len(CodeAlphabet)]
	}
	return string(b), nil
}
