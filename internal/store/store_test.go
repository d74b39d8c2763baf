package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/freeeve/tworooms/internal/model"
)

func TestRegisterAssignsCode(t *testing.T) {
	s := New(time.Hour)
	g := model.NewGame("g1", "")
	if err := s.Register(g); err != nil {
		t.Fatal(err)
	}
	if len(g.Code) != 6 {
		t.Fatalf("code %q should be 6 characters", g.Code)
	}
	for _, ch := range g.Code {
		if !strings.ContainsRune(CodeAlphabet, ch) {
			t.Errorf("code contains %q, outside alphabet", ch)
		}
	}
}

func TestCodeAlphabetExcludesConfusables(t *testing.T) {
	for _, ch := range "IO01" {
		if strings.ContainsRune(CodeAlphabet, ch) {
			t.Errorf("alphabet must not contain %q", ch)
		}
	}
	if len(CodeAlphabet) != 32 {
		t.Errorf("alphabet length %d, want 32", len(CodeAlphabet))
	}
}

func TestGetByCodeCaseInsensitive(t *testing.T) {
	s := New(time.Hour)
	g := model.NewGame("g1", "")
	if err := s.Register(g); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetByCode(strings.ToLower(g.Code))
	if err != nil {
		t.Fatalf("lowercase lookup failed: %v", err)
	}
	if got.ID != g.ID {
		t.Error("lookup returned the wrong game")
	}
}

func TestGetUnknownGame(t *testing.T) {
	s := New(time.Hour)
	if _, err := s.Get("nope"); err != ErrGameNotFound {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
	if _, err := s.GetByCode("NOPE99"); err != ErrGameNotFound {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	s := New(time.Hour)
	g := model.NewGame("g1", "")
	if err := s.Register(g); err != nil {
		t.Fatal(err)
	}
	s.Remove(g.ID)
	if _, err := s.Get(g.ID); err != ErrGameNotFound {
		t.Error("game should be gone by id")
	}
	if _, err := s.GetByCode(g.Code); err != ErrGameNotFound {
		t.Error("game should be gone by code")
	}
}

type recordingArchiver struct {
	archived []string
}

func (a *recordingArchiver) ArchiveFinished(ctx context.Context, g *model.Game) error {
	a.archived = append(a.archived, g.ID)
	return nil
}

func TestReapArchivesExpiredFinishedGames(t *testing.T) {
	s := New(time.Hour)
	arch := &recordingArchiver{}
	s.SetArchiver(arch)

	stale := model.NewGame("stale", "")
	stale.State.Phase = model.PhaseFinished
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	if err := s.Register(stale); err != nil {
		t.Fatal(err)
	}

	fresh := model.NewGame("fresh", "")
	fresh.State.Phase = model.PhaseFinished
	fresh.UpdatedAt = time.Now()
	if err := s.Register(fresh); err != nil {
		t.Fatal(err)
	}

	active := model.NewGame("active", "")
	active.State.Phase = model.PhaseRound
	active.UpdatedAt = time.Now().Add(-3 * time.Hour)
	if err := s.Register(active); err != nil {
		t.Fatal(err)
	}

	removed := s.Reap(context.Background(), time.Now())
	if removed != 1 {
		t.Fatalf("reaped %d games, want 1", removed)
	}
	if len(arch.archived) != 1 || arch.archived[0] != "stale" {
		t.Errorf("archived %v, want [stale]", arch.archived)
	}
	if _, err := s.Get("active"); err != nil {
		t.Error("active game must survive the reaper regardless of age")
	}
	if _, err := s.Get("fresh"); err != nil {
		t.Error("recently finished game must survive until retention passes")
	}
}

func TestRegisterGeneratesUniqueCodes(t *testing.T) {
	s := New(time.Hour)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		g := model.NewGame(fmt.Sprintf("game-%d", i), "")
		if err := s.Register(g); err != nil {
			t.Fatal(err)
		}
		if seen[g.Code] {
			t.Fatalf("duplicate code %s", g.Code)
		}
		seen[g.Code] = true
	}
}
