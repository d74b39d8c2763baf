package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/tworooms/internal/model"
)

// ArchiveRepo writes finished games to the archive table before the
// reaper drops them from memory.
type ArchiveRepo struct {
	db *sql.DB
}

// NewArchiveRepo creates an ArchiveRepo.
func NewArchiveRepo(db *sql.DB) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

// archivedPlayer is one row of the per-player summary stored as JSON.
type archivedPlayer struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Character        string `json:"character"`
	OriginalRole     string `json:"original_role"`
	FinalRoom        string `json:"final_room"`
	WasSentAsHostage bool   `json:"was_sent_as_hostage"`
	UsurpedLeaders   int    `json:"usurped_leaders"`
}

// ArchiveFinished inserts one finished game. Role assignments become
// public record once the game is over.
func (r *ArchiveRepo) ArchiveFinished(ctx context.Context, g *model.Game) error {
	g.Lock()
	players := make([]archivedPlayer, 0, len(g.Players))
	for _, p := range g.SortedPlayers() {
		players = append(players, archivedPlayer{
			ID:               p.ID,
			Name:             p.Name,
			Character:        p.CurrentRole,
			OriginalRole:     p.OriginalRole,
			FinalRoom:        string(p.CurrentRoom),
			WasSentAsHostage: p.WasSentAsHostage,
			UsurpedLeaders:   p.UsurpedLeaders,
		})
	}
	id := g.ID
	code := g.Code
	winner := string(g.State.Winner)
	rounds := g.Config.TotalRounds
	createdAt := g.CreatedAt
	finishedAt := g.UpdatedAt
	g.Unlock()

	summary, err := json.Marshal(players)
	if err != nil {
		return fmt.Errorf("marshal archive summary: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO finished_games (id, code, winner, total_rounds, player_count, players, created_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		id, code, winner, rounds, len(players), summary, createdAt, finishedAt)
	if err != nil {
		return fmt.Errorf("archive game: %w", err)
	}
	return nil
}

// ArchivedGame is one row read back from the archive.
type ArchivedGame struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Winner      string          `json:"winner"`
	TotalRounds int             `json:"total_rounds"`
	PlayerCount int             `json:"player_count"`
	Players     json.RawMessage `json:"players"`
	CreatedAt   time.Time       `json:"created_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// ListRecent returns the most recently finished games.
func (r *ArchiveRepo) ListRecent(ctx context.Context, limit int) ([]ArchivedGame, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, winner, total_rounds, player_count, players, created_at, finished_at
		 FROM finished_games ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived games: %w", err)
	}
	defer rows.Close()

	var games []ArchivedGame
	for rows.Next() {
		var g ArchivedGame
		if err := rows.Scan(&g.ID, &g.Code, &g.Winner, &g.TotalRounds, &g.PlayerCount,
			&g.Players, &g.CreatedAt, &g.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan archived game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// FindByID returns one archived game, nil when absent.
func (r *ArchiveRepo) FindByID(ctx context.Context, id string) (*ArchivedGame, error) {
	var g ArchivedGame
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, winner, total_rounds, player_count, players, created_at, finished_at
		 FROM finished_games WHERE id = $1`, id).
		Scan(&g.ID, &g.Code, &g.Winner, &g.TotalRounds, &g.PlayerCount,
			&g.Players, &g.CreatedAt, &g.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find archived game: %w", err)
	}
	return &g, nil
}
