// Package storage keeps a local sqlite archive of finished matches and games.
// It is the server's own audit trail; the authoritative records live with the
// external collaborator.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"bisca/internal/game"
	"bisca/internal/match"
)

// MatchRow is one archived match.
type MatchRow struct {
	ID           string
	ExternalID   string
	Mode         string
	Format       string
	Player1ID    string
	Player1Name  string
	Player2ID    string
	Player2Name  string
	Player1Marks int
	Player2Marks int
	WinnerID     string
	Stake        int
	BeganAt      time.Time
	EndedAt      time.Time
}

// GameRow is one archived game with its trick history.
type GameRow struct {
	ID            string
	MatchID       string
	Player1Points int
	Player2Points int
	WinnerID      string
	Reason        string
	IsDraw        bool
	Tricks        []game.TrickRecord
	EndedAt       time.Time
}

// Store handles sqlite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			id            TEXT PRIMARY KEY,
			external_id   TEXT NOT NULL DEFAULT '',
			mode          TEXT NOT NULL,
			format        TEXT NOT NULL,
			player1_id    TEXT NOT NULL,
			player1_name  TEXT NOT NULL,
			player2_id    TEXT NOT NULL,
			player2_name  TEXT NOT NULL,
			player1_marks INTEGER NOT NULL DEFAULT 0,
			player2_marks INTEGER NOT NULL DEFAULT 0,
			winner_id     TEXT NOT NULL DEFAULT '',
			stake         INTEGER NOT NULL DEFAULT 0,
			began_at      DATETIME NOT NULL,
			ended_at      DATETIME
		);
		CREATE TABLE IF NOT EXISTS games (
			id             TEXT PRIMARY KEY,
			match_id       TEXT NOT NULL REFERENCES matches(id),
			player1_points INTEGER NOT NULL DEFAULT 0,
			player2_points INTEGER NOT NULL DEFAULT 0,
			winner_id      TEXT NOT NULL DEFAULT '',
			reason         TEXT NOT NULL DEFAULT '',
			is_draw        INTEGER NOT NULL DEFAULT 0,
			tricks_json    TEXT NOT NULL DEFAULT '[]',
			ended_at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_games_match ON games(match_id);
	`)
	return err
}

// SaveMatch upserts a match record. Called when the match ends; a second call
// rewrites the same terminal state.
func (s *Store) SaveMatch(m *match.Match) error {
	_, err := s.db.Exec(`
		INSERT INTO matches (id, external_id, mode, format,
			player1_id, player1_name, player2_id, player2_name,
			player1_marks, player2_marks, winner_id, stake, began_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id   = excluded.external_id,
			player1_marks = excluded.player1_marks,
			player2_marks = excluded.player2_marks,
			winner_id     = excluded.winner_id,
			ended_at      = excluded.ended_at
	`, m.ID, m.ExternalID, m.Mode, m.Format,
		m.Player1.ID, m.Player1.Name, m.Player2.ID, m.Player2.Name,
		m.Player1Marks, m.Player2Marks, m.WinnerID, m.Stake, m.BeganAt, m.EndedAt)
	return err
}

// SaveGame archives one finished game under its match. Games never change
// once written.
func (s *Store) SaveGame(matchID string, g *game.Game) error {
	tricks, err := json.Marshal(g.TricksHistory)
	if err != nil {
		return fmt.Errorf("marshal tricks: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO games (id, match_id, player1_points, player2_points,
			winner_id, reason, is_draw, tricks_json, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, g.ID, matchID, g.Points[g.Player1], g.Points[g.Player2],
		g.Winner, g.WinnerReason, g.IsDraw, string(tricks), g.EndedAt)
	return err
}

// GetMatch retrieves an archived match.
func (s *Store) GetMatch(id string) (*MatchRow, error) {
	row := s.db.QueryRow(`
		SELECT id, external_id, mode, format,
			player1_id, player1_name, player2_id, player2_name,
			player1_marks, player2_marks, winner_id, stake, began_at, ended_at
		FROM matches WHERE id = ?`, id)
	var mr MatchRow
	var endedAt sql.NullTime
	if err := row.Scan(&mr.ID, &mr.ExternalID, &mr.Mode, &mr.Format,
		&mr.Player1ID, &mr.Player1Name, &mr.Player2ID, &mr.Player2Name,
		&mr.Player1Marks, &mr.Player2Marks, &mr.WinnerID, &mr.Stake,
		&mr.BeganAt, &endedAt); err != nil {
		return nil, err
	}
	mr.EndedAt = endedAt.Time
	return &mr, nil
}

// ListMatchGames returns the archived games of a match in play order.
func (s *Store) ListMatchGames(matchID string) ([]GameRow, error) {
	rows, err := s.db.Query(`
		SELECT id, match_id, player1_points, player2_points,
			winner_id, reason, is_draw, tricks_json, ended_at
		FROM games WHERE match_id = ? ORDER BY ended_at`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GameRow
	for rows.Next() {
		var gr GameRow
		var tricks string
		if err := rows.Scan(&gr.ID, &gr.MatchID, &gr.Player1Points, &gr.Player2Points,
			&gr.WinnerID, &gr.Reason, &gr.IsDraw, &tricks, &gr.EndedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tricks), &gr.Tricks); err != nil {
			return nil, fmt.Errorf("unmarshal tricks for game %s: %w", gr.ID, err)
		}
		result = append(result, gr)
	}
	return result, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
