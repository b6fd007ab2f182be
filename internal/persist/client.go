// Package persist talks to the external HTTP collaborator that owns the
// relational schema: match records, per-game results and the leaderboard
// notification sink. Every call is best-effort; a failure is logged and
// never blocks gameplay.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bisca/internal/game"
)

// Client is the HTTP collaborator client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// New creates a client. An empty baseURL disables every call.
func New(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger,
	}
}

// Enabled reports whether a collaborator endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

// CreateMatchRequest is the POST /matches body.
type CreateMatchRequest struct {
	Type       string `json:"type"`
	Stake      int    `json:"stake"`
	OpponentID string `json:"opponent_id,omitempty"`
}

type createMatchResponse struct {
	ID json.Number `json:"id"`
}

// CreateMatch registers a new match record and returns the collaborator's id
// for it.
func (c *Client) CreateMatch(ctx context.Context, req CreateMatchRequest) (string, error) {
	var resp createMatchResponse
	if err := c.do(ctx, http.MethodPost, "/matches", req, &resp); err != nil {
		return "", err
	}
	return resp.ID.String(), nil
}

// GameResult carries one finished game's totals and trick history for the
// finalize payload.
type GameResult struct {
	Player1Points int                `json:"player1_points"`
	Player2Points int                `json:"player2_points"`
	WinnerID      string             `json:"winner_id,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Tricks        []game.TrickRecord `json:"tricks"`
}

// FinalizeMatchRequest is the PUT /matches/{id} body.
type FinalizeMatchRequest struct {
	Player1Marks       int            `json:"player1_marks"`
	Player2Marks       int            `json:"player2_marks"`
	Player1PointsTotal int            `json:"player1_points_total"`
	Player2PointsTotal int            `json:"player2_points_total"`
	TotalTime          float64        `json:"total_time"`
	Games              []GameResult   `json:"games"`
	Custom             map[string]any `json:"custom,omitempty"`
}

type finalizeMatchResponse struct {
	LeaderboardChanged bool `json:"leaderboard_changed"`
}

// FinalizeMatch writes the final match record. The response reports whether
// this result changed the global leaderboard leader.
func (c *Client) FinalizeMatch(ctx context.Context, externalID string, req FinalizeMatchRequest) (leaderboardChanged bool, err error) {
	var resp finalizeMatchResponse
	path := "/matches/" + externalID
	if err := c.do(ctx, http.MethodPut, path, req, &resp); err != nil {
		// One retry; the record is idempotent upstream.
		c.log.Warn("finalize failed, retrying",
			zap.String("external_id", externalID), zap.Error(err))
		if err = c.do(ctx, http.MethodPut, path, req, &resp); err != nil {
			return false, err
		}
	}
	return resp.LeaderboardChanged, nil
}

// NotifyLeaderboard broadcasts a leaderboard-change event to all known users
// through the collaborator's notification sink.
func (c *Client) NotifyLeaderboard(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/leaderboard", struct{}{}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.Enabled() {
		return nil
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
