// Package client talks to the rewards REST API on behalf of the CLI
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"carboniq/pkg/models"
)

// Client handles HTTP API communication
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates a new API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FromConfig builds a client from the CLI's viper settings
func FromConfig() *Client {
	baseURL := fmt.Sprintf("http://%s:%d/api/v1",
		viper.GetString("server.host"),
		viper.GetInt("server.http_port"))
	return NewClient(baseURL, viper.GetString("user.token"))
}

// HasToken reports whether a bearer token is configured
func (c *Client) HasToken() bool {
	return c.token != ""
}

// doRequest performs an HTTP request with common handling
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

// decodeAPIResponse unwraps the envelope into target and returns its warning, if any
func decodeAPIResponse(resp *http.Response, target interface{}) (string, error) {
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !apiResp.Success {
		if apiResp.Error != "" {
			return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, apiResp.Error)
		}
		return "", fmt.Errorf("API error (status %d)", resp.StatusCode)
	}

	if target != nil && len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, target); err != nil {
			return "", fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return apiResp.Warning, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, target interface{}) (string, error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return decodeAPIResponse(resp, target)
}

func userQuery(userID string) url.Values {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	return q
}

// Rewards endpoints

// GetStats retrieves a user's stats; empty userID means the caller
func (c *Client) GetStats(ctx context.Context, userID string) (*models.StatsResponse, error) {
	var stats models.StatsResponse
	if _, err := c.get(ctx, "/rewards/stats", userQuery(userID), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetHistory retrieves one page of a user's ledger
func (c *Client) GetHistory(ctx context.Context, userID string, limit, offset int, kind string) (*models.PaginatedResponse[models.RewardEvent], error) {
	q := userQuery(userID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if kind != "" {
		q.Set("kind", kind)
	}

	var page models.PaginatedResponse[models.RewardEvent]
	if _, err := c.get(ctx, "/rewards/history", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAchievements retrieves progress toward every badge
func (c *Client) GetAchievements(ctx context.Context, userID string) ([]models.AchievementProgress, error) {
	var progress []models.AchievementProgress
	if _, err := c.get(ctx, "/rewards/achievements", userQuery(userID), &progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// SyncStats rebuilds a user's stats from the ledger
func (c *Client) SyncStats(ctx context.Context, userID string) (*models.UserStats, error) {
	path := "/rewards/sync-stats"
	if q := userQuery(userID); len(q) > 0 {
		path += "?" + q.Encode()
	}
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}

	var stats models.UserStats
	if _, err := decodeAPIResponse(resp, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Leaderboard endpoints

// BoardQuery selects a leaderboard
type BoardQuery struct {
	Scope         string
	InstitutionID string
	Category      string
	Period        string
	Limit         int
}

func (q BoardQuery) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("scope", q.Scope)
	set("institution_id", q.InstitutionID)
	set("category", q.Category)
	set("period", q.Period)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// GetLeaderboard retrieves the top of a board
func (c *Client) GetLeaderboard(ctx context.Context, query BoardQuery) (*models.LeaderboardResult, error) {
	var board models.LeaderboardResult
	warning, err := c.get(ctx, "/leaderboard", query.values(), &board)
	if err != nil {
		return nil, err
	}
	if board.Warning == "" {
		board.Warning = warning
	}
	return &board, nil
}

// GetMyRank retrieves the caller's position on a board
func (c *Client) GetMyRank(ctx context.Context, userID string, query BoardQuery) (*models.UserRank, error) {
	q := query.values()
	if userID != "" {
		q.Set("user_id", userID)
	}

	var rank models.UserRank
	warning, err := c.get(ctx, "/rewards/my-rank", q, &rank)
	if err != nil {
		return nil, err
	}
	if rank.Warning == "" {
		rank.Warning = warning
	}
	return &rank, nil
}

// GetInstitutionRankings retrieves institutions ordered by total points
func (c *Client) GetInstitutionRankings(ctx context.Context, limit int) ([]models.InstitutionRanking, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var rankings []models.InstitutionRanking
	if _, err := c.get(ctx, "/leaderboard/institutions", q, &rankings); err != nil {
		return nil, err
	}
	return rankings, nil
}

// Admin endpoints

// RecalculateAll triggers the full ledger repair pass
func (c *Client) RecalculateAll(ctx context.Context) (*models.RecalculationSummary, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/admin/recalculate", nil)
	if err != nil {
		return nil, err
	}

	var summary models.RecalculationSummary
	if _, err := decodeAPIResponse(resp, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// RegisterSignup records a user's signup order
func (c *Client) RegisterSignup(ctx context.Context, userID string, order int64) error {
	resp, err := c.doRequest(ctx, http.MethodPut, "/internal/signups/"+url.PathEscape(userID), models.SignupRequest{Order: order})
	if err != nil {
		return err
	}
	_, err = decodeAPIResponse(resp, nil)
	return err
}
