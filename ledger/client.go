// ledger/client.go
package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultTimeout bounds every ledger call. A timed-out call is treated as a
// failed commit: rolled back locally, retried only by the player.
const DefaultTimeout = 30 * time.Second

// Client talks to the ledger RPC sidecar that signs and submits contract
// invocations. Every method is a remote call that may succeed, reject, or
// time out — callers must treat any error as "not committed".
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Receipt is the confirmation of a submitted attack.
type Receipt struct {
	Confirmed bool   `json:"confirmed"`
	Reference string `json:"reference"`
}

// GameState mirrors the contract's stored game record, used for readiness
// polling and reconnect resume.
type GameState struct {
	MatchID     string `json:"game_id"`
	Status      string `json:"status"` // Waiting | Placing | Active | Complete
	CurrentTurn int    `json:"current_turn"`
	P1Hits      int    `json:"p1_hits"`
	P2Hits      int    `json:"p2_hits"`
	Winner      int    `json:"winner"`
	MoveCount   int    `json:"move_count"`
}

// CreateMatch creates a new game on the ledger and returns its id.
func (c *Client) CreateMatch(ctx context.Context, creator string) (string, error) {
	var out struct {
		GameID string `json:"game_id"`
	}
	err := c.call(ctx, http.MethodPost, "/games", map[string]any{"creator": creator}, &out)
	if err != nil {
		return "", err
	}
	return out.GameID, nil
}

// JoinMatch joins an existing game as the second player.
func (c *Client) JoinMatch(ctx context.Context, matchID, joiner string) error {
	path := fmt.Sprintf("/games/%s/join", matchID)
	return c.call(ctx, http.MethodPost, path, map[string]any{"joiner": joiner}, nil)
}

// CommitBoard stores a board commitment hash for a seat.
func (c *Client) CommitBoard(ctx context.Context, matchID string, seat int, commitment []byte) error {
	path := fmt.Sprintf("/games/%s/board", matchID)
	body := map[string]any{
		"seat":       seat,
		"commitment": hex.EncodeToString(commitment),
	}
	return c.call(ctx, http.MethodPost, path, body, nil)
}

// SubmitAttack records an attack outcome with its proof attestation. Only a
// receipt with Confirmed=true counts as durable.
func (c *Client) SubmitAttack(ctx context.Context, matchID string, seat, x, y int, hit bool, attestation []byte) (Receipt, error) {
	path := fmt.Sprintf("/games/%s/attacks", matchID)
	body := map[string]any{
		"seat":        seat,
		"x":           x,
		"y":           y,
		"hit":         hit,
		"attestation": hex.EncodeToString(attestation),
	}
	var receipt Receipt
	if err := c.call(ctx, http.MethodPost, path, body, &receipt); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// GetGame fetches the current on-ledger game state.
func (c *Client) GetGame(ctx context.Context, matchID string) (GameState, error) {
	var state GameState
	err := c.call(ctx, http.MethodGet, "/games/"+matchID, nil, &state)
	return state, err
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindRejected, Reason: err.Error()}
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return &Error{Kind: KindRejected, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Transport failure or timeout — the call may or may not have landed.
		return &Error{Kind: KindUnavailable, Reason: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{Kind: KindRejected, Reason: fmt.Sprintf("bad response body: %v", err)}
		}
		return nil
	}

	log.Printf("[ledger] %s %s returned %d: %s", method, path, resp.StatusCode, string(respBody))
	return classify(resp.StatusCode, respBody)
}

// classify maps an error response to the taxonomy. The sidecar reports the
// contract error code in the body; the HTTP status is the fallback.
func classify(status int, body []byte) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	switch payload.Code {
	case "GAME_NOT_FOUND", "NOT_FOUND":
		return &Error{Kind: KindNotFound, Reason: payload.Message}
	case "ALREADY_JOINED", "GAME_FULL":
		return &Error{Kind: KindAlreadyJoined, Reason: payload.Message}
	case "NOT_YOUR_TURN":
		return &Error{Kind: KindNotYourTurn, Reason: payload.Message}
	case "ALREADY_ATTACKED":
		return &Error{Kind: KindAlreadyAttacked, Reason: payload.Message}
	case "INVALID_COORDINATE":
		return &Error{Kind: KindInvalidCoordinate, Reason: payload.Message}
	}

	switch status {
	case http.StatusNotFound:
		return &Error{Kind: KindNotFound, Reason: payload.Message}
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &Error{Kind: KindUnavailable, Reason: payload.Message}
	}
	return &Error{Kind: KindRejected, Reason: payload.Message}
}
