// ABOUTME: Exchanges the long-lived API key for a short-lived streaming token
// ABOUTME: Falls back to the API key when the token endpoint is absent or unreachable

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrTokenRequest is returned when the token endpoint answers with an
// unexpected status. A 404 (endpoint not deployed) and transport
// failures are NOT errors - those fall back to the long-lived key.
var ErrTokenRequest = errors.New("streaming token request failed")

const (
	// tokenExpirySeconds is the requested lifetime of issued tokens.
	tokenExpirySeconds = 3600
	// tokenFetchTimeout bounds the token exchange round trip.
	tokenFetchTimeout = 10 * time.Second
)

// TokenProvider obtains bearer tokens for the upstream streaming endpoint.
type TokenProvider struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewTokenProvider creates a provider that issues tokens against baseURL.
// The http.Client is shared with the rest of the upstream layer.
func NewTokenProvider(baseURL, apiKey string, httpc *http.Client, logger *slog.Logger) *TokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   httpc,
		logger:  logger.With("component", "token"),
	}
}

// Token returns a bearer token for streaming to the given agent.
//
// The provider asks the platform's token endpoint for a short-lived
// token. When the endpoint does not exist (404) or the request fails at
// the transport level, the long-lived API key is returned instead so the
// relay attempt can proceed; the two fallback causes are logged
// distinctly so a transient outage is not mistaken for a missing
// endpoint. Any other non-200 status is a hard error.
func (p *TokenProvider) Token(ctx context.Context, agentID string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"agentId":   agentID,
		"expiresIn": tokenExpirySeconds,
	})
	if err != nil {
		return "", fmt.Errorf("encoding token request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, tokenFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/agents/auth/websocket", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		p.logger.Warn("token endpoint unreachable, falling back to API key",
			"agent_id", agentID,
			"cause", "transport",
			"error", err)
		return p.apiKey, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var data struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.Token == "" {
			p.logger.Warn("token response unusable, falling back to API key",
				"agent_id", agentID,
				"cause", "decode",
				"error", err)
			return p.apiKey, nil
		}
		return data.Token, nil

	case resp.StatusCode == http.StatusNotFound:
		// Older deployments have no token endpoint - the API key works directly
		p.logger.Info("token endpoint not found, using API key directly",
			"agent_id", agentID)
		return p.apiKey, nil

	default:
		return "", fmt.Errorf("%w: status %d", ErrTokenRequest, resp.StatusCode)
	}
}
