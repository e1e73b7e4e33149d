// ABOUTME: Agent discovery against the upstream platform's REST API
// ABOUTME: Tolerates several response shapes and degrades to an empty list on failure

package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Agent describes a conversational agent hosted on the upstream platform.
// ModelSettings is an opaque JSON string; malformed settings fall back to
// defaults at parse time.
type Agent struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Username            string `json:"username"`
	Description         string `json:"description"`
	Instructions        string `json:"instructions"`
	PersonaInstructions string `json:"persona_instructions"`
	ModelSettings       string `json:"model_settings"`
}

// connectionCheckTimeout bounds the startup reachability probe.
const connectionCheckTimeout = 5 * time.Second

// ListAgents fetches the available agents from the platform.
//
// The endpoint has returned several shapes over time: a bare JSON array,
// or an object with the list under "agents", "data", or "results"
// (checked in that order). Any status or parse failure yields an empty
// list rather than an error - agent discovery is advisory, and callers
// treat an absent agent the same as an unlisted one.
func (c *Client) ListAgents(ctx context.Context) []Agent {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/agents", nil)
	if err != nil {
		c.logger.Error("creating agents request", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Error("fetching agents", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("fetching agents", "status", resp.StatusCode)
		return nil
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.logger.Error("decoding agents response", "error", err)
		return nil
	}

	return extractAgents(raw, c)
}

// extractAgents pulls the agent list out of whichever shape the platform used
func extractAgents(raw json.RawMessage, c *Client) []Agent {
	var list []Agent
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		c.logger.Error("unexpected agents response shape")
		return nil
	}

	for _, key := range []string{"agents", "data", "results"} {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &list); err == nil {
			return list
		}
	}

	return nil
}

// GetAgent looks up a single agent by ID.
func (c *Client) GetAgent(ctx context.Context, id string) (*Agent, bool) {
	for _, a := range c.ListAgents(ctx) {
		if a.ID == id {
			return &a, true
		}
	}
	return nil, false
}

// CheckConnection reports whether the upstream platform is reachable with
// the configured credentials. Used at startup as a warn-only probe.
func (c *Client) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, connectionCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/agents", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
