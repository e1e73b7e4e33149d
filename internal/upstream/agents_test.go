// ABOUTME: Tests for agent discovery
// ABOUTME: Covers the response shape variants and the empty-list degradation

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a Client at a fake platform server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "api-key-123", nil)
	c.httpc = srv.Client()
	return c
}

func TestListAgents_BareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents", r.URL.Path)
		assert.Equal(t, "Bearer api-key-123", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":"a1","name":"Helper","username":"helper"}]`))
	})

	agents := c.ListAgents(context.Background())
	require.Len(t, agents, 1)
	assert.Equal(t, "a1", agents[0].ID)
	assert.Equal(t, "Helper", agents[0].Name)
	assert.Equal(t, "helper", agents[0].Username)
}

func TestListAgents_WrapperKeys(t *testing.T) {
	for _, key := range []string{"agents", "data", "results"} {
		t.Run(key, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"` + key + `":[{"id":"a1"},{"id":"a2"}]}`))
			})

			agents := c.ListAgents(context.Background())
			require.Len(t, agents, 2)
			assert.Equal(t, "a2", agents[1].ID)
		})
	}
}

func TestListAgents_NonOKStatusYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	assert.Empty(t, c.ListAgents(context.Background()))
}

func TestListAgents_MalformedBodyYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	assert.Empty(t, c.ListAgents(context.Background()))
}

func TestListAgents_UnexpectedShapeYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unrelated":true}`))
	})

	assert.Empty(t, c.ListAgents(context.Background()))
}

func TestGetAgent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"a1","name":"Helper"},{"id":"a2","name":"Writer"}]`))
	})

	agent, ok := c.GetAgent(context.Background(), "a2")
	require.True(t, ok)
	assert.Equal(t, "Writer", agent.Name)

	_, ok = c.GetAgent(context.Background(), "missing")
	assert.False(t, ok)
}

func TestCheckConnection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	assert.True(t, c.CheckConnection(context.Background()))

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assert.False(t, down.CheckConnection(context.Background()))
}
