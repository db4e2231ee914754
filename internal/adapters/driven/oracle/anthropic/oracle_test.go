package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-test", r.Header.Get("X-Api-Key"))
		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"` + DefaultModel +
			`","content":` + content + `,"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"has_more":false,"first_id":null,"last_id":null}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOracle(t *testing.T, srv *httptest.Server) *Oracle {
	t.Helper()
	noRetries := 0
	o, err := New(Config{APIKey: "key-test", BaseURL: srv.URL, MaxRetries: &noRetries})
	require.NoError(t, err)
	return o
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestOracle_Infer(t *testing.T) {
	srv := newTestServer(t, `[{"type":"text","text":"reads "},{"type":"text","text":"a file"}]`)
	resp, err := newTestOracle(t, srv).Infer(context.Background(), "describe")
	require.NoError(t, err)
	assert.Equal(t, "reads a file", resp)
}

func TestOracle_Infer_NoText(t *testing.T) {
	srv := newTestServer(t, `[]`)
	_, err := newTestOracle(t, srv).Infer(context.Background(), "describe")
	assert.ErrorContains(t, err, "no text")
}

func TestOracle_Ping(t *testing.T) {
	srv := newTestServer(t, `[]`)
	assert.NoError(t, newTestOracle(t, srv).Ping(context.Background()))
}
