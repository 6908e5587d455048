package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whatsapp-bridge/internal/domain"
)

func TestRunURL(t *testing.T) {
	require.Equal(t, "http://agent:8000/agent/run", runURL("http://agent:8000"))
	require.Equal(t, "http://agent:8000/agent/run", runURL("http://agent:8000/"))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(srv.URL, WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
}

func TestClient_Run_HappyPath(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/agent/run", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"response":"Merhaba!","intent":"greeting"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Run(context.Background(), RunRequest{
		UserID:         "+905551112233",
		Message:        "selam",
		History:        []domain.Turn{{Role: domain.RoleUser, Content: "önceki"}},
		MediaPaths:     []string{"905551112233/d1/a.jpeg"},
		MediaType:      "image/jpeg",
		DraftListingID: "d1",
	})
	require.NoError(t, err)
	require.Equal(t, "Merhaba!", out.Response)
	require.Equal(t, "greeting", out.Intent)

	require.Equal(t, "+905551112233", got["user_id"])
	require.Equal(t, "selam", got["message"])
	require.Equal(t, "image/jpeg", got["media_type"])
	require.Equal(t, "d1", got["draft_listing_id"])
	require.Equal(t, []any{"905551112233/d1/a.jpeg"}, got["media_paths"])
	history := got["conversation_history"].([]any)
	require.Len(t, history, 1)
	require.Equal(t, "önceki", history[0].(map[string]any)["content"])
}

func TestClient_Run_OptionalFieldsAreNull(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		_, _ = w.Write([]byte(`{"success":true,"response":"ok"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Run(context.Background(), RunRequest{UserID: "u", Message: "m"})
	require.NoError(t, err)
	require.Contains(t, raw, `"media_paths":null`)
	require.Contains(t, raw, `"media_type":null`)
	require.Contains(t, raw, `"draft_listing_id":null`)
	require.Contains(t, raw, `"conversation_history":[]`)
}

func TestClient_Run_NotConfigured(t *testing.T) {
	_, err := NewClient("  ").Run(context.Background(), RunRequest{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_Run_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(502)
		_, _ = w.Write([]byte(`{"detail":"bad gateway"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Run(context.Background(), RunRequest{})
	var he *HTTPStatusError
	require.ErrorAs(t, err, &he)
	require.Equal(t, 502, he.HTTPStatusCode())
	require.Contains(t, err.Error(), "unexpected status")
}

func TestClient_Run_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true,"response":"late"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Run(context.Background(), RunRequest{})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestClient_Run_Unsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"response":"nope"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Run(context.Background(), RunRequest{})
	require.ErrorIs(t, err, ErrUnsuccessful)
}

func TestClient_Run_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"response":"  "}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Run(context.Background(), RunRequest{})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_Run_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Run(context.Background(), RunRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Run_NetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	_, err := c.Run(context.Background(), RunRequest{})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotConfigured))
}
