package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/Agents-for-net-sub004/internal/retry"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

func testPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func outgoing(serviceURL string) *types.Activity {
	return &types.Activity{
		Type:         types.ActivityTypeTyping,
		ServiceURL:   serviceURL,
		ChannelID:    "msteams",
		Conversation: &types.ConversationAccount{ID: "a:conv/1"},
		ReplyToID:    "in-7",
		Text:         "partial",
	}
}

func TestClient_SendToConversation(t *testing.T) {
	var gotPath, gotAuth string
	var got types.Activity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"stream-9"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(NewStaticTokenProvider("secret"), WithRetryPolicy(testPolicy()))
	resp, err := c.SendToConversation(context.Background(), outgoing(srv.URL+"/"))
	require.NoError(t, err)

	assert.Equal(t, "stream-9", resp.ID)
	assert.Equal(t, "/v3/conversations/a:conv%2F1/activities/in-7", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "partial", got.Text)
}

func TestClient_EmptyBodyAndNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	resp, err := NewClient(nil).SendToConversation(context.Background(), outgoing(srv.URL))
	require.NoError(t, err)
	assert.Empty(t, resp.ID)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	resp, err := NewClient(nil, WithRetryPolicy(testPolicy())).SendToConversation(context.Background(), outgoing(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(nil, WithRetryPolicy(testPolicy())).SendToConversation(context.Background(), outgoing(srv.URL))
	require.Error(t, err)
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
	assert.Equal(t, int32(1), calls.Load())

	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "token expired", e.Message)
}

func TestClient_TokenFailure(t *testing.T) {
	failing := TokenProviderFunc(func(context.Context) (string, error) { return "", errors.New("no credentials") })
	_, err := NewClient(failing, WithRetryPolicy(testPolicy())).SendToConversation(context.Background(), outgoing("https://example.com"))
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
}

func TestActivitiesURL_Validation(t *testing.T) {
	tests := []struct {
		name string
		a    *types.Activity
	}{
		{"nil", nil},
		{"no service url", &types.Activity{Conversation: &types.ConversationAccount{ID: "c"}}},
		{"no conversation", &types.Activity{ServiceURL: "https://x"}},
		{"relative url", &types.Activity{ServiceURL: "not a url", Conversation: &types.ConversationAccount{ID: "c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ActivitiesURL(tt.a)
			assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
		})
	}

	u, err := ActivitiesURL(&types.Activity{ServiceURL: "https://svc/", Conversation: &types.ConversationAccount{ID: "c1"}})
	require.NoError(t, err)
	assert.Equal(t, "https://svc/v3/conversations/c1/activities", u)
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		code      types.ErrorCode
		retryable bool
	}{
		{http.StatusBadRequest, types.ErrInvalidRequest, false},
		{http.StatusUnauthorized, types.ErrUnauthorized, false},
		{http.StatusForbidden, types.ErrForbidden, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusGatewayTimeout, types.ErrUpstreamTimeout, true},
		{http.StatusServiceUnavailable, types.ErrServiceUnavailable, true},
		{http.StatusInternalServerError, types.ErrUpstreamError, true},
		{http.StatusConflict, types.ErrUpstreamError, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			e := MapHTTPError(tt.status, "")
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, http.StatusText(tt.status), e.Message)
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.True(t, IsTransient(MapHTTPError(http.StatusBadGateway, "")))
}

func TestStaticTokenProvider_Rotate(t *testing.T) {
	p := NewStaticTokenProvider("a")
	p.SetToken("b")
	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", tok)
}
