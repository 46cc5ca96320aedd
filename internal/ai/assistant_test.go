package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, answer string, captured *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": answer}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassifySentiment(t *testing.T) {
	var req chatRequest
	srv := newTestServer(t, " negative. ", &req)
	a := NewAssistant("sk-test", "gpt-4o-mini", srv.URL, srv.Client())

	got, err := a.ClassifySentiment(context.Background(), &models.Review{StarRating: 5, Comment: "cold food"})
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, got)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "cold food")
}

func TestGenerateReply_UsesTone(t *testing.T) {
	var req chatRequest
	srv := newTestServer(t, "Thanks so much for visiting!", &req)
	a := NewAssistant("sk-test", "gpt-4o-mini", srv.URL, srv.Client())

	reply, err := a.GenerateReply(context.Background(), &models.Review{StarRating: 5, ReviewerName: "Ann"},
		models.ReplyToneFriendly, models.SentimentPositive)
	require.NoError(t, err)
	assert.Equal(t, "Thanks so much for visiting!", reply)
	assert.Contains(t, req.Messages[0].Content, "warm and friendly")
	assert.Contains(t, req.Messages[1].Content, "rating only")
}

func TestGenerateReply_EmptyAnswer(t *testing.T) {
	srv := newTestServer(t, "  ", nil)
	a := NewAssistant("sk-test", "m", srv.URL, srv.Client())

	_, err := a.GenerateReply(context.Background(), &models.Review{}, models.ReplyToneFormal, models.SentimentNeutral)
	assert.Error(t, err)
}

func TestNotConfigured(t *testing.T) {
	a := NewAssistant("", "m", "", nil)
	_, err := a.ClassifySentiment(context.Background(), &models.Review{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewAssistant("sk-test", "m", srv.URL, srv.Client())
	_, err := a.ClassifySentiment(context.Background(), &models.Review{})
	assert.Error(t, err)
}

func TestParseSentiment_FallsBackToStars(t *testing.T) {
	assert.Equal(t, models.SentimentPositive, ParseSentiment("POSITIVE", 1))
	assert.Equal(t, models.SentimentNegative, ParseSentiment("I think it's bad", 2))
	assert.Equal(t, models.SentimentNeutral, ParseSentiment("", 3))
	assert.Equal(t, models.SentimentPositive, ParseSentiment("??", 5))
}
