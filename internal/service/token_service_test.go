package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maheshrc27/locaposty/internal/models"
	"github.com/maheshrc27/locaposty/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var tokenNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func encrypted(t *testing.T, s string) string {
	t.Helper()
	enc, err := utils.Encrypt([]byte(s), []byte(testSecret))
	require.NoError(t, err)
	return enc
}

func connectedLocation(t *testing.T, id string, expiresIn time.Duration) *models.Location {
	exp := tokenNow.Add(expiresIn)
	return &models.Location{
		ID:             id,
		Name:           "Main Street",
		GMBAccountID:   "111",
		GMBLocationID:  "222",
		AccessToken:    encrypted(t, "old-access"),
		RefreshToken:   encrypted(t, "refresh-1"),
		TokenExpiresAt: &exp,
	}
}

// tokenServer fakes the Google token endpoint.
func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestTokenService(lr *fakeLocationRepo, locker *fakeLocker, tokenURL string) *tokenService {
	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	s := NewTokenService(lr, cfg, locker, testSecret, 5*time.Minute).(*tokenService)
	s.now = func() time.Time { return tokenNow }
	return s
}

func TestGetValidAccessToken_FreshTokenNoRefresh(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`)
	lr := newFakeLocationRepo(connectedLocation(t, "loc1", 6*time.Minute))
	s := newTestTokenService(lr, &fakeLocker{}, srv.URL)

	tok, err := s.GetValidAccessToken(context.Background(), "loc1")

	require.NoError(t, err)
	assert.Equal(t, "old-access", tok)
	assert.Zero(t, atomic.LoadInt32(hits))
	assert.Zero(t, lr.setCalls)
}

func TestGetValidAccessToken_InsideBufferRefreshes(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`)
	lr := newFakeLocationRepo(connectedLocation(t, "loc1", 4*time.Minute))
	s := newTestTokenService(lr, &fakeLocker{}, srv.URL)

	tok, err := s.GetValidAccessToken(context.Background(), "loc1")

	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))

	loc, _ := lr.GetByID(context.Background(), "loc1")
	stored, err := utils.Decrypt(loc.AccessToken, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored)
	refresh, err := utils.Decrypt(loc.RefreshToken, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh, "refresh token kept when not rotated")
	assert.True(t, loc.TokenExpiresAt.After(time.Now()))
}

func TestGetValidAccessToken_StoresRotatedRefreshToken(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, `{"access_token":"new-access","refresh_token":"refresh-2","token_type":"Bearer","expires_in":3600}`)
	lr := newFakeLocationRepo(connectedLocation(t, "loc1", -time.Minute))
	s := newTestTokenService(lr, &fakeLocker{}, srv.URL)

	_, err := s.GetValidAccessToken(context.Background(), "loc1")
	require.NoError(t, err)

	loc, _ := lr.GetByID(context.Background(), "loc1")
	refresh, err := utils.Decrypt(loc.RefreshToken, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", refresh)
}

func TestGetValidAccessToken_NoExpiryDefaultsToOneHour(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, `{"access_token":"new-access","token_type":"Bearer"}`)
	lr := newFakeLocationRepo(connectedLocation(t, "loc1", -time.Minute))
	s := newTestTokenService(lr, &fakeLocker{}, srv.URL)

	_, err := s.GetValidAccessToken(context.Background(), "loc1")
	require.NoError(t, err)

	loc, _ := lr.GetByID(context.Background(), "loc1")
	assert.Equal(t, tokenNow.Add(time.Hour), *loc.TokenExpiresAt)
}

func TestGetValidAccessToken_RejectedRefreshClearsTokens(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
	lr := newFakeLocationRepo(connectedLocation(t, "loc1", -time.Minute))
	s := newTestTokenService(lr, &fakeLocker{}, srv.URL)

	_, err := s.GetValidAccessToken(context.Background(), "loc1")

	require.ErrorIs(t, err, ErrReauthRequired)
	assert.Equal(t, []string{"loc1"}, lr.cleared)
	loc, _ := lr.GetByID(context.Background(), "loc1")
	assert.False(t, loc.Connected())
	assert.Empty(t, loc.AccessToken)
	assert.Nil(t, loc.TokenExpiresAt)
}

func TestGetValidAccessToken_TransportErrorKeepsTokens(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	lr := newFakeLocationRepo(connectedLocation(t, "loc1", -time.Minute))
	s := newTestTokenService(lr, &fakeLocker{}, url)

	_, err := s.GetValidAccessToken(context.Background(), "loc1")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrReauthRequired))
	assert.Empty(t, lr.cleared)
	loc, _ := lr.GetByID(context.Background(), "loc1")
	assert.True(t, loc.Connected())
}

func TestGetValidAccessToken_NotConnected(t *testing.T) {
	loc := connectedLocation(t, "loc1", time.Hour)
	loc.RefreshToken = ""
	lr := newFakeLocationRepo(loc)
	s := newTestTokenService(lr, &fakeLocker{}, "http://127.0.0.1:0")

	_, err := s.GetValidAccessToken(context.Background(), "loc1")
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = s.GetValidAccessToken(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetValidAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	lr := newFakeLocationRepo(connectedLocation(t, "loc1", -time.Minute))
	s := newTestTokenService(lr, &fakeLocker{}, srv.URL)

	var wg sync.WaitGroup
	tokens := make([]string, 5)
	errs := make([]error, 5)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = s.GetValidAccessToken(context.Background(), "loc1")
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range tokens {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", tokens[i])
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestGetValidAccessToken_LockHeldWaitsForPeer(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{"access_token":"mine","token_type":"Bearer","expires_in":3600}`)
	lr := newFakeLocationRepo(connectedLocation(t, "loc1", -time.Minute))
	s := newTestTokenService(lr, &fakeLocker{denied: true}, srv.URL)

	peerToken := encrypted(t, "from-peer")
	go func() {
		time.Sleep(50 * time.Millisecond)
		exp := tokenNow.Add(time.Hour)
		lr.mu.Lock()
		lr.locations["loc1"].AccessToken = peerToken
		lr.locations["loc1"].TokenExpiresAt = &exp
		lr.mu.Unlock()
	}()

	tok, err := s.GetValidAccessToken(context.Background(), "loc1")

	require.NoError(t, err)
	assert.Equal(t, "from-peer", tok)
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestGetValidAccessToken_LockErrorStillRefreshes(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`)
	lr := newFakeLocationRepo(connectedLocation(t, "loc1", -time.Minute))
	s := newTestTokenService(lr, &fakeLocker{err: errors.New("redis down")}, srv.URL)

	tok, err := s.GetValidAccessToken(context.Background(), "loc1")

	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestForceRefresh_IgnoresFreshness(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`)
	lr := newFakeLocationRepo(connectedLocation(t, "loc1", time.Hour))
	s := newTestTokenService(lr, &fakeLocker{}, srv.URL)

	tok, err := s.ForceRefresh(context.Background(), "loc1")

	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}
