package kick

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeChallengeRFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", CodeChallenge(verifier))
}

func TestGenerateCodeVerifierUnique(t *testing.T) {
	a, err := GenerateCodeVerifier()
	require.NoError(t, err)
	b, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}

func TestAuthorizeURL(t *testing.T) {
	c := NewClient("client-id", "secret", "https://app.example/v1/auth/callback", "", "")
	u := c.AuthorizeURL("the-state", "the-challenge")

	assert.Contains(t, u, DefaultOAuthBase+"/oauth/authorize?")
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=the-state")
	assert.Contains(t, u, "code_challenge=the-challenge")
	assert.Contains(t, u, "code_challenge_method=S256")
	assert.Contains(t, u, "response_type=code")
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "the-code", r.Form.Get("code"))
		assert.Equal(t, "the-verifier", r.Form.Get("code_verifier"))
		_ = json.NewEncoder(w).Encode(TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600})
	}))
	defer srv.Close()

	c := NewClient("id", "secret", "https://app.example/cb", srv.URL, srv.URL)
	pair, err := c.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "at", pair.AccessToken)
	assert.Equal(t, "rt", pair.RefreshToken)
}

func TestExchangeCodeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad grant", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("id", "secret", "https://app.example/cb", srv.URL, srv.URL)
	_, err := c.ExchangeCode(context.Background(), "x", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestAppAccessTokenCached(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		_ = json.NewEncoder(w).Encode(TokenPair{AccessToken: "app-token", ExpiresIn: 3600})
	}))
	defer srv.Close()

	c := NewClient("id", "secret", "", srv.URL, srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		token, err := c.AppAccessToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "app-token", token)
	}
	assert.Equal(t, 1, requests)
}

func TestGetUserAndChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/public/v1/users":
			fmt.Fprint(w, `{"data":[{"user_id":42,"name":"streamer"}]}`)
		case "/public/v1/channels":
			assert.Equal(t, "streamer", r.URL.Query().Get("slug"))
			fmt.Fprint(w, `{"data":[{"broadcaster_user_id":42,"slug":"streamer"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient("id", "secret", "", srv.URL, srv.URL)
	ctx := context.Background()

	user, err := c.GetUser(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.UserID)
	assert.Equal(t, "streamer", user.Name)

	ch, err := c.GetChannel(ctx, "tok", "streamer")
	require.NoError(t, err)
	assert.Equal(t, int64(42), ch.BroadcasterUserID)
}

func TestSubscribeChatEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/public/v1/events/subscriptions", r.URL.Path)
		var body struct {
			Events []struct {
				Name    string `json:"name"`
				Version int    `json:"version"`
			} `json:"events"`
			Method            string `json:"method"`
			BroadcasterUserID int64  `json:"broadcaster_user_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Events, 1)
		assert.Equal(t, "chat.message.sent", body.Events[0].Name)
		assert.Equal(t, "webhook", body.Method)
		assert.Equal(t, int64(42), body.BroadcasterUserID)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient("id", "secret", "", srv.URL, srv.URL)
	require.NoError(t, c.SubscribeChatEvents(context.Background(), "tok", 42))
}

func TestVerifySignature(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	keyFetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/public/v1/public-key", r.URL.Path)
		keyFetches++
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"public_key": pubPEM}})
	}))
	defer srv.Close()

	c := NewClient("id", "secret", "", srv.URL, srv.URL)
	ctx := context.Background()

	body := []byte(`{"content":"weeat"}`)
	payload := fmt.Sprintf("%s.%s.%s", "msg-1", "2026-01-01T00:00:00Z", body)
	digest := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	signature := base64.StdEncoding.EncodeToString(sig)
	require.NoError(t, c.VerifySignature(ctx, "msg-1", "2026-01-01T00:00:00Z", body, signature))

	// Tampered body, wrong message id and garbage signatures all fail.
	assert.ErrorIs(t, c.VerifySignature(ctx, "msg-1", "2026-01-01T00:00:00Z", []byte("{}"), signature), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifySignature(ctx, "msg-2", "2026-01-01T00:00:00Z", body, signature), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifySignature(ctx, "msg-1", "2026-01-01T00:00:00Z", body, "!!!not-base64"), ErrInvalidSignature)

	// The public key is fetched once and cached.
	require.NoError(t, c.VerifySignature(ctx, "msg-1", "2026-01-01T00:00:00Z", body, signature))
	assert.Equal(t, 1, keyFetches)
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKey("not pem at all")
	assert.Error(t, err)
}
