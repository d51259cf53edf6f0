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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultOAuthBase = "https://id.kick.com"
	DefaultAPIBase   = "https://api.kick.com"

	chatScopes = "user:read channel:read events:subscribe chat:write"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// TokenPair is the result of an authorization code exchange or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// User is the authenticated Kick user.
type User struct {
	UserID         int64  `json:"user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

// Channel is the broadcaster's channel.
type Channel struct {
	BroadcasterUserID int64  `json:"broadcaster_user_id"`
	Slug              string `json:"slug"`
	StreamTitle       string `json:"stream_title"`
}

// Client talks to the Kick identity and API hosts.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	oauthBase    string
	apiBase      string
	http         *http.Client

	mu          sync.Mutex
	appToken    string
	appTokenExp time.Time
	webhookKey  *rsa.PublicKey
}

// NewClient creates a Kick client. Empty oauthBase/apiBase fall back to the
// production hosts.
func NewClient(clientID, clientSecret, redirectURI, oauthBase, apiBase string) *Client {
	if oauthBase == "" {
		oauthBase = DefaultOAuthBase
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		oauthBase:    oauthBase,
		apiBase:      apiBase,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

// GenerateCodeVerifier returns a fresh PKCE code verifier.
func GenerateCodeVerifier() (string, error) {
	return randomToken(32)
}

// CodeChallenge derives the S256 challenge for a verifier.
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns a fresh OAuth state parameter.
func GenerateState() (string, error) {
	return randomToken(16)
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthorizeURL builds the user-facing authorization URL.
func (c *Client) AuthorizeURL(state, codeChallenge string) string {
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {c.clientID},
		"redirect_uri":          {c.redirectURI},
		"scope":                 {chatScopes},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
		"state":                 {state},
	}
	return c.oauthBase + "/oauth/authorize?" + params.Encode()
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenPair, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"redirect_uri":  {c.redirectURI},
		"code_verifier": {codeVerifier},
		"code":          {code},
	}
	return c.tokenRequest(ctx, form)
}

// RefreshToken trades a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	}
	return c.tokenRequest(ctx, form)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthBase+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("token request", resp)
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &pair, nil
}

// AppAccessToken returns a cached client-credentials token, requesting a new
// one when the cached token is within a minute of expiry.
func (c *Client) AppAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.appToken != "" && time.Now().Before(c.appTokenExp) {
		token := c.appToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	pair, err := c.tokenRequest(ctx, form)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.appToken = pair.AccessToken
	c.appTokenExp = time.Now().Add(time.Duration(pair.ExpiresIn-60) * time.Second)
	c.mu.Unlock()
	return pair.AccessToken, nil
}

// GetUser fetches the user the access token belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var out struct {
		Data []User `json:"data"`
	}
	if err := c.apiGet(ctx, accessToken, "/public/v1/users", nil, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, errors.New("empty user response")
	}
	return &out.Data[0], nil
}

// GetChannel fetches the broadcaster's channel, optionally by slug.
func (c *Client) GetChannel(ctx context.Context, accessToken, slug string) (*Channel, error) {
	var query url.Values
	if slug != "" {
		query = url.Values{"slug": {slug}}
	}
	var out struct {
		Data []Channel `json:"data"`
	}
	if err := c.apiGet(ctx, accessToken, "/public/v1/channels", query, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, errors.New("empty channel response")
	}
	return &out.Data[0], nil
}

func (c *Client) apiGet(ctx context.Context, accessToken, path string, query url.Values, out any) error {
	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(path, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SubscribeChatEvents registers a webhook subscription for chat messages on
// the broadcaster's channel.
func (c *Client) SubscribeChatEvents(ctx context.Context, accessToken string, broadcasterUserID int64) error {
	payload := map[string]any{
		"events": []map[string]any{{"name": "chat.message.sent", "version": 1}},
		"method": "webhook",
	}
	if broadcasterUserID != 0 {
		payload["broadcaster_user_id"] = broadcasterUserID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/public/v1/events/subscriptions", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError("event subscription", resp)
	}
	return nil
}

// VerifySignature checks a webhook signature: base64 RSA-PKCS1v15-SHA256
// over "messageID.timestamp.body", against Kick's published public key.
func (c *Client) VerifySignature(ctx context.Context, messageID, timestamp string, body []byte, signature string) error {
	key, err := c.publicKey(ctx)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	payload := fmt.Sprintf("%s.%s.%s", messageID, timestamp, body)
	digest := sha256.Sum256([]byte(payload))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

func (c *Client) publicKey(ctx context.Context) (*rsa.PublicKey, error) {
	c.mu.Lock()
	if c.webhookKey != nil {
		key := c.webhookKey
		c.mu.Unlock()
		return key, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/public/v1/public-key", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("public key fetch", resp)
	}

	var out struct {
		Data struct {
			PublicKey string `json:"public_key"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	key, err := ParsePublicKey(out.Data.PublicKey)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.webhookKey = key
	c.mu.Unlock()
	return key, nil
}

// ParsePublicKey decodes a PEM-encoded RSA public key.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block in public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}

func httpError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s failed (%d): %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}
