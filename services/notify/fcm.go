package notify

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FCM API endpoints
const (
	GoogleOAuthTokenURL = "https://oauth2.googleapis.com/token"
	FCMSendURLFormat    = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
	FCMMessagingScope   = "https://www.googleapis.com/auth/firebase.messaging"
)

// FCMClient sends push notifications through the FCM HTTP v1 API using a
// service-account credential. Access tokens are minted from an RS256-signed
// assertion and cached until shortly before expiry.
type FCMClient struct {
	projectID   string
	clientEmail string
	privateKey  *rsa.PrivateKey
	tokenURL    string
	sendURL     string
	client      *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// fcmErrorResponse represents an FCM v1 error body
type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// NewFCMClient creates an FCM client from service-account credentials. The
// private key is the PEM-encoded key from the service account JSON.
func NewFCMClient(projectID, clientEmail, privateKeyPEM string) (*FCMClient, error) {
	if projectID == "" || clientEmail == "" || privateKeyPEM == "" {
		return nil, fmt.Errorf("FCM credentials not configured")
	}

	// Env vars carry the key with escaped newlines
	privateKeyPEM = strings.ReplaceAll(privateKeyPEM, `\n`, "\n")

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse FCM private key: %w", err)
	}

	return &FCMClient{
		projectID:   projectID,
		clientEmail: clientEmail,
		privateKey:  key,
		tokenURL:    GoogleOAuthTokenURL,
		sendURL:     fmt.Sprintf(FCMSendURLFormat, projectID),
		client:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// SendMulticast delivers each message to every token and aggregates a
// per-token outcome. A token reported unregistered by any send is marked
// permanently invalid; other send errors are recorded as transient.
func (c *FCMClient) SendMulticast(ctx context.Context, tokens []string, messages []Message) ([]SendResult, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain FCM access token: %w", err)
	}

	results := make([]SendResult, len(tokens))
	for i, token := range tokens {
		results[i].Token = token
		for _, msg := range messages {
			unregistered, err := c.sendOne(ctx, accessToken, token, msg)
			if unregistered {
				results[i].Unregistered = true
				break
			}
			if err != nil && results[i].Err == nil {
				results[i].Err = err
			}
		}
	}
	return results, nil
}

// sendOne posts one message to one token. Reports unregistered=true for the
// invalid-token class of errors (UNREGISTERED, INVALID_ARGUMENT).
func (c *FCMClient) sendOne(ctx context.Context, accessToken, token string, msg Message) (bool, error) {
	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"token": token,
			"notification": map[string]string{
				"title": msg.Title,
				"body":  msg.Body,
			},
			"data": msg.Data,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal FCM message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.sendURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create FCM request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("FCM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return false, nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	var fcmErr fcmErrorResponse
	if err := json.Unmarshal(respBody, &fcmErr); err == nil {
		if fcmErr.Error.Status == "NOT_FOUND" || fcmErr.Error.Status == "INVALID_ARGUMENT" {
			return true, nil
		}
		for _, detail := range fcmErr.Error.Details {
			if detail.ErrorCode == "UNREGISTERED" {
				return true, nil
			}
		}
	}

	return false, fmt.Errorf("FCM send error (status %d): %s", resp.StatusCode, string(respBody))
}

// getAccessToken returns a cached OAuth access token, exchanging a fresh
// signed assertion when the cached one is near expiry.
func (c *FCMClient) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-1*time.Minute)) {
		return c.accessToken, nil
	}

	assertion, err := c.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token exchange error (status %d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	log.Printf("FCM access token refreshed, expires in %ds", tokenResp.ExpiresIn)
	return c.accessToken, nil
}

// signAssertion mints the RS256 service-account assertion for the OAuth
// jwt-bearer grant.
func (c *FCMClient) signAssertion() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.clientEmail,
		"scope": FCMMessagingScope,
		"aud":   c.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
