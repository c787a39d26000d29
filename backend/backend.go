// Package backend is a client for the application server: auth and zkLogin,
// plus read access to datasets, annotations, categories and the leaderboard.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/rs/zerolog/log"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/metrics"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultProverTimeout = 30 * time.Second
)

type User struct {
	ID              int64  `json:"id"`
	Email           string `json:"email"`
	DisplayName     string `json:"display_name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	SuiAddress      string `json:"sui_address,omitempty"`
	GoogleID        string `json:"google_id,omitempty"`
	ZkLoginSalt     string `json:"zklogin_salt,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type ZkLoginInit struct {
	Nonce    string `json:"nonce"`
	OAuthURL string `json:"oauth_url"`
}

type ProofRequest struct {
	JWTToken           string `json:"jwt_token"`
	EphemeralPublicKey string `json:"ephemeral_public_key"`
	MaxEpoch           uint64 `json:"max_epoch"`
}

type ProofResponse struct {
	SuiAddress string          `json:"sui_address"`
	UserSalt   string          `json:"user_salt"`
	ZkProof    json.RawMessage `json:"zk_proof"`
	Success    bool            `json:"success"`
}

type SuiAddressUpdate struct {
	Success    bool   `json:"success"`
	SuiAddress string `json:"sui_address"`
}

// Client calls the backend. Token, when set, is sent as a bearer token.
type Client struct {
	BaseURL       string
	HTTP          *http.Client
	Timeout       time.Duration
	ProverTimeout time.Duration
	Token         string
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTP:          &http.Client{},
		Timeout:       DefaultTimeout,
		ProverTimeout: DefaultProverTimeout,
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.Token = token
	return &cp
}

// HTTPError is a non-2xx response. Detail is the server's error message.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return errs.Wrap(errs.KindTransport, errs.CodeHTTP, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return errs.Wrap(errs.KindTransport, errs.CodeHTTP, method+" "+path, err)
	}
	defer resp.Body.Close()
	route, _, _ := strings.Cut(path, "?")
	metrics.Timing(metrics.ApiRequestLatency, time.Since(start), []string{
		metrics.Tag(metrics.TagPath, route), metrics.Tag(metrics.TagStatusCode, fmt.Sprint(resp.StatusCode)),
	})

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errs.Wrap(errs.KindTransport, errs.CodeHTTP, method+" "+path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{Status: resp.StatusCode, Detail: detail(raw)}
		log.Warn().Str("path", path).Int("status", resp.StatusCode).Str("detail", herr.Detail).Msg("backend request failed")
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return errs.Wrap(errs.KindAuth, errs.CodeUnauthorized, method+" "+path, herr)
		}
		return errs.Wrap(errs.KindTransport, errs.CodeHTTP, method+" "+path, herr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrap(errs.KindTransport, errs.CodeHTTP, "decode "+path, err)
	}
	return nil
}

// detail extracts FastAPI's {"detail": ...} message, falling back to the body.
func detail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		return string(body.Detail)
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (User, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var u User
	err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &u)
	return u, err
}

// ZkLoginInit registers nonce and returns the OAuth URL to visit.
func (c *Client) ZkLoginInit(ctx context.Context, nonce string) (ZkLoginInit, error) {
	if nonce == "" {
		return ZkLoginInit{}, errs.New(errs.KindValidation, errs.CodeInvalidInput, "nonce is required")
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var out ZkLoginInit
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/zklogin/init", map[string]string{"nonce": nonce}, &out)
	return out, err
}

// ZkLoginProve requests a zkLogin proof. Proving is slow, so the call is
// bounded by ProverTimeout instead of Timeout.
func (c *Client) ZkLoginProve(ctx context.Context, req ProofRequest) (ProofResponse, error) {
	limit := c.ProverTimeout
	if limit <= 0 {
		limit = DefaultProverTimeout
	}
	out, err := failsafe.NewExecutor[ProofResponse](timeout.With[ProofResponse](limit)).
		WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[ProofResponse]) (ProofResponse, error) {
			var out ProofResponse
			err := c.do(exec.Context(), http.MethodPost, "/api/v1/auth/zklogin/prove", req, &out)
			return out, err
		})
	if errors.Is(err, timeout.ErrExceeded) {
		return ProofResponse{}, errs.Wrap(errs.KindTransport, errs.CodeHTTP,
			fmt.Sprintf("zklogin prove exceeded %s", limit), err)
	}
	return out, err
}

// UpdateSuiAddress records addr as the user's address.
func (c *Client) UpdateSuiAddress(ctx context.Context, addr string) (SuiAddressUpdate, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var out SuiAddressUpdate
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/sui-address", map[string]string{"sui_address": addr}, &out)
	return out, err
}
