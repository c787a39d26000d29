package sui

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog/log"

	"suiml.io/suiml/errs"
)

// SuiCoinType is the type tag of the native gas coin.
const SuiCoinType = "0x2::sui::SUI"

// Network full node endpoints.
var networkURLs = map[string]string{
	"mainnet":  "https://fullnode.mainnet.sui.io:443",
	"testnet":  "https://fullnode.testnet.sui.io:443",
	"devnet":   "https://fullnode.devnet.sui.io:443",
	"localnet": "http://127.0.0.1:9000",
}

// NetworkURL returns the public full node URL of a named network.
func NetworkURL(name string) (string, bool) {
	u, ok := networkURLs[name]
	return u, ok
}

// Client speaks JSON-RPC 2.0 to a Sui full node.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	retry   retrypolicy.RetryPolicy[json.RawMessage]
	nextID  atomic.Uint64
}

type Option func(*clientOptions)

type clientOptions struct {
	http        *http.Client
	timeout     time.Duration
	readRetries int
	backoff     time.Duration
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(o *clientOptions) { o.http = h } }

// WithTimeout bounds each JSON-RPC round trip.
func WithTimeout(d time.Duration) Option { return func(o *clientOptions) { o.timeout = d } }

// WithReadRetries sets how many times a failed read-only call is retried.
func WithReadRetries(n int) Option { return func(o *clientOptions) { o.readRetries = n } }

// WithRetryBackoff sets the initial retry delay.
func WithRetryBackoff(d time.Duration) Option { return func(o *clientOptions) { o.backoff = d } }

func NewClient(url string, opts ...Option) *Client {
	o := clientOptions{
		http:        http.DefaultClient,
		timeout:     30 * time.Second,
		readRetries: 2,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{url: url, http: o.http, timeout: o.timeout}
	c.retry = retrypolicy.Builder[json.RawMessage]().
		HandleIf(func(_ json.RawMessage, err error) bool { return retryable(err) }).
		WithMaxRetries(o.readRetries).
		WithBackoff(o.backoff, 10*o.backoff).
		OnRetry(func(e failsafe.ExecutionEvent[json.RawMessage]) {
			log.Warn().Err(e.LastError()).Int("attempt", e.Attempts()).Msg("sui: retrying read call")
		}).
		Build()
	return c
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string { return c.url }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// httpStatusError is a non-200 response from the node.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

// retryable reports transport failures that are safe to retry for reads.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var he *httpStatusError
	if errors.As(err, &he) {
		return he.status == http.StatusTooManyRequests || he.status >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

// roundTrip performs one JSON-RPC call without retries.
func (c *Client) roundTrip(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode, body: truncate(string(raw), 256)}
	}

	var out rpcResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return out.Result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func wrapCallErr(method string, err error) error {
	var re *RPCError
	if errors.As(err, &re) {
		return errs.Wrap(errs.KindChain, errs.CodeRPC, method, err)
	}
	return errs.Wrap(errs.KindTransport, errs.CodeRPC, method, err)
}

// read performs an idempotent call under the retry policy and decodes the result.
func (c *Client) read(ctx context.Context, method string, out any, params ...any) error {
	raw, err := failsafe.NewExecutor[json.RawMessage](c.retry).
		WithContext(ctx).
		Get(func() (json.RawMessage, error) {
			return c.roundTrip(ctx, method, params)
		})
	if err != nil {
		return wrapCallErr(method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrap(errs.KindChain, errs.CodeRPC, "decode "+method, err)
	}
	return nil
}

// ReferenceGasPrice returns the current epoch's reference gas price in MIST.
func (c *Client) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	var price BigUint
	if err := c.read(ctx, "suix_getReferenceGasPrice", &price); err != nil {
		return 0, err
	}
	return uint64(price), nil
}

// Coins returns one page of coins of coinType owned by owner. An empty
// coinType means SUI.
func (c *Client) Coins(ctx context.Context, owner Address, coinType string, cursor *string, limit int) (CoinPage, error) {
	if coinType == "" {
		coinType = SuiCoinType
	}
	var page CoinPage
	var cur any
	if cursor != nil {
		cur = *cursor
	}
	var lim any
	if limit > 0 {
		lim = limit
	}
	err := c.read(ctx, "suix_getCoins", &page, owner.String(), coinType, cur, lim)
	return page, err
}

// Object returns the current version, digest, type and owner of id.
func (c *Client) Object(ctx context.Context, id ObjectID) (ObjectData, error) {
	var resp objectResponse
	opts := map[string]bool{"showOwner": true, "showType": true}
	if err := c.read(ctx, "sui_getObject", &resp, id.String(), opts); err != nil {
		return ObjectData{}, err
	}
	if resp.Data == nil {
		return ObjectData{}, errs.New(errs.KindChain, errs.CodeRPC,
			fmt.Sprintf("object %s not available: %s", id, string(resp.Error)))
	}
	return *resp.Data, nil
}

// NormalizedMoveFunction returns the signature of pkg::module::function.
func (c *Client) NormalizedMoveFunction(ctx context.Context, pkg ObjectID, module, function string) (MoveFunction, error) {
	var fn MoveFunction
	err := c.read(ctx, "sui_getNormalizedMoveFunction", &fn, pkg.String(), module, function)
	return fn, err
}

// ExecuteTransactionBlock submits signed transaction bytes once. It is never
// retried: on a transport error the transaction may or may not have executed.
func (c *Client) ExecuteTransactionBlock(ctx context.Context, txBytes []byte, signatures []string, opts ExecuteOptions, mode RequestType) (TransactionResponse, error) {
	if mode == "" {
		mode = WaitForLocalExecution
	}
	params := []any{base64.StdEncoding.EncodeToString(txBytes), signatures, opts, mode}
	raw, err := c.roundTrip(ctx, "sui_executeTransactionBlock", params)
	if err != nil {
		return TransactionResponse{}, wrapCallErr("sui_executeTransactionBlock", err)
	}
	var resp TransactionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return TransactionResponse{}, errs.Wrap(errs.KindChain, errs.CodeRPC, "decode sui_executeTransactionBlock", err)
	}
	return resp, nil
}

// FormatMIST renders an amount of MIST as SUI with nine decimals.
func FormatMIST(mist uint64) string {
	whole, frac := mist/1_000_000_000, mist%1_000_000_000
	s := strconv.FormatUint(frac, 10)
	for len(s) < 9 {
		s = "0" + s
	}
	return strconv.FormatUint(whole, 10) + "." + s
}
