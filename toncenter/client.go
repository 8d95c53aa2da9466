// Package toncenter talks to a toncenter-compatible HTTP API v2
// endpoint and implements the node-facing interfaces of the ton
// package on top of it.
package toncenter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencove/tonsend/address"
	"github.com/opencove/tonsend/tlb"
	"github.com/opencove/tonsend/ton"
)

const DefaultBaseURL = "https://toncenter.com/api/v2"

// RemoteError is a non-ok response envelope from the API.
type RemoteError struct {
	Code int
	Text string
}

func (e RemoteError) Error() string {
	return fmt.Sprintf("toncenter error %d: %s", e.Code, e.Text)
}

type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger

	rl *slidingLimiter
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithRateLimit caps requests per second, 0 means no limit. Public
// toncenter endpoints throttle keyless clients to 1 rps.
func WithRateLimit(maxPerSec int) Option {
	return func(c *Client) {
		if maxPerSec > 0 {
			c.rl = newSlidingLimiter(maxPerSec, time.Second)
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response[T any] struct {
	Ok     bool   `json:"ok"`
	Result T      `json:"result"`
	Error  string `json:"error"`
	Code   int    `json:"code"`
}

// GetServiceTime returns the unix time of the latest consensus block.
func (c *Client) GetServiceTime(ctx context.Context) (uint32, error) {
	var res response[struct {
		ConsensusBlock int64   `json:"consensus_block"`
		Timestamp      float64 `json:"timestamp"`
	}]
	if err := c.doGET(ctx, "getConsensusBlock", nil, &res); err != nil {
		return 0, err
	}
	return uint32(res.Result.Timestamp), nil
}

// GetAccountState fetches wallet balance, status and seqno.
func (c *Client) GetAccountState(ctx context.Context, addr *address.Address) (*ton.AccountState, error) {
	var res response[struct {
		Balance json.Number `json:"balance"`
		State   string      `json:"account_state"`
		Seqno   uint32      `json:"seqno"`
	}]
	q := url.Values{"address": {addr.String()}}
	if err := c.doGET(ctx, "getWalletInformation", q, &res); err != nil {
		return nil, err
	}

	balance, err := tlb.FromNano(nanoFromNumber(res.Result.Balance), 9)
	if err != nil {
		return nil, fmt.Errorf("bad balance in response: %w", err)
	}

	return &ton.AccountState{
		Active:  res.Result.State == "active",
		Balance: balance,
		Seqno:   res.Result.Seqno,
	}, nil
}

// EstimateFee asks the node to run the unsigned external through fee
// estimation. Signature checks are disabled server-side, the zero
// signature inside the message keeps the size honest.
func (c *Client) EstimateFee(ctx context.Context, ext *tlb.EstimatedExternal) (*ton.FeeEstimate, error) {
	boc, err := ext.Msg.ToCell()
	if err != nil {
		return nil, fmt.Errorf("failed to build message cell: %w", err)
	}

	req := map[string]any{
		"address":       ext.Msg.DstAddr.String(),
		"body":          base64.StdEncoding.EncodeToString(boc.ToBOC()),
		"ignore_chksig": true,
	}

	type fees struct {
		InFwdFee   int64 `json:"in_fwd_fee"`
		StorageFee int64 `json:"storage_fee"`
		GasFee     int64 `json:"gas_fee"`
		FwdFee     int64 `json:"fwd_fee"`
	}
	var res response[struct {
		SourceFees fees `json:"source_fees"`
	}]
	if err = c.doPOST(ctx, "estimateFee", req, &res); err != nil {
		return nil, err
	}

	sf := res.Result.SourceFees
	extra := new(big.Int).SetInt64(sf.InFwdFee + sf.StorageFee + sf.GasFee + sf.FwdFee)

	return &ton.FeeEstimate{
		InFwdFee:   big.NewInt(sf.InFwdFee),
		StorageFee: big.NewInt(sf.StorageFee),
		GasFee:     big.NewInt(sf.GasFee),
		FwdFee:     big.NewInt(sf.FwdFee),
		Extra:      extra,
	}, nil
}

// SendMessage broadcasts a signed external message.
func (c *Client) SendMessage(ctx context.Context, ext *tlb.SignedExternal) error {
	boc, err := ext.Msg.ToCell()
	if err != nil {
		return fmt.Errorf("failed to build message cell: %w", err)
	}

	var res response[json.RawMessage]
	req := map[string]any{
		"boc": base64.StdEncoding.EncodeToString(boc.ToBOC()),
	}
	return c.doPOST(ctx, "sendBoc", req, &res)
}

func (c *Client) doGET(ctx context.Context, method string, q url.Values, out any) error {
	u := c.baseURL + "/" + method
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) doPOST(ctx context.Context, method string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.rl != nil {
		if err := c.rl.wait(req.Context()); err != nil {
			return err
		}
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.log.Debug().Str("method", req.Method).Str("url", req.URL.Path).Msg("api request")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		Ok    bool   `json:"ok"`
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	if err = json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if !envelope.Ok {
		code := envelope.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return RemoteError{Code: code, Text: envelope.Error}
	}

	if err = json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}

	return nil
}

func nanoFromNumber(n json.Number) *big.Int {
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// slidingLimiter admits at most max request starts per window.
type slidingLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	times  []time.Time
}

func newSlidingLimiter(max int, window time.Duration) *slidingLimiter {
	return &slidingLimiter{
		window: window,
		max:    max,
		times:  make([]time.Time, 0, max),
	}
}

func (l *slidingLimiter) wait(ctx context.Context) error {
	for {
		now := time.Now()
		cutoff := now.Add(-l.window)

		l.mu.Lock()
		i := 0
		for i < len(l.times) && l.times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			l.times = l.times[i:]
		}

		if len(l.times) < l.max {
			l.times = append(l.times, now)
			l.mu.Unlock()
			return nil
		}

		waitUntil := l.times[0].Add(l.window)
		l.mu.Unlock()

		d := time.Until(waitUntil)
		if d <= 0 {
			continue
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}
