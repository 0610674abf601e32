package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// TokenSource returns the bearer credential for the next request; an empty
// string sends no Authorization header.
type TokenSource func() string

// HTTPClient implements Client.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	token   TokenSource
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithRateLimit paces requests to rps with the given burst. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTokenSource sets where the bearer credential comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *HTTPClient) { c.token = ts }
}

// NewHTTPClient builds a client for the service at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: scheme and host required", baseURL)
	}
	c := &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
		token:   func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + common.APIPrefix + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends a request and decodes a 2xx JSON body into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readHTTPError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", common.ErrInvalidPayload, method, path, err)
	}
	return nil
}

func transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func readHTTPError(resp *http.Response) error {
	he := &HTTPError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb ErrorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		he.Message = eb.Error
		he.Expired = eb.Expired
	} else {
		he.Message = strings.TrimSpace(string(raw))
	}
	if he.Message == "" {
		he.Message = http.StatusText(resp.StatusCode)
	}
	return he
}

func pollQuery(req PollRequest) url.Values {
	q := url.Values{}
	q.Set("raceId", req.RaceID)
	q.Set("deviceId", req.DeviceID)
	q.Set("deviceName", req.DeviceName)
	if req.Since > 0 {
		q.Set("since", strconv.FormatInt(req.Since, 10))
	}
	return q
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) IssueToken(ctx context.Context, pin string, device models.DeviceIdentity) (string, error) {
	var out TokenResponse
	body := TokenRequest{PIN: pin, DeviceID: device.ID, DeviceName: device.Name}
	if err := c.do(ctx, http.MethodPost, "/auth/token", nil, body, &out); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return "", fmt.Errorf("%w: %v", common.ErrInvalidPIN, err)
		}
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty token", common.ErrInvalidPayload)
	}
	return out.Token, nil
}

func (c *HTTPClient) PollEntries(ctx context.Context, req PollRequest) (*EntryPollResponse, error) {
	var out EntryPollResponse
	if err := c.do(ctx, http.MethodGet, "/sync", pollQuery(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SendEntry(ctx context.Context, raceID string, e models.Entry, device models.DeviceIdentity) (*SendResponse, error) {
	var out SendResponse
	body := SendEntryBody{RaceID: raceID, Entry: e, DeviceID: device.ID, DeviceName: device.Name}
	if err := c.do(ctx, http.MethodPost, "/sync", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteEntry(ctx context.Context, raceID, entryID string, device models.DeviceIdentity) error {
	q := url.Values{"raceId": {raceID}}
	body := DeleteEntryBody{EntryID: entryID, DeviceID: device.ID, DeviceName: device.Name}
	return c.do(ctx, http.MethodDelete, "/sync", q, body, nil)
}

func (c *HTTPClient) PollFaults(ctx context.Context, req PollRequest) (*FaultPollResponse, error) {
	var out FaultPollResponse
	if err := c.do(ctx, http.MethodGet, "/faults", pollQuery(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SendFault(ctx context.Context, raceID string, f models.FaultEntry, device models.DeviceIdentity) (*SendResponse, error) {
	var out SendResponse
	body := SendFaultBody{RaceID: raceID, Fault: f, DeviceID: device.ID, DeviceName: device.Name}
	if err := c.do(ctx, http.MethodPost, "/faults", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteFault(ctx context.Context, raceID, faultID string, device models.DeviceIdentity) error {
	q := url.Values{"raceId": {raceID}}
	body := DeleteFaultBody{FaultID: faultID, DeviceID: device.ID, DeviceName: device.Name}
	return c.do(ctx, http.MethodDelete, "/faults", q, body, nil)
}
