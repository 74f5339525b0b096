// Package dataservice is the HTTP client for the comments REST API.
package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/commentsync/internal/platform/httpserver"
	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/wire"
)

const DefaultBaseURL = "http://localhost:5000/api/v1"

// ClientConfig holds the request settings for the comments API.
type ClientConfig struct {
	Token          string
	MaxRetries     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Config     ClientConfig
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func New(baseURL string, cfg ClientConfig, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Config:     cfg,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewCircuitBreaker builds a breaker that only counts network failures;
// 4xx and 5xx responses mean the server is reachable.
func NewCircuitBreaker(name string, maxRequests uint32, interval, timeout time.Duration, failureThreshold uint32, log *zap.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsNetwork(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

func (c *Client) FetchComments(ctx context.Context, req domain.PageRequest) (domain.Page, error) {
	q := pageQuery(req)
	if req.Sort != "" {
		q.Set("sortBy", string(req.Sort))
	}
	out, err := doWithBreaker[wire.PageData](ctx, c, http.MethodGet, "/comments", q, nil)
	if err != nil {
		return domain.Page{}, err
	}
	return wire.PageToDomain(*out), nil
}

func (c *Client) FetchReplies(ctx context.Context, parentID string, req domain.PageRequest) (domain.Page, error) {
	out, err := doWithBreaker[wire.PageData](ctx, c, http.MethodGet, "/comments/"+url.PathEscape(parentID)+"/replies", pageQuery(req), nil)
	if err != nil {
		return domain.Page{}, notFound(err, parentID)
	}
	return wire.PageToDomain(*out), nil
}

func (c *Client) FetchComment(ctx context.Context, id string) (domain.Comment, error) {
	out, err := doWithBreaker[wire.Comment](ctx, c, http.MethodGet, "/comments/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return domain.Comment{}, notFound(err, id)
	}
	return out.ToDomain(), nil
}

func (c *Client) CreateComment(ctx context.Context, in domain.CreateInput) (domain.Comment, error) {
	body := wire.CreateRequest{Content: in.Content, ParentCommentID: in.ParentID}
	out, err := doWithBreaker[wire.Comment](ctx, c, http.MethodPost, "/comments", nil, body)
	if err != nil {
		return domain.Comment{}, notFound(err, in.ParentID)
	}
	return out.ToDomain(), nil
}

func (c *Client) UpdateComment(ctx context.Context, id, content string) (domain.Comment, error) {
	out, err := doWithBreaker[wire.Comment](ctx, c, http.MethodPatch, "/comments/"+url.PathEscape(id), nil, wire.UpdateRequest{Content: content})
	if err != nil {
		return domain.Comment{}, notFound(err, id)
	}
	return out.ToDomain(), nil
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	_, err := doWithBreaker[json.RawMessage](ctx, c, http.MethodDelete, "/comments/"+url.PathEscape(id), nil, nil)
	return notFound(err, id)
}

func (c *Client) ToggleReaction(ctx context.Context, id string, kind domain.Reaction) (domain.Comment, error) {
	out, err := doWithBreaker[wire.Comment](ctx, c, http.MethodPost, "/comments/"+url.PathEscape(id)+"/reaction", nil, wire.ReactionRequest{Type: string(kind)})
	if err != nil {
		return domain.Comment{}, notFound(err, id)
	}
	return out.ToDomain(), nil
}

func pageQuery(req domain.PageRequest) url.Values {
	q := url.Values{}
	if req.Cursor != "" {
		q.Set("cursor", req.Cursor)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	return q
}

// notFound fills in the target id on a 404.
func notFound(err error, id string) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) && nf.ID == "" {
		nf.ID = id
	}
	return err
}

func doWithBreaker[T any](ctx context.Context, c *Client, method, path string, q url.Values, body any) (*T, error) {
	if c.CB == nil {
		return doJSONWithRetry[T](ctx, c, method, path, q, body)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return doJSONWithRetry[T](ctx, c, method, path, q, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.NetworkError{Op: method + " " + path, Err: err}
		}
		return nil, err
	}
	return result.(*T), nil
}

// doJSONWithRetry retries idempotent reads on network errors and 5xx.
// Writes are attempted once.
func doJSONWithRetry[T any](ctx context.Context, c *Client, method, path string, q url.Values, body any) (*T, error) {
	retries := c.Config.MaxRetries
	if method != http.MethodGet {
		retries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := c.Config.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.Log.Debug("retrying request", zap.String("method", method), zap.String("path", path), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, &domain.NetworkError{Op: method + " " + path, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}
		result, err := doJSON[T](ctx, c, method, path, q, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !domain.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		c.Log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, lastErr
}

func doJSON[T any](ctx context.Context, c *Client, method, path string, q url.Values, body any) (*T, error) {
	op := method + " " + path
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.Token)
	}
	rid := httpserver.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.NewString()
	}
	req.Header.Set("X-Request-Id", rid)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.NetworkError{Op: op, Err: err}
	}

	var env wire.Envelope
	envErr := json.Unmarshal(b, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if envErr != nil || msg == "" {
			msg = strings.TrimSpace(string(b[:min(len(b), 200)]))
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, &domain.NotFoundError{Message: msg}
		}
		return nil, &domain.RequestError{Status: resp.StatusCode, Message: msg, Fields: env.Errors}
	}
	if envErr != nil {
		return nil, &domain.RequestError{Status: resp.StatusCode, Message: fmt.Sprintf("decode envelope: %v", envErr)}
	}

	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, &domain.RequestError{Status: resp.StatusCode, Message: fmt.Sprintf("decode data: %v", err)}
	}
	return &out, nil
}
