// Package api talks to the TooClarity REST backend. Every fetcher returns a
// models.Result; transport and decoding failures never escape as panics or errors.
package api

import (
	"bytes"
	"clarity/internal/models"
	"clarity/internal/providers"
	"clarity/internal/structures"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes = 4 << 20
	breakerName  = "tooclarity-api"
)

// ClientInterface is the set of remote fetchers the services depend on.
type ClientInterface interface {
	GetInstitution(ctx context.Context) models.Result[models.InstitutionSnapshot]
	GetMetric(ctx context.Context, metric models.Metric, timeRange models.TimeRange) models.Result[models.MetricSummary]
	GetDashboardStats(ctx context.Context, timeRange models.TimeRange, institutionID string) models.Result[models.DashboardStatsSnapshot]
	GetSeries(ctx context.Context, metric models.Metric, year int) models.Result[[models.MonthsInYear]int]
	GetEnquiries(ctx context.Context, offset, limit int) models.Result[EnquiryPage]
	ListPrograms(ctx context.Context) models.Result[[]models.Program]
	CreateProgram(ctx context.Context, input models.ProgramInput) models.Result[models.Program]
	UpdateProgram(ctx context.Context, id string, input models.ProgramInput) models.Result[models.Program]
	DeleteProgram(ctx context.Context, id string) models.Result[bool]
	MarkNotificationRead(ctx context.Context, id string) models.Result[bool]
	LookupCoupon(ctx context.Context, code string) models.Result[models.Coupon]
	GetPaymentStatus(ctx context.Context, orderID string) models.Result[PaymentStatus]
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*Envelope]
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewApiClient(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) (ClientInterface, error) {
	return NewClient(conf, logger, metrics)
}

func NewClient(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(conf.Api.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if conf.Api.SessionCookie != "" {
		cookies, err := http.ParseCookie(conf.Api.SessionCookie)
		if err != nil {
			return nil, fmt.Errorf("invalid session cookie: %w", err)
		}
		jar.SetCookies(base, cookies)
	}

	limit := rate.Inf
	if conf.Api.RateLimit > 0 {
		limit = rate.Limit(conf.Api.RateLimit)
	}
	burst := max(conf.Api.Burst, 1)

	timeout := conf.Api.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	metrics.SetBreakerState(breakerName, stateToFloat(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[*Envelope](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf(providers.TypeApi, "Circuit breaker %s: %s -> %s", name, from, to)
			metrics.SetBreakerState(name, stateToFloat(to))
		},
	})

	return &Client{
		baseURL: base,
		http:    &http.Client{Jar: jar, Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

type request struct {
	method   string
	path     string
	query    url.Values
	body     any
	endpoint string
}

func (c *Client) url(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends req through the limiter and the breaker. Only transport errors
// and 5xx responses count against the breaker; a 4xx comes back as an envelope.
func (c *Client) do(ctx context.Context, req request) Envelope {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.IncFetchTotal(req.endpoint, "error")
		return Envelope{Message: transportMessage(err)}
	}

	start := time.Now()
	env, err := c.cb.Execute(func() (*Envelope, error) {
		env, err := c.send(ctx, req)
		if err != nil {
			return nil, err
		}
		if env.Status >= http.StatusInternalServerError {
			return env, &FetchError{Status: env.Status, Message: env.Message}
		}
		return env, nil
	})
	c.metrics.ObserveFetchDuration(req.endpoint, time.Since(start))

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.IncFetchTotal(req.endpoint, "rejected")
		c.logger.Warnf(providers.TypeApi, "%s %s rejected: %s", req.method, req.path, err)
		return Envelope{Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"}
	case env != nil:
		if env.Success {
			c.metrics.IncFetchTotal(req.endpoint, "success")
		} else {
			c.metrics.IncFetchTotal(req.endpoint, "failure")
			c.logger.Debugf(providers.TypeApi, "%s %s failed: %d %s", req.method, req.path, env.Status, env.Message)
		}
		return *env
	default:
		c.metrics.IncFetchTotal(req.endpoint, "error")
		c.logger.Errorf(providers.TypeApi, "%s %s: %s", req.method, req.path, err)
		return Envelope{Message: transportMessage(err)}
	}
}

func transportMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return "network error"
}

func (c *Client) send(ctx context.Context, req request) (*Envelope, error) {
	var body io.Reader = http.NoBody
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.url(req.path, req.query), body)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New().String())
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	env := Normalize(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
	return &env, nil
}

// fetch runs req and decodes the envelope data with decode.
func fetch[T any](ctx context.Context, c *Client, req request, decode func(json.RawMessage) (T, error)) models.Result[T] {
	env := c.do(ctx, req)
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = defaultMessage(env.Status)
		}
		return models.Fail[T](env.Status, msg)
	}
	data, err := decode(env.Data)
	if err != nil {
		c.logger.Warnf(providers.TypeApi, "%s %s: malformed response: %s", req.method, req.path, err)
		return models.Fail[T](env.Status, "malformed response")
	}
	return models.Ok(data, env.Status)
}
