// Package network sends outbound requests for extensions.
//
// HTTPService wraps net/http with a circuit breaker so that a failing
// collection endpoint stops receiving traffic for a while instead of being
// hammered by every queued hit.
package network

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
)

var (
	// ErrBreakerOpen is returned while the circuit breaker rejects requests.
	ErrBreakerOpen = errors.NetworkError("circuit breaker open").Build()
	// ErrInvalidRequest is returned for a request without a URL.
	ErrInvalidRequest = errors.ValidationError("invalid network request").Build()

	errServerStatus = stderrors.New("server error status")
)

// maxBody caps how much of a response body is kept.
const maxBody = 1 << 20

// Request describes one outbound call. Zero timeouts use the service defaults.
type Request struct {
	URL            string
	Method         string
	Body           []byte
	Headers        map[string]string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Response is a completed call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Service sends requests.
type Service interface {
	Connect(ctx context.Context, req Request) (*Response, error)
}

// BreakerSettings tunes the circuit breaker.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial request.
	OpenTimeout time.Duration
}

// Option configures an HTTPService.
type Option func(*HTTPService)

func WithLogger(l *slog.Logger) Option {
	return func(s *HTTPService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBreaker replaces the default breaker settings.
func WithBreaker(b BreakerSettings) Option {
	return func(s *HTTPService) { s.breakerSettings = b }
}

// WithTimeouts sets the default connect and read timeouts.
func WithTimeouts(connect, read time.Duration) Option {
	return func(s *HTTPService) {
		if connect > 0 {
			s.connectTimeout = connect
		}
		if read > 0 {
			s.readTimeout = read
		}
	}
}

// HTTPService implements Service over HTTP.
type HTTPService struct {
	logger          *slog.Logger
	client          *http.Client
	breaker         *gobreaker.CircuitBreaker
	breakerSettings BreakerSettings
	connectTimeout  time.Duration
	readTimeout     time.Duration
}

// NewHTTPService returns a service named name, used as the breaker name.
func NewHTTPService(name string, opts ...Option) *HTTPService {
	s := &HTTPService{
		logger:         slog.Default(),
		connectTimeout: config.DefaultConnectTimeout,
		readTimeout:    config.DefaultReadTimeout,
		breakerSettings: BreakerSettings{
			MaxFailures: config.DefaultBreakerFailures,
			OpenTimeout: config.DefaultBreakerOpenTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	dialer := &net.Dialer{Timeout: s.connectTimeout}
	s.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   s.connectTimeout,
			ResponseHeaderTimeout: s.readTimeout,
			MaxIdleConns:          16,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	maxFailures := s.breakerSettings.MaxFailures
	if maxFailures == 0 {
		maxFailures = config.DefaultBreakerFailures
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.breakerSettings.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("Circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return s
}

// FromConfig builds a service from the network section.
func FromConfig(name string, cfg *config.Config, logger *slog.Logger) *HTTPService {
	return NewHTTPService(name,
		WithLogger(logger),
		WithTimeouts(cfg.ConnectTimeout(), cfg.ReadTimeout()),
		WithBreaker(BreakerSettings{
			MaxFailures: cfg.Network.Breaker.MaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout(),
		}))
}

// State reports the breaker state: "closed", "half-open" or "open".
func (s *HTTPService) State() string { return s.breaker.State().String() }

// Connect sends req. A 5xx response is returned together with a nil error
// but counts as a breaker failure.
func (s *HTTPService) Connect(ctx context.Context, req Request) (*Response, error) {
	if req.URL == "" {
		return nil, ErrInvalidRequest
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
		if len(req.Body) > 0 {
			method = http.MethodPost
		}
	}
	timeout := s.connectTimeout + s.readTimeout
	if req.ConnectTimeout > 0 || req.ReadTimeout > 0 {
		timeout = max(req.ConnectTimeout, 0) + max(req.ReadTimeout, 0)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.breaker.Execute(func() (interface{}, error) {
		resp, err := s.do(ctx, method, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	resp, _ := out.(*Response)
	switch {
	case err == nil:
		return resp, nil
	case stderrors.Is(err, errServerStatus):
		return resp, nil
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, errors.WrapError(ErrBreakerOpen, errors.CategoryNetwork, "request rejected").
			WithContext("url", req.URL).
			Retryable().
			Build()
	default:
		s.logger.Debug("Request failed", logfields.URL(req.URL), logfields.Error(err))
		return nil, errors.WrapError(err, errors.CategoryNetwork, "request failed").
			WithContext("url", req.URL).
			Retryable().
			Build()
	}
}

func (s *HTTPService) do(ctx context.Context, method string, req Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}
	resp, err := s.client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Recoverable reports whether a call that produced resp and err is worth
// retrying later: transport errors, an open breaker, 408, 429 and 5xx.
func Recoverable(resp *Response, err error) bool {
	if err != nil {
		return !stderrors.Is(err, ErrInvalidRequest)
	}
	if resp == nil {
		return true
	}
	switch {
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return true
	case resp.StatusCode >= http.StatusInternalServerError:
		return true
	}
	return false
}
