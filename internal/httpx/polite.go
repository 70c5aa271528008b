package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps a single API response. World Bank pages with per_page=20000 stay well below it.
const maxBodyBytes = 32 << 20

// PoliteClient enforces per-host rate limits, optional robots.txt rules, and polite retries.
type PoliteClient struct {
	client        *http.Client
	ua            string
	every         time.Duration
	burst         int
	respectRobots bool
	limiters      map[string]*rate.Limiter
	robotsCache   map[string]*robotstxt.RobotsData
	mu            sync.Mutex
}

func NewPoliteClient(opts Options) *PoliteClient {
	opts = opts.withDefaults()
	return &PoliteClient{
		client:        &http.Client{Timeout: opts.Timeout},
		ua:            opts.UserAgent,
		every:         opts.Every,
		burst:         opts.Burst,
		respectRobots: opts.RespectRobots,
		limiters:      map[string]*rate.Limiter{},
		robotsCache:   map[string]*robotstxt.RobotsData{},
	}
}

func (p *PoliteClient) limiterFor(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(p.every), p.burst)
	p.limiters[host] = l
	return l
}

// NewRequest builds an HTTP GET request with context and a safe URL defaulting to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if rawURL == "" {
		return nil, errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (p *PoliteClient) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Hostname()
	p.mu.Lock()
	if data, ok := p.robotsCache[host]; ok {
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.ua)

	if err := p.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.robotsCache[host] = data
	p.mu.Unlock()
	return data, nil
}

// Do executes the request respecting robots.txt and rate limits.
func (p *PoliteClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.ua)
	}

	u := req.URL
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if p.respectRobots && !p.allowed(ctx, u, req.Method) {
		return nil, &FetchError{Status: http.StatusForbidden, Err: fmt.Errorf("blocked by robots.txt: %s", u)}
	}

	host := u.Hostname()
	limiter := p.limiterFor(host)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("retryable status %d", resp.StatusCode)}
			resp.Body.Close()
			backoff := time.Duration(500*(1<<attempt)) * time.Millisecond
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("polite client: failed without error")
	}
	return nil, lastErr
}

// FetchBytes issues a GET and returns the body of a 2xx response.
// Anything else comes back as a *FetchError.
func (p *PoliteClient) FetchBytes(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return nil, 0, err
	}
	resp, err := p.Do(ctx, req)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe.Status, err
		}
		return nil, 0, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, &FetchError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return body, resp.StatusCode, nil
}

func (p *PoliteClient) allowed(ctx context.Context, u *url.URL, method string) bool {
	data, err := p.robotsFor(ctx, u)
	if err != nil {
		return true // fail open to avoid blocking everything
	}
	ua := p.ua
	group := data.FindGroup(ua)
	if group == nil {
		group = data.FindGroup("*")
	}
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if !group.Test(path) {
		return false
	}
	// Read-only client.
	if !strings.EqualFold(method, http.MethodGet) && !strings.EqualFold(method, http.MethodHead) {
		return false
	}
	return true
}
