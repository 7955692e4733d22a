// Package fetch performs the outbound HTTP requests for live source
// states: bounded response size, per-request deadline from the caller's
// context, SSRF validation on the initial URL and every redirect hop, and
// pluggable anti-bot block detection.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrBlocked is returned when a response matches a block detector. Callers
// advance to the next fallback source instead of retrying this one.
var ErrBlocked = errors.New("fetch: blocked by source")

// ErrSSRF is returned when a URL targets a private or loopback address.
var ErrSSRF = errors.New("fetch: URL targets a private or loopback address")

// ErrUnsafeScheme is returned for non-HTTP(S) URLs.
var ErrUnsafeScheme = errors.New("fetch: only http and https schemes are allowed")

// BlockDetector inspects a response and reports whether the source served
// an anti-bot challenge instead of content. Detectors are additive; any
// match counts as blocked.
type BlockDetector func(statusCode int, header http.Header, body []byte) bool

// Config configures a Fetcher.
type Config struct {
	// Timeout is the transport-level ceiling. Per-state deadlines come in
	// via context; this is a backstop. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body read. Default: 5MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator runs before the request and on every redirect.
	// Default: ValidateURL. Tests override it to allow loopback targets.
	URLValidator func(string) error
	// Detectors is the block-detection chain. Default: DefaultDetectors.
	Detectors []BlockDetector
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 5 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "bayarea-dashboard/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
	if c.Detectors == nil {
		c.Detectors = DefaultDetectors()
	}
}

// Result is a completed fetch.
type Result struct {
	Body        []byte
	StatusCode  int
	ContentType string
	Header      http.Header
}

// Fetcher performs HTTP GETs for source strategies.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Get retrieves rawURL. Non-2xx statuses and block-detector matches are
// errors; the body (when present) is still returned for diagnostics.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Result, error) {
	if err := f.config.URLValidator(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	result := &Result{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
	}

	for _, detect := range f.config.Detectors {
		if detect(resp.StatusCode, resp.Header, body) {
			return result, fmt.Errorf("%w (http %d)", ErrBlocked, resp.StatusCode)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("http %d", resp.StatusCode)
	}
	return result, nil
}

// DefaultDetectors recognizes the challenge pages and rate-limit responses
// the monitored sources actually serve.
func DefaultDetectors() []BlockDetector {
	return []BlockDetector{
		// Hard rate limiting.
		func(status int, _ http.Header, _ []byte) bool {
			return status == http.StatusTooManyRequests
		},
		// Cloudflare and generic JS-challenge interstitials.
		func(status int, header http.Header, body []byte) bool {
			if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
				return false
			}
			if strings.Contains(strings.ToLower(header.Get("Server")), "cloudflare") {
				return true
			}
			lower := strings.ToLower(string(body))
			for _, sig := range []string{
				"checking your browser",
				"cf-challenge",
				"just a moment...",
				"attention required!",
				"verify you are a human",
			} {
				if strings.Contains(lower, sig) {
					return true
				}
			}
			return false
		},
	}
}

// ValidateURL checks that rawURL uses http/https, has a hostname, and does
// not resolve to a private or loopback IP. DNS resolution is performed to
// catch internal hostnames.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("fetch: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("fetch: URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// DNS failure: let the connection attempt produce the real error.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
