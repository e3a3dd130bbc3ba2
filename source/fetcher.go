package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/c360studio/orphasnap/source/weburl"
)

// ErrContentTooLarge is returned when a download exceeds the size limit.
var ErrContentTooLarge = errors.New("content too large")

// Fetcher streams dataset locations (https URLs, file:// URLs or local
// paths) into a writer, with SSRF checks on remote hosts.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	maxContentSize int64
	validate       func(string) error
	logger         *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the guarded default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithURLValidator replaces weburl.ValidateURL for remote locations.
func WithURLValidator(fn func(string) error) Option {
	return func(f *Fetcher) { f.validate = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a fetcher. A maxContentSize <= 0 disables the limit.
func NewFetcher(timeout time.Duration, userAgent string, maxContentSize int64, opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent:      userAgent,
		maxContentSize: maxContentSize,
		validate:       weburl.ValidateURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = newGuardedClient(timeout, f.validate)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// newGuardedClient resolves hosts itself and refuses private addresses, so a
// public name that resolves (or redirects) inward is blocked.
func newGuardedClient(timeout time.Duration, validate func(string) error) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}
		for _, ipAddr := range ips {
			if weburl.IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}

		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
		}
		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           safeDialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
		// No overall Timeout: full-set downloads are large; the context bounds them.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			if err := validate(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
}

// Fetch copies the content at location into dst and returns the byte count.
func (f *Fetcher) Fetch(ctx context.Context, location string, dst io.Writer) (int64, error) {
	kind, target, err := weburl.Classify(location)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	var n int64
	switch kind {
	case weburl.KindHTTP:
		n, err = f.fetchHTTP(ctx, target, dst)
	default:
		n, err = f.fetchFile(ctx, target, dst)
	}
	if err != nil {
		return n, err
	}

	f.logger.Debug("Fetched", "location", location, "bytes", n, "duration", time.Since(start))
	return n, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, urlStr string, dst io.Writer) (int64, error) {
	if err := f.validate(urlStr); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/xml,text/tab-separated-values,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if f.maxContentSize > 0 && resp.ContentLength > f.maxContentSize {
		return 0, fmt.Errorf("%w (%d bytes, limit %d)", ErrContentTooLarge, resp.ContentLength, f.maxContentSize)
	}

	return f.copyLimited(dst, resp.Body)
}

func (f *Fetcher) fetchFile(ctx context.Context, path string, dst io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	return f.copyLimited(dst, file)
}

func (f *Fetcher) copyLimited(dst io.Writer, src io.Reader) (int64, error) {
	if f.maxContentSize <= 0 {
		n, err := io.Copy(dst, src)
		if err != nil {
			return n, fmt.Errorf("read body: %w", err)
		}
		return n, nil
	}

	n, err := io.Copy(dst, io.LimitReader(src, f.maxContentSize+1))
	if err != nil {
		return n, fmt.Errorf("read body: %w", err)
	}
	if n > f.maxContentSize {
		return n, fmt.Errorf("%w (exceeds %d bytes)", ErrContentTooLarge, f.maxContentSize)
	}
	return n, nil
}
