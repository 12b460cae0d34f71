package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bagwatch/pkg/logx"
)

// ErrFetch wraps any failure to retrieve the catalog page: timeout, network
// error, or a non-2xx status. Callers treat all of them identically.
var ErrFetch = errors.New("catalog fetch failed")

// Source produces the current list of catalog entries.
// Returning zero entries is a valid, non-error result.
type Source interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

// HTTPConfig configures the HTTP catalog source.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPSource fetches a remote catalog page and parses product cards out of it.
type HTTPSource struct {
	cfg    HTTPConfig
	client *http.Client
	log    logx.Logger
	now    func() time.Time
}

func NewHTTPSource(cfg HTTPConfig, log logx.Logger) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
		now:    time.Now,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	// The catalog serves a degraded page to clients without browser headers.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	entries, err := ParseEntries(resp.Body, s.cfg.URL, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if len(entries) == 0 {
		s.log.Warn("no product cards extracted", logx.String("url", s.cfg.URL))
	} else {
		s.log.Debug("catalog fetched", logx.Int("entries", len(entries)), logx.String("url", s.cfg.URL))
	}
	return entries, nil
}

// linkBase returns the scheme://host prefix used to absolutize relative
// product links.
func linkBase(pageURL string) string {
	idx := strings.Index(pageURL, "://")
	if idx < 0 {
		return ""
	}
	rest := pageURL[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return pageURL
	}
	return pageURL[:idx+3+slash]
}
