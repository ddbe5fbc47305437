package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLogoMaxBytes = 5 << 20
	defaultLogoTTL      = 10 * time.Minute
	defaultFetchTimeout = 10 * time.Second

	// MaxLogoSide bounds either logo dimension, checked before decoding.
	MaxLogoSide = 4096
)

// ErrUnsupportedLogo is returned for logo sources the engine cannot read.
var ErrUnsupportedLogo = errors.New("unsupported logo source")

// Logo is a decoded logo plus the bytes it came from (the SVG output embeds
// them unchanged).
type Logo struct {
	Image image.Image
	Data  []byte
	MIME  string
}

// LogoLoaderConfig tunes remote logo fetching.
type LogoLoaderConfig struct {
	MaxBytes     int64
	CacheTTL     time.Duration
	FetchTimeout time.Duration
}

// LogoLoader reads data URIs and fetches remote logos. Remote results are
// cached, and concurrent fetches of the same URL share one request.
type LogoLoader struct {
	client   *http.Client
	cache    *gocache.Cache
	group    singleflight.Group
	maxBytes int64
	timeout  time.Duration
	logger   *zap.Logger
}

// NewLogoLoader builds a loader. A nil client gets a default one with the
// configured fetch timeout.
func NewLogoLoader(cfg LogoLoaderConfig, client *http.Client, logger *zap.Logger) *LogoLoader {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultLogoMaxBytes
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultLogoTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogoLoader{
		client:   client,
		cache:    gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		maxBytes: cfg.MaxBytes,
		timeout:  cfg.FetchTimeout,
		logger:   logger,
	}
}

// Load resolves uri into a decoded logo.
func (l *LogoLoader) Load(ctx context.Context, uri string) (*Logo, error) {
	uri = strings.TrimSpace(uri)
	if strings.HasPrefix(uri, "data:") {
		data, mime, err := DecodeDataURI(uri)
		if err != nil {
			return nil, err
		}
		return decodeLogo(data, mime)
	}

	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLogo, truncate(uri, 64))
	}

	if cached, ok := l.cache.Get(uri); ok {
		return cached.(*Logo), nil
	}

	// The fetch is shared, so it must outlive the caller that started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(uri, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(fetchCtx, l.timeout)
		defer cancel()
		logo, err := l.fetch(fctx, uri)
		if err != nil {
			return nil, err
		}
		l.cache.SetDefault(uri, logo)
		return logo, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			l.logger.Debug("remote logo fetch shared", zap.String("url", uri))
		}
		return res.Val.(*Logo), nil
	}
}

func (l *LogoLoader) fetch(ctx context.Context, uri string) (*Logo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("logo request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch logo: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("logo larger than %d bytes", l.maxBytes)
	}

	l.logger.Debug("remote logo fetched", zap.String("url", uri), zap.Int("bytes", len(data)))
	return decodeLogo(data, resp.Header.Get("Content-Type"))
}

func decodeLogo(data []byte, mime string) (*Logo, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedLogo, err)
	}
	if cfg.Width > MaxLogoSide || cfg.Height > MaxLogoSide {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrUnsupportedLogo, cfg.Width, cfg.Height, MaxLogoSide, MaxLogoSide)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedLogo, err)
	}
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/" + format
	}
	return &Logo{Image: img, Data: data, MIME: mime}, nil
}

// DecodeDataURI splits a data: URI into its payload and media type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data URI", ErrUnsupportedLogo)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: data URI without payload", ErrUnsupportedLogo)
	}

	params := strings.Split(meta, ";")
	mime := params[0]
	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return nil, "", fmt.Errorf("%w: bad base64 payload", ErrUnsupportedLogo)
			}
		}
		return data, mime, nil
	}

	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: bad data URI payload", ErrUnsupportedLogo)
	}
	return []byte(decoded), mime, nil
}

// EncodeDataURI is the inverse of DecodeDataURI for uploaded files.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
