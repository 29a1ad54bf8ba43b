package goicon

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ImageLoader acquires and decodes a base image.
type ImageLoader interface {
	Load(ctx context.Context, rawURL string) (*SourceImage, error)
}

// ImageLoaderFunc adapts a function to ImageLoader.
type ImageLoaderFunc func(ctx context.Context, rawURL string) (*SourceImage, error)

func (f ImageLoaderFunc) Load(ctx context.Context, rawURL string) (*SourceImage, error) {
	return f(ctx, rawURL)
}

// CrossOrigin selects how cross-origin images are requested.
type CrossOrigin string

const (
	// CrossOriginAnonymous requests CORS access without credentials. A
	// response that does not grant access fails the load.
	CrossOriginAnonymous CrossOrigin = "anonymous"
	// CrossOriginUseCredentials requests CORS access with credentials.
	CrossOriginUseCredentials CrossOrigin = "use-credentials"
	// CrossOriginNone loads without CORS; the result is tainted.
	CrossOriginNone CrossOrigin = "none"
)

// ParseCrossOrigin parses a cross-origin mode name.
func ParseCrossOrigin(s string) (CrossOrigin, error) {
	switch CrossOrigin(strings.ToLower(strings.TrimSpace(s))) {
	case "", CrossOriginAnonymous:
		return CrossOriginAnonymous, nil
	case CrossOriginUseCredentials:
		return CrossOriginUseCredentials, nil
	case CrossOriginNone:
		return CrossOriginNone, nil
	default:
		return CrossOriginAnonymous, fmt.Errorf("unknown cross-origin mode %q", s)
	}
}

// DefaultMaxImageBytes caps the size of a fetched base image.
const DefaultMaxImageBytes = 5 << 20

// DefaultMaxSourcePixels caps the decoded dimensions of a raster base
// image. SVG sources are rasterized at the target size and are not
// subject to it.
const DefaultMaxSourcePixels = 40_000_000

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// HTTPClient performs requests. Default: a client with a 30s timeout.
	HTTPClient *http.Client
	// BaseURL resolves relative image URLs (the host page URL).
	BaseURL string
	// Origin is the page origin used for CORS decisions, e.g.
	// "https://example.com". Empty treats every URL as same-origin.
	Origin string
	// CrossOrigin is the CORS request mode. Default: anonymous.
	CrossOrigin CrossOrigin
	// MaxBytes caps the image size. Default: DefaultMaxImageBytes.
	MaxBytes int64
	// MaxPixels caps width*height of a decoded raster image.
	// Default: DefaultMaxSourcePixels.
	MaxPixels int64
	// AllowFileScheme permits file:// URLs and bare paths.
	AllowFileScheme bool
	// HostInterval paces requests per host. Zero disables pacing.
	HostInterval time.Duration
	// UserAgent is sent with HTTP requests.
	UserAgent string
	Logger    *slog.Logger
}

// Loader fetches base images over HTTP(S), from data: URLs and,
// optionally, from the local filesystem.
type Loader struct {
	client   *http.Client
	base     *url.URL
	origin   string
	mode     CrossOrigin
	maxBytes int64
	maxPix   int64
	allowFS  bool
	agent    string
	hosts    *HostRateLimiter
	logger   *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	l := &Loader{
		client:   opts.HTTPClient,
		origin:   strings.TrimSuffix(opts.Origin, "/"),
		mode:     opts.CrossOrigin,
		maxBytes: opts.MaxBytes,
		maxPix:   opts.MaxPixels,
		allowFS:  opts.AllowFileScheme,
		agent:    opts.UserAgent,
		hosts:    NewHostRateLimiter(opts.HostInterval),
		logger:   opts.Logger,
	}
	if l.client == nil {
		l.client = &http.Client{Timeout: 30 * time.Second}
	}
	if l.mode == "" {
		l.mode = CrossOriginAnonymous
	}
	if l.maxBytes <= 0 {
		l.maxBytes = DefaultMaxImageBytes
	}
	if l.maxPix <= 0 {
		l.maxPix = DefaultMaxSourcePixels
	}
	if l.agent == "" {
		l.agent = "GoIcon/" + Version
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
		l.base = u
	}
	return l, nil
}

// Load implements ImageLoader. Failures wrap ErrImageLoadFailed; context
// deadline errors are returned unwrapped so callers can tell them apart.
func (l *Loader) Load(ctx context.Context, rawURL string) (*SourceImage, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, loadError("empty image URL", nil)
	}
	if strings.HasPrefix(rawURL, "data:") {
		return l.loadDataURL(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, loadError("invalid image URL", err)
	}
	if !u.IsAbs() && l.base != nil {
		u = l.base.ResolveReference(u)
	}

	switch u.Scheme {
	case "http", "https":
		return l.loadHTTP(ctx, u)
	case "file", "":
		if !l.allowFS {
			return nil, loadError(fmt.Sprintf("unsupported image URL %q", rawURL), nil)
		}
		p := u.Path
		if u.Scheme == "" {
			p = rawURL
		}
		return l.loadFile(p)
	default:
		return nil, loadError(fmt.Sprintf("unsupported URL scheme %q", u.Scheme), nil)
	}
}

func (l *Loader) loadHTTP(ctx context.Context, u *url.URL) (*SourceImage, error) {
	if u.Host == "" {
		return nil, loadError("empty host in image URL", nil)
	}
	if err := l.hosts.Wait(ctx, u.Host); err != nil {
		return nil, err
	}

	crossOrigin := l.isCrossOrigin(u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, loadError("create request", err)
	}
	req.Header.Set("User-Agent", l.agent)
	req.Header.Set("Accept", "image/webp, image/png, image/jpeg, image/gif, image/svg+xml, image/*;q=0.8")
	if crossOrigin && l.mode != CrossOriginNone {
		req.Header.Set("Origin", l.origin)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, loadError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, loadError(fmt.Sprintf("image request returned status %d", resp.StatusCode), nil)
	}

	tainted := false
	if crossOrigin {
		if l.mode == CrossOriginNone {
			tainted = true
		} else if err := l.checkCORS(resp.Header); err != nil {
			return nil, loadError("cross-origin request blocked", err)
		}
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > l.maxBytes {
			return nil, loadError(fmt.Sprintf("image too large: %d > %d bytes", n, l.maxBytes), nil)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, loadError("read response body", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, loadError(fmt.Sprintf("image too large: exceeds %d bytes", l.maxBytes), nil)
	}

	src, err := l.decode(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	src.URL = u.String()
	src.Tainted = tainted

	l.logger.DebugContext(ctx, "image loaded",
		"url", src.URL,
		"content_type", src.ContentType,
		"bytes", len(data),
		"cross_origin", crossOrigin,
		"tainted", tainted)
	return src, nil
}

func (l *Loader) loadDataURL(raw string) (*SourceImage, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, loadError("malformed data URL", nil)
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")

	var data []byte
	if isBase64 {
		var err error
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, loadError("malformed data URL", err)
		}
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, loadError("malformed data URL", err)
		}
		data = []byte(s)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, loadError(fmt.Sprintf("image too large: exceeds %d bytes", l.maxBytes), nil)
	}
	return l.decode(data, contentType)
}

func (l *Loader) loadFile(path string) (*SourceImage, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, loadError("open image file", err)
	}
	if fi.Size() > l.maxBytes {
		return nil, loadError(fmt.Sprintf("image too large: %d > %d bytes", fi.Size(), l.maxBytes), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError("read image file", err)
	}
	src, err := l.decode(data, "")
	if err != nil {
		return nil, err
	}
	src.URL = (&url.URL{Scheme: "file", Path: path}).String()
	return src, nil
}

func (l *Loader) decode(data []byte, contentType string) (*SourceImage, error) {
	ct := normalizeContentType(contentType)
	if ct == "" || ct == "application/octet-stream" || ct == "text/xml" || ct == "text/plain" {
		ct = sniffContentType(data)
	}
	if !IsSupportedSourceType(ct) {
		return nil, loadError(fmt.Sprintf("unsupported image type %q", ct), nil)
	}
	if ct != ContentTypeSVG {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, loadError("decode image header", err)
		}
		if px := int64(cfg.Width) * int64(cfg.Height); px > l.maxPix {
			return nil, loadError(fmt.Sprintf("image is %dx%d, exceeds %d pixels", cfg.Width, cfg.Height, l.maxPix), nil)
		}
	}
	src, err := DecodeSource(data, ct)
	if err != nil {
		return nil, loadError("decode image", err)
	}
	return src, nil
}

func (l *Loader) isCrossOrigin(u *url.URL) bool {
	if l.origin == "" {
		return false
	}
	return !strings.EqualFold(u.Scheme+"://"+u.Host, l.origin)
}

func (l *Loader) checkCORS(h http.Header) error {
	allow := h.Get("Access-Control-Allow-Origin")
	switch l.mode {
	case CrossOriginUseCredentials:
		if allow != l.origin {
			return fmt.Errorf("Access-Control-Allow-Origin %q does not match %q", allow, l.origin)
		}
		if !strings.EqualFold(h.Get("Access-Control-Allow-Credentials"), "true") {
			return errors.New("Access-Control-Allow-Credentials is not true")
		}
	default:
		if allow != "*" && allow != l.origin {
			return fmt.Errorf("Access-Control-Allow-Origin %q does not grant %q", allow, l.origin)
		}
	}
	return nil
}

func loadError(msg string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", ErrImageLoadFailed, msg, cause)
	}
	return fmt.Errorf("%w: %s", ErrImageLoadFailed, msg)
}
