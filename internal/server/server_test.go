package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	goicon "github.com/VantageDataChat/GoIcon"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func redSource() *goicon.SourceImage {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 0xff, 0xff
	}
	return goicon.NewSourceImage(img)
}

func testLoader() goicon.ImageLoader {
	return goicon.ImageLoaderFunc(func(_ context.Context, raw string) (*goicon.SourceImage, error) {
		switch {
		case strings.Contains(raw, "missing"):
			return nil, goicon.ErrImageLoadFailed
		case strings.Contains(raw, "tainted"):
			src := redSource()
			src.Tainted = true
			return src, nil
		default:
			return redSource(), nil
		}
	})
}

func newTestServer(t *testing.T, rateLimit float64) *Server {
	t.Helper()
	widget := goicon.DefaultWidgetOptions()
	widget.ExportSize = 64
	widget.PreviewSize = 32
	export := goicon.ExporterOptions{
		Loader:   testLoader(),
		Notifier: ResponseNotifier{},
		Logger:   quietLogger,
	}
	reg := goicon.NewRegistry(goicon.NewInstanceFactory(widget, export), quietLogger)
	return New(Options{
		Registry:  reg,
		Loader:    testLoader(),
		Widget:    widget,
		Export:    export,
		RateLimit: rateLimit,
		RateBurst: 1,
		Logger:    quietLogger,
	})
}

func do(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	do(t, s, http.MethodGet, "/api/v1/icon.png?url=https://img.test/a.png", nil)
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goicon_exports_total")
}

func TestSwatches(t *testing.T) {
	s := newTestServer(t, 0)
	rec := do(t, s, http.MethodGet, "/api/v1/swatches", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var swatches []goicon.Swatch
	decodeJSON(t, rec, &swatches)
	require.Len(t, swatches, len(goicon.DefaultSwatches))
	assert.Equal(t, "#a8dadc", swatches[0].Color.Hex())
}

func TestIcon_Stateless(t *testing.T) {
	s := newTestServer(t, 0)
	rec := do(t, s, http.MethodGet, "/api/v1/icon.png?url=https://img.test/a.png&shape=square&scale=50&color=%23000000", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, goicon.ContentTypePNG, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	assert.Regexp(t, `filename=custom-icon-\d+\.png`, rec.Header().Get(echo.HeaderContentDisposition))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	// Scale 50 on black: corners of the content box show background.
	r, g, b, a := img.At(20, 10).RGBA()
	assert.Equal(t, [4]uint32{0, 0, 0, 0xffff}, [4]uint32{r, g, b, a})
	center := color.NRGBAModel.Convert(img.At(32, 32)).(color.NRGBA)
	assert.InDelta(t, 0xff, int(center.R), 2)
	assert.InDelta(t, 0, int(center.G), 2)
	assert.Equal(t, uint8(0xff), center.A)
}

func TestIcon_BadParams(t *testing.T) {
	s := newTestServer(t, 0)
	for _, q := range []string{
		"url=https://img.test/a.png&shape=star",
		"url=https://img.test/a.png&scale=big",
		"url=https://img.test/a.png&color=teal",
		"url=https://img.test/a.png&format=gif",
		"shape=circle",
	} {
		rec := do(t, s, http.MethodGet, "/api/v1/icon.png?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestIcon_Failures(t *testing.T) {
	s := newTestServer(t, 0)

	rec := do(t, s, http.MethodGet, "/api/v1/icon.png?url=https://img.test/missing.png", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp errorResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "image_load_failed", resp.Kind)
	require.NotNil(t, resp.Notification)
	assert.Equal(t, goicon.NotifyError, resp.Notification.Kind)

	rec = do(t, s, http.MethodGet, "/api/v1/icon.png?url=https://img.test/tainted.png&lang=ja", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "serialization_tainted", resp.Kind)
	assert.Contains(t, resp.Error, "CORS")
}

func TestInstances_Lifecycle(t *testing.T) {
	s := newTestServer(t, 0)

	host := goicon.HostConfig{MountID: "header", BaseImageURL: "https://img.test/a.png"}
	rec := do(t, s, http.MethodPost, "/api/v1/instances", host)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view instanceView
	decodeJSON(t, rec, &view)
	assert.Equal(t, "header", view.ID)
	assert.Equal(t, goicon.ShapeCircle, view.Config.Shape)
	assert.Equal(t, "idle", view.State)

	// Re-initialization returns the existing instance.
	rec = do(t, s, http.MethodPost, "/api/v1/instances", host)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPatch, "/api/v1/instances/header/config", map[string]any{
		"shape":        "square",
		"scalePercent": 87,
		"preset":       3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeJSON(t, rec, &view)
	assert.Equal(t, goicon.ShapeRoundedSquare, view.Config.Shape)
	assert.Equal(t, 85, view.Config.ScalePercent)
	assert.Equal(t, goicon.DefaultSwatches[3].Color, view.Config.BackgroundColor)

	rec = do(t, s, http.MethodPatch, "/api/v1/instances/header/config", map[string]any{"backgroundColor": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/instances", nil)
	var list []instanceView
	decodeJSON(t, rec, &list)
	assert.Len(t, list, 1)

	rec = do(t, s, http.MethodDelete, "/api/v1/instances/header", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/v1/instances/header", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/v1/instances/header", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstances_PreviewAndExport(t *testing.T) {
	s := newTestServer(t, 0)
	do(t, s, http.MethodPost, "/api/v1/instances", goicon.HostConfig{MountID: "a", BaseImageURL: "https://img.test/a.png"})

	rec := do(t, s, http.MethodGet, "/api/v1/instances/a/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Empty(t, rec.Header().Get("X-Icon-Placeholder"))

	rec = do(t, s, http.MethodPost, "/api/v1/instances/a/export", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img, err = png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestInstances_PreviewPlaceholder(t *testing.T) {
	s := newTestServer(t, 0)
	do(t, s, http.MethodPost, "/api/v1/instances", goicon.HostConfig{MountID: "m", BaseImageURL: "https://img.test/missing.png"})

	rec := do(t, s, http.MethodGet, "/api/v1/instances/m/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Icon-Placeholder"))

	rec = do(t, s, http.MethodPost, "/api/v1/instances/m/export", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp errorResponse
	decodeJSON(t, rec, &resp)
	require.NotNil(t, resp.Notification)
	assert.Equal(t, "image load failed", resp.Notification.Message)
}

func TestInstances_ExportUnknown(t *testing.T) {
	s := newTestServer(t, 0)
	rec := do(t, s, http.MethodPost, "/api/v1/instances/ghost/export", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "container_not_found", resp.Kind)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 1)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/swatches", nil).Code)

	rec := do(t, s, http.MethodGet, "/api/v1/swatches", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health checks are not rate limited.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	e := echo.New()
	e.Use(rl.Middleware())
	e.GET("/test", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}
}

func TestRun_Shutdown(t *testing.T) {
	s := newTestServer(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
