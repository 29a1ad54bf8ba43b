package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	goicon "github.com/VantageDataChat/GoIcon"
	"github.com/VantageDataChat/GoIcon/internal/metrics"
)

type notificationKey struct{}

type notificationSlot struct {
	n *goicon.Notification
}

func withNotificationSlot(ctx context.Context) (context.Context, *notificationSlot) {
	slot := &notificationSlot{}
	return context.WithValue(ctx, notificationKey{}, slot), slot
}

// ResponseNotifier hands export notifications to the HTTP response of the
// request that triggered them, then forwards them to Next.
type ResponseNotifier struct {
	Next goicon.Notifier
}

func (r ResponseNotifier) Notify(ctx context.Context, n goicon.Notification) {
	if slot, ok := ctx.Value(notificationKey{}).(*notificationSlot); ok {
		slot.n = &n
	}
	if r.Next != nil {
		r.Next.Notify(ctx, n)
	}
}

type errorResponse struct {
	Error        string               `json:"error"`
	Kind         string               `json:"kind,omitempty"`
	Notification *goicon.Notification `json:"notification,omitempty"`
}

type instanceView struct {
	ID      string            `json:"id"`
	Host    goicon.HostConfig `json:"host"`
	Config  goicon.IconConfig `json:"config"`
	State   string            `json:"state"`
	Created string            `json:"created"`
}

func newInstanceView(inst *goicon.Instance) instanceView {
	return instanceView{
		ID:      inst.ID,
		Host:    inst.Host(),
		Config:  inst.Editor.Config(),
		State:   inst.Exporter.State().String(),
		Created: inst.Created.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// configPatch is a partial update; absent fields are left unchanged.
type configPatch struct {
	Shape           *string `json:"shape"`
	ScalePercent    *int    `json:"scalePercent"`
	ScaleSteps      *int    `json:"scaleSteps"`
	BackgroundColor *string `json:"backgroundColor"`
	Preset          *int    `json:"preset"`
	BaseImageURL    *string `json:"baseImageUrl"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": goicon.Version})
}

func (s *Server) handleSwatches(c echo.Context) error {
	return c.JSON(http.StatusOK, s.widget.ColorPresets)
}

// handleIcon renders a one-off icon from query parameters and returns it
// as a download.
func (s *Server) handleIcon(c echo.Context) error {
	cfg, err := s.iconConfigFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	opts := s.export
	opts.Notifier = ResponseNotifier{Next: s.export.Notifier}
	opts.Observer = metrics.Observer{}
	if f := c.QueryParam("format"); f != "" {
		format, err := goicon.ParseExportFormat(f)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		opts.Format = format
	}
	if lang := c.QueryParam("lang"); lang != "" {
		opts.Language = lang
	}
	ex, err := goicon.NewExporter(opts)
	if err != nil {
		return err
	}

	ctx, slot := withNotificationSlot(c.Request().Context())
	res := ex.ExportTo(ctx, cfg, goicon.AttachmentSaver{W: c.Response()})
	return s.exportResponse(c, res, slot)
}

func (s *Server) iconConfigFromQuery(c echo.Context) (goicon.IconConfig, error) {
	ed := goicon.NewEditor(s.widget, c.QueryParam("url"))
	if v := c.QueryParam("shape"); v != "" {
		shape, err := goicon.ParseShape(v)
		if err != nil {
			return goicon.IconConfig{}, err
		}
		if err := ed.SetShape(shape); err != nil {
			return goicon.IconConfig{}, err
		}
	}
	if v := c.QueryParam("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return goicon.IconConfig{}, errors.New("scale must be an integer percentage")
		}
		ed.SetScalePercent(n)
	}
	if v := c.QueryParam("color"); v != "" {
		if err := ed.SetBackgroundColor(v); err != nil {
			return goicon.IconConfig{}, err
		}
	}
	cfg := ed.Config()
	if err := cfg.Validate(s.widget.Limits); err != nil {
		return goicon.IconConfig{}, err
	}
	return cfg, nil
}

func (s *Server) handleListInstances(c echo.Context) error {
	ids := s.registry.IDs()
	views := make([]instanceView, 0, len(ids))
	for _, id := range ids {
		if inst, ok := s.registry.Get(id); ok {
			views = append(views, newInstanceView(inst))
		}
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleCreateInstance(c echo.Context) error {
	var host goicon.HostConfig
	if err := c.Bind(&host); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid host configuration")
	}
	inst, created, err := s.registry.Init(host)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.syncInstanceGauge()
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, newInstanceView(inst))
}

func (s *Server) instance(c echo.Context) (*goicon.Instance, error) {
	inst, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return nil, c.JSON(http.StatusNotFound, errorResponse{
			Error: s.text.Text(goicon.ErrContainerNotFound.Error()),
			Kind:  goicon.KindContainerNotFound.String(),
		})
	}
	return inst, nil
}

func (s *Server) handleGetInstance(c echo.Context) error {
	inst, err := s.instance(c)
	if inst == nil {
		return err
	}
	return c.JSON(http.StatusOK, newInstanceView(inst))
}

func (s *Server) handleDeleteInstance(c echo.Context) error {
	if !s.registry.Remove(c.Param("id")) {
		return c.JSON(http.StatusNotFound, errorResponse{
			Error: s.text.Text(goicon.ErrContainerNotFound.Error()),
			Kind:  goicon.KindContainerNotFound.String(),
		})
	}
	s.syncInstanceGauge()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handlePatchConfig(c echo.Context) error {
	inst, err := s.instance(c)
	if inst == nil {
		return err
	}
	var p configPatch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid configuration patch")
	}
	if err := applyPatch(inst.Editor, p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, newInstanceView(inst))
}

func applyPatch(ed *goicon.Editor, p configPatch) error {
	if p.Shape != nil {
		shape, err := goicon.ParseShape(*p.Shape)
		if err != nil {
			return err
		}
		if err := ed.SetShape(shape); err != nil {
			return err
		}
	}
	if p.ScalePercent != nil {
		ed.SetScalePercent(*p.ScalePercent)
	}
	if p.ScaleSteps != nil {
		ed.StepScale(*p.ScaleSteps)
	}
	if p.Preset != nil {
		if err := ed.SelectPreset(*p.Preset); err != nil {
			return err
		}
	}
	if p.BackgroundColor != nil {
		if err := ed.SetBackgroundColor(*p.BackgroundColor); err != nil {
			return err
		}
	}
	if p.BaseImageURL != nil {
		if err := ed.SetBaseImageURL(*p.BaseImageURL); err != nil {
			return err
		}
	}
	return nil
}

// handlePreview renders the instance at preview resolution. When the base
// image cannot be loaded the placeholder is returned and flagged in a
// response header.
func (s *Server) handlePreview(c echo.Context) error {
	inst, err := s.instance(c)
	if inst == nil {
		return err
	}
	surface, loadErr := inst.Editor.Preview(c.Request().Context(), s.loader, s.text)
	if surface == nil {
		return loadErr
	}
	if loadErr != nil {
		s.logger.WarnContext(c.Request().Context(), "preview image unavailable",
			"mount_id", inst.ID, "error", loadErr)
		c.Response().Header().Set("X-Icon-Placeholder", "true")
	}
	data, err := surface.EncodePNG()
	if err != nil {
		return s.exportFailure(c, http.StatusUnprocessableEntity, &goicon.ExportError{
			Kind:    goicon.KindOf(err),
			Message: err.Error(),
			Err:     err,
		}, nil)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, goicon.ContentTypePNG, data)
}

func (s *Server) handleExport(c echo.Context) error {
	id := c.Param("id")
	ctx, slot := withNotificationSlot(c.Request().Context())
	res := s.registry.ExportTo(ctx, id, goicon.AttachmentSaver{W: c.Response()})
	return s.exportResponse(c, res, slot)
}

// exportResponse finishes a request after an export. On success the
// AttachmentSaver has already written the body.
func (s *Server) exportResponse(c echo.Context, res goicon.ExportResult, slot *notificationSlot) error {
	switch res.Status {
	case goicon.StatusSucceeded:
		return nil
	case goicon.StatusRejected:
		return c.JSON(http.StatusConflict, errorResponse{Error: goicon.ErrExportInProgress.Error()})
	}
	return s.exportFailure(c, statusForKind(res.Err.Kind), res.Err, slot.n)
}

func (s *Server) exportFailure(c echo.Context, status int, e *goicon.ExportError, n *goicon.Notification) error {
	if n == nil {
		note := s.text.ErrorNotification(e)
		n = &note
	}
	return c.JSON(status, errorResponse{Error: n.Message, Kind: e.Kind.String(), Notification: n})
}

func statusForKind(k goicon.ErrorKind) int {
	switch k {
	case goicon.KindContainerNotFound:
		return http.StatusNotFound
	case goicon.KindImageLoadFailed:
		return http.StatusBadGateway
	case goicon.KindImageLoadTimedOut:
		return http.StatusGatewayTimeout
	case goicon.KindSerializationTainted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
