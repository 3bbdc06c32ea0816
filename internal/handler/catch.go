package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/markyourfish/fishing-log/internal/config"
	"github.com/markyourfish/fishing-log/internal/middleware"
	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/queue"
	"github.com/markyourfish/fishing-log/internal/repository"
	queue_publisher "github.com/markyourfish/fishing-log/internal/service"
)

// CatchHandler implements the catch log endpoints. Routes are mounted behind
// the auth gateway, so every request carries a resolved user; create also
// passes the monthly quota guard and mutations pass the ownership guard.
type CatchHandler struct {
	Cfg      config.Config
	Catches  repository.CatchStore
	Photos   repository.PhotoStore
	Users    repository.UserStore
	Validate *validator.Validate
}

func NewCatchHandler(cfg config.Config, catches repository.CatchStore, photos repository.PhotoStore, users repository.UserStore, v *validator.Validate) *CatchHandler {
	return &CatchHandler{Cfg: cfg, Catches: catches, Photos: photos, Users: users, Validate: v}
}

type catchReq struct {
	Species   string   `json:"species" validate:"required,max=120"`
	Weight    *float64 `json:"weight" validate:"omitempty,gt=0"`
	Length    *float64 `json:"length" validate:"omitempty,gt=0"`
	Location  string   `json:"location" validate:"required,max=255"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Date      string   `json:"date" validate:"required"`
	Notes     string   `json:"notes" validate:"omitempty,max=2000"`
	PhotoURLs []string `json:"photoUrls" validate:"omitempty,max=10,dive,url"`
}

func (r catchReq) caughtAt() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, r.Date); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", r.Date)
}

// bindCatch decodes a catch payload from either JSON or a multipart form.
// Multipart submissions may carry one image under the "photo" field, the
// way the mobile client sends a catch and its picture in one request.
func (h *CatchHandler) bindCatch(c echo.Context) (catchReq, *multipart.FileHeader, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		var req catchReq
		err := c.Bind(&req)
		return req, nil, err
	}

	req := catchReq{
		Species:  c.FormValue("species"),
		Location: c.FormValue("location"),
		Date:     c.FormValue("date"),
		Notes:    c.FormValue("notes"),
	}
	for name, dst := range map[string]**float64{
		"weight":    &req.Weight,
		"length":    &req.Length,
		"latitude":  &req.Latitude,
		"longitude": &req.Longitude,
	} {
		raw := strings.TrimSpace(c.FormValue(name))
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, nil, err
		}
		*dst = &f
	}
	if form, err := c.MultipartForm(); err == nil {
		req.PhotoURLs = form.Value["photoUrls"]
	}

	fh, err := c.FormFile("photo")
	if err != nil {
		fh = nil // the photo field is optional
	}
	return req, fh, nil
}

// linkPhoto records the stored image against the catch. The catch itself
// already exists, so indexing failures only get logged.
func (h *CatchHandler) linkPhoto(c echo.Context, ctx context.Context, catchID uint64, p *model.Photo) {
	p.CatchID = &catchID
	if err := h.Photos.Create(ctx, p); err != nil {
		c.Logger().Warnf("catch %d: record photo %s: %v", catchID, p.FileName, err)
	}
}

// List returns the caller's catches with filtering, sorting and pagination.
func (h *CatchHandler) List(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	f := model.CatchFilter{
		Species:   strings.TrimSpace(c.QueryParam("species")),
		Location:  strings.TrimSpace(c.QueryParam("location")),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", 20),
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	catches, total, err := h.Catches.ListByUser(ctx, u.ID, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list catches failed"})
	}

	totalPages := 0
	if f.Limit > 0 {
		totalPages = (total + f.Limit - 1) / f.Limit
	}
	return c.JSON(http.StatusOK, echo.Map{
		"catches": catches,
		"pagination": echo.Map{
			"page":       f.Page,
			"limit":      f.Limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

// Get returns a single catch. The ownership guard has already confirmed the
// record exists and belongs to the caller (or that the caller is an admin).
func (h *CatchHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec, err := h.Catches.GetByID(ctx, pathID(c, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "catch not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load catch failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"catch": rec})
}

// Create records a new catch, bumps the caller's monthly counter and emits
// a catch.recorded event for downstream consumers.
func (h *CatchHandler) Create(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	req, photoFile, err := h.bindCatch(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}
	caughtAt, err := req.caughtAt()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}

	rec := model.Catch{
		UserID:    u.ID,
		Species:   strings.TrimSpace(req.Species),
		Weight:    req.Weight,
		Length:    req.Length,
		Location:  strings.TrimSpace(req.Location),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		CaughtAt:  caughtAt,
		Notes:     strings.TrimSpace(req.Notes),
		PhotoURLs: req.PhotoURLs,
	}
	if rec.PhotoURLs == nil {
		rec.PhotoURLs = []string{}
	}

	var photo *model.Photo
	if photoFile != nil {
		p, perr := saveImage(h.Cfg.UploadDir, photoFile, u.ID)
		if perr != nil {
			return uploadError(c, perr)
		}
		rec.PhotoURLs = append([]string{p.URL}, rec.PhotoURLs...)
		photo = &p
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Catches.Create(ctx, &rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create catch failed"})
	}
	if photo != nil {
		h.linkPhoto(c, ctx, rec.ID, photo)
	}
	if err := h.Users.AdjustCatchCount(ctx, u.ID, 1); err != nil {
		c.Logger().Warnf("catch create: adjust counter for user %d: %v", u.ID, err)
	}

	// fire-and-forget; the request must not wait on the broker
	go func(ev queue.CatchRecordedEvent) {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pubCancel()
		_ = queue_publisher.PublishCatchRecorded(pubCtx, ev)
	}(queue.CatchRecordedEvent{
		CatchID:    rec.ID,
		UserID:     u.ID,
		Species:    rec.Species,
		WeightKg:   rec.Weight,
		Location:   rec.Location,
		CaughtAt:   rec.CaughtAt.UTC().Format(time.RFC3339),
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{"catch": rec})
}

// Update replaces the mutable fields of an owned catch. A multipart update
// may attach one more photo, which is prepended like on create.
func (h *CatchHandler) Update(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	req, photoFile, err := h.bindCatch(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Validate.Struct(req); err != nil {
		return validationError(c, err)
	}
	caughtAt, err := req.caughtAt()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec, err := h.Catches.GetByID(ctx, pathID(c, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "catch not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load catch failed"})
	}

	rec.Species = strings.TrimSpace(req.Species)
	rec.Weight = req.Weight
	rec.Length = req.Length
	rec.Location = strings.TrimSpace(req.Location)
	rec.Latitude = req.Latitude
	rec.Longitude = req.Longitude
	rec.CaughtAt = caughtAt
	rec.Notes = strings.TrimSpace(req.Notes)
	if req.PhotoURLs != nil {
		rec.PhotoURLs = req.PhotoURLs
	}

	var photo *model.Photo
	if photoFile != nil {
		p, perr := saveImage(h.Cfg.UploadDir, photoFile, u.ID)
		if perr != nil {
			return uploadError(c, perr)
		}
		rec.PhotoURLs = append([]string{p.URL}, rec.PhotoURLs...)
		photo = &p
	}

	if err := h.Catches.Update(ctx, &rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update catch failed"})
	}
	if photo != nil {
		h.linkPhoto(c, ctx, rec.ID, photo)
	}
	return c.JSON(http.StatusOK, echo.Map{"catch": rec})
}

// Delete removes an owned catch and releases one unit of monthly quota.
func (h *CatchHandler) Delete(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := pathID(c, "id")
	rec, err := h.Catches.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "catch not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load catch failed"})
	}
	if err := h.Catches.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete catch failed"})
	}
	if err := h.Users.AdjustCatchCount(ctx, rec.UserID, -1); err != nil {
		c.Logger().Warnf("catch delete: adjust counter for user %d: %v", u.ID, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "catch deleted"})
}

// Stats aggregates the caller's log into the dashboard numbers.
func (h *CatchHandler) Stats(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	stats, err := h.Catches.Stats(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stats failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": stats})
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
