package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/markyourfish/fishing-log/internal/config"
	"github.com/markyourfish/fishing-log/internal/middleware"
	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/repository"
)

// maxUploadBytes caps a single uploaded image at 10 MB.
const maxUploadBytes = 10 << 20

// imageExtensions maps accepted content types to the stored file extension.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadHandler stores catch photos and profile pictures on local disk and
// records each file so it can be listed and deleted later. Files are named
// with a random UUID; the original name never touches the filesystem.
type UploadHandler struct {
	Cfg    config.Config
	Photos repository.PhotoStore
	Users  repository.UserStore
}

func NewUploadHandler(cfg config.Config, photos repository.PhotoStore, users repository.UserStore) *UploadHandler {
	return &UploadHandler{Cfg: cfg, Photos: photos, Users: users}
}

// saveImage validates and writes one multipart file, returning the photo row
// to persist. Shared with the catch handler, which accepts an inline photo
// on multipart catch submissions.
func saveImage(dir string, fh *multipart.FileHeader, userID uint64) (model.Photo, error) {
	if fh.Size > maxUploadBytes {
		return model.Photo{}, errTooLarge
	}
	contentType := fh.Header.Get("Content-Type")
	ext, ok := imageExtensions[strings.ToLower(contentType)]
	if !ok {
		return model.Photo{}, errBadType
	}

	src, err := fh.Open()
	if err != nil {
		return model.Photo{}, err
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.Photo{}, err
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return model.Photo{}, err
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, maxUploadBytes))
	if err != nil {
		return model.Photo{}, err
	}

	return model.Photo{
		UserID:      userID,
		FileName:    name,
		URL:         "/uploads/" + name,
		ContentType: contentType,
		SizeBytes:   written,
	}, nil
}

var (
	errTooLarge = errors.New("file exceeds size limit")
	errBadType  = errors.New("unsupported content type")
)

func uploadError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file exceeds the 10MB limit"})
	case errors.Is(err, errBadType):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "only jpeg, png, gif and webp images are accepted"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}
}

// CatchPhotos accepts up to five images under the "photos" field and
// optionally links them to a catch via the catchId form value.
func (h *UploadHandler) CatchPhotos(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart form required"})
	}
	files := form.File["photos"]
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no photos provided"})
	}
	if len(files) > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at most 5 photos per upload"})
	}

	var catchID *uint64
	if raw := c.FormValue("catchId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid catchId"})
		}
		catchID = &id
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	photos := make([]model.Photo, 0, len(files))
	for _, fh := range files {
		p, err := saveImage(h.Cfg.UploadDir, fh, u.ID)
		if err != nil {
			return uploadError(c, err)
		}
		p.CatchID = catchID
		if err := h.Photos.Create(ctx, &p); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record upload failed"})
		}
		photos = append(photos, p)
	}

	return c.JSON(http.StatusCreated, echo.Map{"photos": photos})
}

// ProfilePicture stores a single image and points the account at it.
func (h *UploadHandler) ProfilePicture(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	fh, err := c.FormFile("picture")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "picture file required"})
	}

	p, err := saveImage(h.Cfg.UploadDir, fh, u.ID)
	if err != nil {
		return uploadError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Photos.Create(ctx, &p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record upload failed"})
	}
	if err := h.Users.UpdateProfilePicture(ctx, u.ID, p.URL); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update profile failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"photo": p, "profilePictureUrl": p.URL})
}

// ListFiles returns the caller's uploads.
func (h *UploadHandler) ListFiles(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	photos, err := h.Photos.ListByUser(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list files failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"files": photos})
}

// DeleteFile removes one of the caller's uploads from disk and the index.
// Admins may delete any file.
func (h *UploadHandler) DeleteFile(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Photos.GetByID(ctx, pathID(c, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load file failed"})
	}
	if p.UserID != u.ID && u.Role != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your file"})
	}

	if err := h.Photos.Delete(ctx, p.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete file failed"})
	}
	if err := os.Remove(filepath.Join(h.Cfg.UploadDir, p.FileName)); err != nil && !os.IsNotExist(err) {
		c.Logger().Warnf("upload delete: remove %s: %v", p.FileName, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "file deleted"})
}

// UploadStats summarizes the caller's storage usage.
func (h *UploadHandler) UploadStats(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required", "code": middleware.CodeAuthRequired})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	stats, err := h.Photos.Stats(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stats failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": stats})
}
