package kalam

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
	uploadsSubdir = "uploads"
)

// processImage decodes an image from src, shrinks it to maxImageWidth when it
// is wider, and encodes it as JPEG.
func processImage(src io.Reader, originalName string, now time.Time) (Image, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Image{}, nil, errors.Wrap(err, "decode image")
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, nil, errors.Wrap(err, "encode jpeg")
	}

	return Image{
		Filename:     slugifyFilename(originalName) + ".jpg",
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   now.UTC().Format(time.RFC3339),
	}, buf.Bytes(), nil
}

// slugifyFilename slugs a file name without its extension. Names with no
// latin letters or digits (a Telugu file name, say) fall back to "image".
func slugifyFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if s := Slugify(base); s != "" {
		return s
	}
	return "image"
}

// ensureUniqueFilename appends a counter until the name is used neither on
// disk nor in the store.
func (a *App) ensureUniqueFilename(ctx context.Context, img *Image) error {
	dir := filepath.Join(a.staticDir, uploadsSubdir)
	base := strings.TrimSuffix(img.Filename, ".jpg")
	candidate := img.Filename
	for counter := 2; ; counter++ {
		_, statErr := os.Stat(filepath.Join(dir, candidate))
		exists, err := a.Store.ImageExists(ctx, candidate)
		if err != nil {
			return err
		}
		if statErr != nil && !exists {
			break
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
	}
	img.Filename = candidate
	return nil
}

func (a *App) handleImageUpload(c echo.Context) error {
	ctx := c.Request().Context()
	file, err := c.FormFile("image")
	if err != nil {
		return c.String(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return c.String(http.StatusBadRequest, "File too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	img, data, err := processImage(src, file.Filename, time.Now())
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid image: "+err.Error())
	}
	if err := a.ensureUniqueFilename(ctx, &img); err != nil {
		return err
	}

	dir := filepath.Join(a.staticDir, uploadsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create uploads dir")
	}
	if err := os.WriteFile(filepath.Join(dir, img.Filename), data, 0o644); err != nil {
		return errors.Wrap(err, "write image")
	}
	if err := a.Store.SaveImage(ctx, img); err != nil {
		return err
	}
	a.log.Info().Str("file", img.Filename).Int("width", img.Width).Msg("image uploaded")
	return a.renderImageList(c)
}

func (a *App) handleImageDelete(c echo.Context) error {
	filename := filepath.Base(c.Param("filename"))
	if filename == "" || filename == "." || filename == "/" {
		return c.String(http.StatusBadRequest, "Filename required")
	}
	// A file that is already gone only leaves its metadata to remove.
	_ = os.Remove(filepath.Join(a.staticDir, uploadsSubdir, filename))
	if err := a.Store.DeleteImage(c.Request().Context(), filename); err != nil {
		return err
	}
	return a.renderImageList(c)
}

func (a *App) handleImageList(c echo.Context) error {
	return a.renderImageList(c)
}

func (a *App) renderImageList(c echo.Context) error {
	images, err := a.Store.ListImages(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminImages(a.adminPage(c, "admin.images"), images))
}
