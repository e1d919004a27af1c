package validation

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"

	// Decoders for the formats accepted as post images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"campuscreatives/internal/models"
)

// MaxImageBytes is the largest accepted upload.
const MaxImageBytes = 5 * 1024 * 1024

// ImageInfo describes a decoded upload.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Image checks that u is a decodable image of at most MaxImageBytes. It fills
// in the content type from the data when the caller did not set one.
func Image(u *models.Upload) (ImageInfo, error) {
	if u == nil || len(u.Data) == 0 {
		return ImageInfo{}, models.NewValidationError("Please select a valid image file")
	}
	if u.Size() > MaxImageBytes {
		return ImageInfo{}, models.NewValidationError("Image size should be less than 5MB")
	}

	sniffed := http.DetectContentType(u.Data)
	if !strings.HasPrefix(sniffed, "image/") {
		return ImageInfo{}, models.NewValidationError("Please select a valid image file")
	}
	if u.ContentType != "" && !strings.HasPrefix(u.ContentType, "image/") {
		return ImageInfo{}, models.NewValidationError("Please select a valid image file")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return ImageInfo{}, models.NewValidationError(fmt.Sprintf("Image could not be read: %v", err))
	}

	if u.ContentType == "" {
		u.ContentType = sniffed
	}
	if u.Filename == "" {
		u.Filename = "upload." + format
	} else {
		u.Filename = filepath.Base(u.Filename)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
