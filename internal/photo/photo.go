// Package photo turns an uploaded profile picture into the base64 PNG
// thumbnail stored with a user.
package photo

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Limits applied to profile photos.
const (
	MaxBytes  = 10 * 1024 * 1024
	MaxWidth  = 300
	MaxHeight = 400
)

var (
	// ErrTooLarge is returned for files over MaxBytes.
	ErrTooLarge = errors.New("la imagen excede los 10 MB permitidos")

	// ErrUnsupported is returned for files that are not PNG, JPEG or WebP.
	ErrUnsupported = errors.New("formato de imagen no soportado")
)

// Result is a prepared photo.
type Result struct {
	Base64         string
	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	SizeKB         float64
}

// Summary describes the result the way the registration form reports it.
func (r Result) Summary() string {
	return fmt.Sprintf("Resolución original: %dx%d px. Resolución final: %dx%d px. Tamaño final: %.1f KB.",
		r.OriginalWidth, r.OriginalHeight, r.Width, r.Height, r.SizeKB)
}

// Prepare reads the image at path and returns its thumbnail.
func Prepare(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if info.Size() > MaxBytes {
		return nil, ErrTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	return PrepareBytes(data, filepath.Base(path))
}

// PrepareBytes decodes data, scales it down to fit MaxWidth x MaxHeight
// keeping its aspect ratio, and encodes it as base64 PNG. name is used to
// guess the format when sniffing fails.
func PrepareBytes(data []byte, name string) (*Result, error) {
	if len(data) > MaxBytes {
		return nil, ErrTooLarge
	}

	img, err := decode(data, name)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	res := &Result{OriginalWidth: b.Dx(), OriginalHeight: b.Dy()}

	if b.Dx() > MaxWidth || b.Dy() > MaxHeight {
		img = imaging.Fit(img, MaxWidth, MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}

	res.Width = img.Bounds().Dx()
	res.Height = img.Bounds().Dy()
	res.SizeKB = math.Round(float64(buf.Len())/1024*10) / 10
	res.Base64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	return res, nil
}

// decode sniffs the content type of data and falls back to the extension
// of name.
func decode(data []byte, name string) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decoding photo: %w", ErrUnsupported)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)

	format := ""
	switch {
	case strings.Contains(ct, "jpeg"):
		format = "jpeg"
	case strings.Contains(ct, "png"):
		format = "png"
	case strings.Contains(ct, "webp"):
		format = "webp"
	default:
		switch strings.ToLower(filepath.Ext(name)) {
		case ".jpg", ".jpeg":
			format = "jpeg"
		case ".png":
			format = "png"
		case ".webp":
			format = "webp"
		default:
			return nil, fmt.Errorf("decoding photo %s (%s): %w", name, ct, ErrUnsupported)
		}
	}

	var img image.Image
	var err error
	if format == "webp" {
		img, err = webp.Decode(bytes.NewReader(data))
	} else {
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s photo: %w", format, err)
	}
	return img, nil
}
