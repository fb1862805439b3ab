package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/cppla/blog/models"
)

const (
	// ProfilePictureSize bounds both dimensions of a stored profile picture.
	ProfilePictureSize = 125
	JPEGQuality        = 90

	defaultMaxUploadBytes = 8 << 20
)

var errUnsupportedExt = errors.New("unsupported file extension")

// MediaHandler turns uploaded images into stored profile thumbnails.
type MediaHandler struct {
	dir      string
	maxBytes int64
	// defaultFile is never deleted by Remove.
	defaultFile string
}

// NewMediaHandler stores pictures under dir. maxBytes <= 0 selects 8 MB.
func NewMediaHandler(dir string, maxBytes int64) *MediaHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &MediaHandler{dir: dir, maxBytes: maxBytes, defaultFile: models.DefaultImageFile}
}

// WithDefaultFile sets the placeholder assigned to new accounts. Names that are
// empty or not a bare file name are ignored.
func (m *MediaHandler) WithDefaultFile(name string) *MediaHandler {
	if name != "" && filepath.Base(name) == name {
		m.defaultFile = name
	}
	return m
}

// DefaultFile is the placeholder picture name.
func (m *MediaHandler) DefaultFile() string {
	return m.defaultFile
}

// StoreProfilePicture resizes the upload to fit 125x125 and writes it under a random name.
// The uploaded bytes themselves are never persisted.
func (m *MediaHandler) StoreProfilePicture(ctx context.Context, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return "", models.NewUnsupportedMediaError(errUnsupportedExt)
	}

	raw, err := io.ReadAll(io.LimitReader(r, m.maxBytes+1))
	if err != nil {
		return "", models.NewInternalError(err)
	}
	if int64(len(raw)) > m.maxBytes {
		return "", models.NewValidationError("picture", fmt.Sprintf("File too large (max %dMB)", m.maxBytes>>20))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", models.NewUnsupportedMediaError(err)
	}
	if format != "jpeg" && format != "png" {
		return "", models.NewUnsupportedMediaError(fmt.Errorf("decoded format %q", format))
	}
	thumb := Thumbnail(src, ProfilePictureSize, ProfilePictureSize)

	var buf bytes.Buffer
	if ext == ".png" {
		err = png.Encode(&buf, thumb)
	} else {
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: JPEGQuality})
	}
	if err != nil {
		return "", models.NewInternalError(err)
	}

	token, err := randomHex(8)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	filename := token + ext
	if err := m.write(filename, buf.Bytes()); err != nil {
		return "", models.NewInternalError(err)
	}
	return filename, nil
}

// Remove deletes a stored picture. The shared placeholder is left alone.
func (m *MediaHandler) Remove(filename string) error {
	if filename == "" || filename == m.defaultFile || filename != filepath.Base(filename) {
		return nil
	}
	err := os.Remove(filepath.Join(m.dir, filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path is where filename lives on disk.
func (m *MediaHandler) Path(filename string) string {
	return filepath.Join(m.dir, filename)
}

func (m *MediaHandler) write(filename string, data []byte) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(m.dir, ".upload-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), m.Path(filename))
}

// Thumbnail scales src down to fit maxW x maxH keeping its aspect ratio. It never upscales.
func Thumbnail(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return src
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	newW := max(int(math.Round(float64(w)*scale)), 1)
	newH := max(int(math.Round(float64(h)*scale)), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
