// Package attach validates local files picked as an item's thumbnail or
// attachment before anything is sent to the backend.
package attach

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder for DecodeConfig
	_ "image/jpeg" // register decoder for DecodeConfig
	_ "image/png"  // register decoder for DecodeConfig
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/todopad/todopad/internal/config"
)

var (
	// ErrNotImage rejects a thumbnail that is not an image.
	ErrNotImage = errors.New("thumbnail is not an image")
	// ErrNotDocument rejects an attachment that is not an application/* file.
	ErrNotDocument = errors.New("attachment is not a document")
)

// Notice turns a validation error into the message shown to the user.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotImage):
		return "Please select an image file"
	case errors.Is(err, ErrNotDocument):
		return "Please select a valid file"
	default:
		return err.Error()
	}
}

const sniffLen = 512

// Preview summarises a selected file for display next to the form.
type Preview struct {
	Path      string
	Name      string
	Size      int64
	MediaType string
	Width     int // zero unless the file is a decodable image
	Height    int
}

// String renders a one-line preview, e.g. "cat.png 640×480 12.0 KiB".
func (p Preview) String() string {
	parts := []string{p.Name}
	if p.Width > 0 && p.Height > 0 {
		parts = append(parts, fmt.Sprintf("%d×%d", p.Width, p.Height))
	}
	parts = append(parts, formatBytes(p.Size))
	return strings.Join(parts, " ")
}

// ValidateThumbnail checks that path names a readable image.
func ValidateThumbnail(path string) (Preview, error) {
	p, err := inspect(path)
	if err != nil {
		return Preview{}, err
	}
	if !strings.HasPrefix(p.MediaType, "image/") {
		return Preview{}, ErrNotImage
	}
	if w, h, err := imageSize(p.Path); err == nil {
		p.Width, p.Height = w, h
	}
	return p, nil
}

// ValidateFile checks that path names a readable application/* document.
func ValidateFile(path string) (Preview, error) {
	p, err := inspect(path)
	if err != nil {
		return Preview{}, err
	}
	if !strings.HasPrefix(p.MediaType, "application/") {
		return Preview{}, ErrNotDocument
	}
	return p, nil
}

// MediaType returns the media type for path: the extension mapping when
// known, otherwise a content sniff.
func MediaType(path string) (string, error) {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		mediaType, _, err := mime.ParseMediaType(byExt)
		if err == nil {
			return mediaType, nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read file: %w", err)
	}
	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(buf[:n]))
	if err != nil {
		return "", fmt.Errorf("detect media type: %w", err)
	}
	return mediaType, nil
}

func inspect(path string) (Preview, error) {
	if strings.TrimSpace(path) == "" {
		return Preview{}, fmt.Errorf("no file selected")
	}
	resolved, err := config.ExpandPath(path)
	if err != nil {
		return Preview{}, err
	}
	st, err := os.Stat(resolved)
	if err != nil {
		return Preview{}, fmt.Errorf("stat file: %w", err)
	}
	if st.IsDir() {
		return Preview{}, fmt.Errorf("%s is a directory", filepath.Base(resolved))
	}
	mediaType, err := MediaType(resolved)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Path:      resolved,
		Name:      filepath.Base(resolved),
		Size:      st.Size(),
		MediaType: mediaType,
	}, nil
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
