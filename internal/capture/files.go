package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	TimestampLayout = "20060102_150405"
	UnknownSerial   = "unknown"
	ImagesDirName   = "captured_images"
	sidecarSuffix   = "_metadata.json"
	jpegQuality     = 95
)

var unsafeChars = strings.NewReplacer("/", "_", `\`, "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_")

// SafeName makes a serial or step title usable as a path component.
func SafeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = unsafeChars.Replace(s)
	if s == "." || s == ".." {
		return "_"
	}
	return s
}

func SerialOrUnknown(serial string) string {
	if s := SafeName(serial); s != "" {
		return s
	}
	return UnknownSerial
}

// OutputDir is the per-serial media directory under root.
func OutputDir(root, serial string) string {
	return filepath.Join(root, ImagesDirName, SerialOrUnknown(serial))
}

func ImageFilename(serial, stepTitle string, t time.Time) string {
	ts := t.Format(TimestampLayout)
	if title := SafeName(stepTitle); title != "" {
		return fmt.Sprintf("%s_%s_%s.jpg", SerialOrUnknown(serial), title, ts)
	}
	return fmt.Sprintf("%s_%s.jpg", SerialOrUnknown(serial), ts)
}

func VideoFilename(serial string, t time.Time) string {
	return fmt.Sprintf("%s_%s.avi", SerialOrUnknown(serial), t.Format(TimestampLayout))
}

// UniquePath appends _2, _3, ... to the file stem until the path is unused.
func UniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("error encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func SaveJPEG(path string, img image.Image) error {
	data, err := EncodeJPEG(img)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing image %s: %w", path, err)
	}
	return nil
}

func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error decoding image %s: %w", path, err)
	}
	return img, nil
}

func SidecarPath(mediaPath string) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + sidecarSuffix
}

func WriteSidecar(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding metadata: %w", err)
	}
	if err := os.WriteFile(SidecarPath(rec.Path), data, 0644); err != nil {
		return fmt.Errorf("error writing metadata for %s: %w", rec.Path, err)
	}
	return nil
}

// ReadSidecar loads the metadata stored next to a media file. A missing
// sidecar is not an error; a corrupted one is logged and ignored.
func ReadSidecar(mediaPath string) (Record, bool) {
	data, err := os.ReadFile(SidecarPath(mediaPath))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("error reading capture metadata", "path", mediaPath, "error", err)
		}
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("corrupted capture metadata", "path", mediaPath, "error", err)
		return Record{}, false
	}
	rec.Path = mediaPath
	return rec, true
}

// RemoveMedia deletes a media file together with its sidecar.
func RemoveMedia(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing %s: %w", path, err)
	}
	if err := os.Remove(SidecarPath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error removing capture metadata", "path", path, "error", err)
	}
	return nil
}
