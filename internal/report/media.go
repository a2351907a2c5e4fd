package report

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"

	"camqc-backend/internal/capture"
	"camqc-backend/internal/core/utils"
)

// Media is a capture checked for embedding.
type Media struct {
	capture.Record
	Video   bool
	Missing bool
	Width   int
	Height  int
	Format  string
	Err     error
}

func (m Media) Embeddable() bool {
	return !m.Video && !m.Missing && m.Err == nil && (m.Format == "jpeg" || m.Format == "png")
}

func inspect(rec capture.Record) (Media, error) {
	m := Media{Record: rec, Video: capture.IsVideo(rec)}

	if _, err := os.Stat(rec.Path); err != nil {
		m.Missing = true
		return m, nil
	}
	if m.Video {
		return m, nil
	}

	f, err := os.Open(rec.Path)
	if err != nil {
		m.Err = err
		return m, nil
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		m.Err = fmt.Errorf("error reading %s: %w", filepath.Base(rec.Path), err)
		return m, nil
	}
	m.Width, m.Height, m.Format = cfg.Width, cfg.Height, format
	return m, nil
}

// PrepareMedia checks every capture on disk. Missing files are flagged so the
// generators can skip them.
func PrepareMedia(records []capture.Record, jobs int) []Media {
	if jobs <= 0 {
		jobs = 4
	}

	results := utils.RunInPool(inspect, records, jobs)

	media := make([]Media, 0, len(results))
	for _, res := range results {
		if res.Result.Missing {
			slog.Warn("skipping missing media in report", "path", res.Result.Path)
		} else if res.Result.Err != nil {
			slog.Warn("media cannot be embedded in report", "path", res.Result.Path, "error", res.Result.Err)
		}
		media = append(media, res.Result)
	}
	return media
}

func imageCount(media []Media) int {
	n := 0
	for _, m := range media {
		if !m.Video && !m.Missing {
			n++
		}
	}
	return n
}

// fit scales w x h into maxW x maxH keeping the aspect ratio.
func fit(w, h int, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	scale := min(maxW/float64(w), maxH/float64(h))
	return float64(w) * scale, float64(h) * scale
}
