package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/icza/mjpeg"
)

const DefaultFPS = 20

// FrameSource is anything that can produce camera frames.
type FrameSource interface {
	CaptureFrame(ctx context.Context) (image.Image, error)
}

// Recorder appends frames from a source to an MJPEG AVI file until stopped.
type Recorder struct {
	writer mjpeg.AviWriter
	rec    Record
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	frames   int
	failures int
	stopped  bool
}

// StartRecorder opens path for writing and starts pulling frames at fps. The
// first frame is read synchronously to size the video.
func StartRecorder(src FrameSource, path, cameraName string, fps int) (*Recorder, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}

	first, err := src.CaptureFrame(context.Background())
	if err != nil {
		return nil, fmt.Errorf("error reading first frame for recording: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating directory for %s: %w", path, err)
	}

	b := first.Bounds()
	writer, err := mjpeg.New(path, int32(b.Dx()), int32(b.Dy()), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("error creating video %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder{
		writer: writer,
		rec: Record{
			Path:      path,
			Camera:    cameraName,
			Timestamp: time.Now(),
			Type:      TypeVideo,
			Markers:   []Marker{},
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := r.addFrame(first); err != nil {
		cancel()
		writer.Close() //nolint:errcheck
		return nil, err
	}

	go r.run(ctx, src, time.Second/time.Duration(fps))

	slog.Info("recording started", "path", path, "fps", fps)
	return r, nil
}

func (r *Recorder) addFrame(img image.Image) error {
	data, err := EncodeJPEG(img)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.AddFrame(data); err != nil {
		return fmt.Errorf("error adding frame to %s: %w", r.rec.Path, err)
	}
	r.frames++
	return nil
}

func (r *Recorder) run(ctx context.Context, src FrameSource, interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, err := src.CaptureFrame(ctx)
			if err == nil {
				err = r.addFrame(img)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				r.mu.Lock()
				r.failures++
				r.mu.Unlock()
				slog.Warn("dropped video frame", "path", r.rec.Path, "error", err)
			}
		}
	}
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Recorder) Path() string {
	return r.rec.Path
}

// Stop ends the recording and finalizes the file.
func (r *Recorder) Stop() (Record, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return r.rec, nil
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		return r.rec, fmt.Errorf("error finalizing video %s: %w", r.rec.Path, err)
	}

	slog.Info("recording stopped", "path", r.rec.Path, "frames", r.frames, "dropped", r.failures)
	return r.rec, nil
}
