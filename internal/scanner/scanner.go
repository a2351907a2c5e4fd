package scanner

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultInterval = 100 * time.Millisecond
	stopTimeout     = 500 * time.Millisecond
	historySize     = 50
)

// Source is the camera the scanner reads from.
type Source interface {
	CaptureFrame(ctx context.Context) (image.Image, error)
}

// ErrStopped is returned by Start once Stop has been called. A scanner is
// single use; build a new one for the next camera.
var ErrStopped = errors.New("scanner has been stopped")

type Detection struct {
	Text      string
	Format    string
	Timestamp time.Time
}

// Scanner polls a camera in its own goroutine and remembers the most recent
// distinct code. Callers poll Latest; there is no queue, newer results simply
// replace older ones.
type Scanner struct {
	decoder  Decoder
	interval time.Duration

	mu       sync.Mutex
	source   Source
	latest   *Detection
	history  []Detection
	count    int
	running  bool
	stopped  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(source Source, decoder Decoder, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if decoder == nil {
		decoder = NewZXingDecoder()
	}
	return &Scanner{source: source, decoder: decoder, interval: interval}
}

// Start launches the polling goroutine. Starting a running scanner is a no-op.
func (s *Scanner) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	return nil
}

func (s *Scanner) currentSource() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Scanner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for ctx.Err() == nil {
		src := s.currentSource()
		if src == nil {
			return
		}

		frame, err := src.CaptureFrame(ctx)
		if err != nil || frame == nil {
			if !sleep(ctx, s.interval) {
				return
			}
			continue
		}

		symbols, err := s.decoder.Decode(frame)
		if err != nil {
			slog.Warn("barcode decode failed", "error", err)
		}
		for _, sym := range symbols {
			s.record(sym)
		}

		if !sleep(ctx, s.interval) {
			return
		}
	}
}

func (s *Scanner) record(sym Symbol) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest != nil && s.latest.Text == sym.Text {
		return
	}

	d := Detection{Text: sym.Text, Format: sym.Format, Timestamp: time.Now()}
	s.latest = &d
	s.count++
	s.history = append(s.history, d)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	slog.Info("barcode detected", "text", d.Text, "format", d.Format)
}

// Latest returns the most recent distinct detection.
func (s *Scanner) Latest() (Detection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Detection{}, false
	}
	return *s.latest, true
}

// Count is the number of distinct detections so far.
func (s *Scanner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Since returns the detections made after t.
func (s *Scanner) Since(t time.Time) []Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Detection
	for _, d := range s.history {
		if d.Timestamp.After(t) {
			out = append(out, d)
		}
	}
	return out
}

func (s *Scanner) Detections() []Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Detection(nil), s.history...)
}

func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done is closed when the polling goroutine has exited. It is nil before Start.
func (s *Scanner) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop detaches the camera, cancels polling and waits briefly for the
// goroutine to exit. A read blocked in the driver may outlive the wait; the
// goroutine then exits on its next check.
func (s *Scanner) Stop() {
	s.mu.Lock()
	wasStopped := s.stopped
	s.stopped = true
	s.source = nil
	if !s.running || wasStopped {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		slog.Warn("barcode scanner did not stop in time")
	}
}
