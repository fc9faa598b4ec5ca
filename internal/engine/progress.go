package engine

import (
	"time"
)

// Progress is reported to the coordinator after every confirmed chunk.
type Progress struct {
	BytesUploaded int64
	TotalBytes    int64
	Percent       float64
	Elapsed       time.Duration
	// SpeedBps is smoothed over a moving window so a single slow or fast
	// chunk does not make the estimate jitter.
	SpeedBps float64
}

type speedPoint struct {
	at    time.Time
	bytes int64
}

// speedWindow tracks cumulative byte counts over a sliding time span and
// derives the transfer rate from the oldest and newest points inside it.
type speedWindow struct {
	span   time.Duration
	points []speedPoint
}

func newSpeedWindow(span time.Duration) *speedWindow {
	return &speedWindow{span: span}
}

// observe records the cumulative confirmed byte count at a point in time.
func (w *speedWindow) observe(at time.Time, bytes int64) {
	w.points = append(w.points, speedPoint{at: at, bytes: bytes})

	// Prune points that fell out of the window, always keeping two so a
	// chunk slower than the span still yields a rate.
	cutoff := at.Add(-w.span)
	for len(w.points) > 2 && w.points[1].at.Before(cutoff) {
		w.points = w.points[1:]
	}
}

// rate returns bytes per second across the retained window, or 0 until two
// points exist.
func (w *speedWindow) rate() float64 {
	if len(w.points) < 2 {
		return 0
	}
	first := w.points[0]
	last := w.points[len(w.points)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(last.bytes-first.bytes) / elapsed
}
