package lqi

import (
	"sync"
	"time"
)

// Trend describes how a neighbor's quality moved across the retained window.
type Trend string

const (
	TrendNotApplicable Trend = "not_applicable"
	TrendImproving     Trend = "improving"
	TrendDegrading     Trend = "degrading"
	TrendStable        Trend = "stable"
)

// Config for aggregator windows
type Config struct {
	HistoryWindow  time.Duration
	StaleThreshold time.Duration
	MaxHints       int
}

func DefaultConfig() Config {
	return Config{
		HistoryWindow:  15 * time.Minute,
		StaleThreshold: 60 * time.Second,
		MaxHints:       4,
	}
}

// HistoryPoint is one scored observation of a neighbor.
type HistoryPoint struct {
	At    time.Time
	Score int
}

// Aggregator keeps a bounded quality history per short address plus the
// wall-clock anchor used for staleness.
type Aggregator struct {
	mu  sync.Mutex
	cfg Config

	history map[uint16][]HistoryPoint

	// Current batch
	rows           []NeighborSnapshot
	meta           Meta
	hasMeta        bool
	lastReceivedAt time.Time
}

// NewAggregator creates an empty aggregator
func NewAggregator(cfg Config) *Aggregator {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultConfig().HistoryWindow
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultConfig().StaleThreshold
	}
	if cfg.MaxHints <= 0 {
		cfg.MaxHints = DefaultConfig().MaxHints
	}
	return &Aggregator{
		cfg:     cfg,
		history: make(map[uint16][]HistoryPoint),
	}
}

// Ingest records one batch observed at now. Rows with a zero address are
// ignored for history. Addresses missing from the batch age out on the same
// window and are forgotten once empty.
func (a *Aggregator) Ingest(rows []NeighborSnapshot, meta Meta, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-a.cfg.HistoryWindow)
	seen := make(map[uint16]struct{}, len(rows))

	for _, row := range rows {
		if row.Address == 0 {
			continue
		}
		seen[row.Address] = struct{}{}
		points := append(a.history[row.Address], HistoryPoint{
			At:    now,
			Score: QualityScore(NormalizeQuality(row.Quality)),
		})
		a.history[row.Address] = trimBefore(points, cutoff)
	}

	for addr, points := range a.history {
		if _, ok := seen[addr]; ok {
			continue
		}
		points = trimBefore(points, cutoff)
		if len(points) == 0 {
			delete(a.history, addr)
			continue
		}
		a.history[addr] = points
	}

	a.rows = append(a.rows[:0:0], rows...)
	a.updateMetaLocked(meta, now)
}

// UpdateMeta records batch metadata without new rows. The wall-clock anchor
// moves only when the device counter changes or on the first call.
func (a *Aggregator) UpdateMeta(meta Meta, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateMetaLocked(meta, now)
}

func (a *Aggregator) updateMetaLocked(meta Meta, now time.Time) {
	if !a.hasMeta || meta.UpdatedMs != a.meta.UpdatedMs {
		a.lastReceivedAt = now
	}
	a.meta = meta
	a.hasMeta = true
}

// Trend compares the newest and oldest retained scores for addr.
func (a *Aggregator) Trend(addr uint16) Trend {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.trendLocked(addr)
}

func (a *Aggregator) trendLocked(addr uint16) Trend {
	points := a.history[addr]
	if len(points) < 2 {
		return TrendNotApplicable
	}
	delta := points[len(points)-1].Score - points[0].Score
	switch {
	case delta >= 1:
		return TrendImproving
	case delta <= -1:
		return TrendDegrading
	default:
		return TrendStable
	}
}

// History returns a copy of the retained points for addr.
func (a *Aggregator) History(addr uint16) []HistoryPoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	points := a.history[addr]
	out := make([]HistoryPoint, len(points))
	copy(out, points)
	return out
}

// Tracked reports how many addresses currently hold history.
func (a *Aggregator) Tracked() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.history)
}

// AgeSeconds is the whole seconds since the last batch was received,
// clamped at zero. ok is false when nothing was ever received.
func (a *Aggregator) AgeSeconds(now time.Time) (age int64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ageSecondsLocked(now)
}

func (a *Aggregator) ageSecondsLocked(now time.Time) (int64, bool) {
	if !a.hasMeta {
		return 0, false
	}
	elapsed := now.Sub(a.lastReceivedAt)
	if elapsed < 0 {
		return 0, true
	}
	return int64(elapsed / time.Second), true
}

// IsStale is true when nothing was received yet or the last batch is older
// than the stale threshold. Exactly the threshold is still fresh.
func (a *Aggregator) IsStale(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isStaleLocked(now)
}

func (a *Aggregator) isStaleLocked(now time.Time) bool {
	if !a.hasMeta {
		return true
	}
	return now.Sub(a.lastReceivedAt) > a.cfg.StaleThreshold
}

// Meta returns the current batch metadata, if any was received.
func (a *Aggregator) Meta() (Meta, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meta, a.hasMeta
}

func trimBefore(points []HistoryPoint, cutoff time.Time) []HistoryPoint {
	for len(points) > 0 && points[0].At.Before(cutoff) {
		points = points[1:]
	}
	return points
}
