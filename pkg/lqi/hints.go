package lqi

// HintKind classifies a router placement advisory.
type HintKind string

const (
	HintWeakLink  HintKind = "weak_link"
	HintDegrading HintKind = "degrading"
	HintManyWeak  HintKind = "many_weak"
)

const (
	maxWeakHints      = 2
	maxDegradingHints = 2
	manyWeakThreshold = 3
)

// Hint is a structured advisory. Count is only set for HintManyWeak.
type Hint struct {
	Kind    HintKind
	Address uint16
	Name    string
	Quality Quality
	Count   int
}

// RouterHints suggests where a router would help: weak links first, then
// degrading ones, then one aggregate hint when many links are weak.
func (a *Aggregator) RouterHints(rows []NeighborSnapshot) []Hint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.routerHintsLocked(rows)
}

func (a *Aggregator) routerHintsLocked(rows []NeighborSnapshot) []Hint {
	var weak, degrading []Hint
	badCount := 0

	for _, row := range rows {
		q := NormalizeQuality(row.Quality)
		if q == QualityBad {
			badCount++
			if len(weak) < maxWeakHints {
				weak = append(weak, Hint{Kind: HintWeakLink, Address: row.Address, Name: row.Name, Quality: q})
			}
		}
		if (q == QualityWarn || q == QualityBad) && len(degrading) < maxDegradingHints {
			if a.trendLocked(row.Address) == TrendDegrading {
				degrading = append(degrading, Hint{Kind: HintDegrading, Address: row.Address, Name: row.Name, Quality: q})
			}
		}
	}

	hints := append(weak, degrading...)
	if badCount >= manyWeakThreshold {
		hints = append(hints, Hint{Kind: HintManyWeak, Count: badCount})
	}
	if len(hints) > a.cfg.MaxHints {
		hints = hints[:a.cfg.MaxHints]
	}
	return hints
}
