package lqi

import "time"

// Row is a render-ready neighbor with canonical quality and trend.
type Row struct {
	Address   uint16
	Name      string
	LQI       *int
	RSSI      *int
	Quality   Quality
	Score     int
	Direct    bool
	Source    Source
	UpdatedMs uint64
	Trend     Trend
	Points    int
}

// View is the full link-quality view-model. Age fields depend only on the
// wall clock, so a view built on a tick reflects elapsed time without new data.
type View struct {
	Rows       []Row
	Meta       Meta
	HasMeta    bool
	AgeSeconds int64
	Stale      bool
	Hints      []Hint

	// MgmtLQIWithoutRSSI is set when the batch came from Mgmt_Lqi_req, which
	// carries no RSSI, and no row has one.
	MgmtLQIWithoutRSSI bool
}

// View builds a view-model of the most recently ingested batch at now.
func (a *Aggregator) View(now time.Time) View {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := View{
		Meta:    a.meta,
		HasMeta: a.hasMeta,
		Stale:   a.isStaleLocked(now),
		Rows:    make([]Row, 0, len(a.rows)),
	}
	v.AgeSeconds, _ = a.ageSecondsLocked(now)

	anyRSSI := false
	for _, s := range a.rows {
		q := NormalizeQuality(s.Quality)
		if s.RSSI != nil {
			anyRSSI = true
		}
		v.Rows = append(v.Rows, Row{
			Address:   s.Address,
			Name:      s.Name,
			LQI:       copyInt(s.LQI),
			RSSI:      copyInt(s.RSSI),
			Quality:   q,
			Score:     QualityScore(q),
			Direct:    s.Direct,
			Source:    NormalizeSource(s.Source),
			UpdatedMs: s.UpdatedMs,
			Trend:     a.trendLocked(s.Address),
			Points:    len(a.history[s.Address]),
		})
	}
	v.Hints = a.routerHintsLocked(a.rows)
	v.MgmtLQIWithoutRSSI = a.hasMeta && NormalizeSource(a.meta.Source) == SourceMgmtLQI && len(a.rows) > 0 && !anyRSSI
	return v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
