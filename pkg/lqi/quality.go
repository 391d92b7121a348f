package lqi

import "strings"

// Quality is the canonical link-quality label used everywhere past the wire boundary.
type Quality string

const (
	QualityGood    Quality = "good"
	QualityWarn    Quality = "warn"
	QualityBad     Quality = "bad"
	QualityUnknown Quality = "unknown"
)

// Source identifies which device table a snapshot was read from.
type Source string

const (
	SourceMgmtLQI       Source = "mgmt_lqi"
	SourceNeighborTable Source = "neighbor_table"
	SourceUnknown       Source = "unknown"
)

// NormalizeQuality folds the legacy synonyms fair/poor into warn/bad.
// Anything unrecognized becomes unknown.
func NormalizeQuality(raw string) Quality {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "good":
		return QualityGood
	case "warn", "fair":
		return QualityWarn
	case "bad", "poor":
		return QualityBad
	default:
		return QualityUnknown
	}
}

// QualityScore maps a canonical quality onto the 0..3 scale used for trends.
func QualityScore(q Quality) int {
	switch q {
	case QualityGood:
		return 3
	case QualityWarn:
		return 2
	case QualityBad:
		return 1
	default:
		return 0
	}
}

// NormalizeSource maps the wire source tag onto a known Source.
func NormalizeSource(raw string) Source {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mgmt_lqi":
		return SourceMgmtLQI
	case "neighbor_table":
		return SourceNeighborTable
	default:
		return SourceUnknown
	}
}
