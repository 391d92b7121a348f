package utils

import (
	"fmt"
	"sort"
	"strconv"

	"gateway-console/pkg/api"
)

type KindCount struct {
	Kind  string
	Count uint64
}

// SortKindsByCount sorts message kinds by count (descending), then by kind (ascending)
func SortKindsByCount(byKind map[string]uint64) []KindCount {
	var kindCounts []KindCount
	for kind, count := range byKind {
		kindCounts = append(kindCounts, KindCount{Kind: kind, Count: count})
	}

	sort.Slice(kindCounts, func(i, j int) bool {
		if kindCounts[i].Count == kindCounts[j].Count {
			return kindCounts[i].Kind < kindCounts[j].Kind
		}
		return kindCounts[i].Count > kindCounts[j].Count
	})

	return kindCounts
}

// FormatNumber formats a number with comma separators for readability
func FormatNumber(n uint64) string {
	str := strconv.FormatUint(n, 10)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// FormatShortAddr renders a 16-bit network address as 0xABCD.
func FormatShortAddr(addr uint16) string {
	return fmt.Sprintf("0x%04X", addr)
}

// SortNetworksByRSSI returns a copy ordered strongest first. Equal RSSI keeps
// the device's order.
func SortNetworksByRSSI(networks []api.ScanNetwork) []api.ScanNetwork {
	out := make([]api.ScanNetwork, len(networks))
	copy(out, networks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RSSI > out[j].RSSI
	})
	return out
}

// FormatAge renders whole seconds as 45s, 3m 12s or 2h 5m.
func FormatAge(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}
