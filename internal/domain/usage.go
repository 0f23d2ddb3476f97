package domain

import (
	"slices"
	"sort"
)

// AppUsageEntry is the time attributed to one application, or to a website
// domain when the application is a browser.
type AppUsageEntry struct {
	AppName     string  `json:"appName"`
	SecondsUsed float64 `json:"secondsUsed"`
	// Chunks lists the analysis chunk indices that contributed to the entry.
	Chunks []int `json:"chunks,omitempty"`
}

// Aggregate groups entries by exact app name and sums their seconds. The
// result is sorted by descending total; ties keep first-seen order. Applying
// Aggregate to its own output returns an equal list.
func Aggregate(entries []AppUsageEntry) []AppUsageEntry {
	index := make(map[string]int, len(entries))
	out := make([]AppUsageEntry, 0, len(entries))

	for _, e := range entries {
		i, ok := index[e.AppName]
		if !ok {
			index[e.AppName] = len(out)
			out = append(out, AppUsageEntry{
				AppName:     e.AppName,
				SecondsUsed: e.SecondsUsed,
				Chunks:      mergeChunks(nil, e.Chunks),
			})
			continue
		}
		out[i].SecondsUsed += e.SecondsUsed
		out[i].Chunks = mergeChunks(out[i].Chunks, e.Chunks)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].SecondsUsed > out[b].SecondsUsed
	})
	return out
}

// TotalSeconds sums SecondsUsed across entries.
func TotalSeconds(entries []AppUsageEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.SecondsUsed
	}
	return total
}

func mergeChunks(dst, src []int) []int {
	if len(src) == 0 {
		return dst
	}
	merged := append(slices.Clone(dst), src...)
	slices.Sort(merged)
	return slices.Compact(merged)
}
