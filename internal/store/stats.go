// ABOUTME: Dashboard statistics computed from the request list
// ABOUTME: Totals, per-type and per-author counts, and the most recent requests

package store

import (
	"sort"
)

// RecentRequestCount is how many requests DashboardStats.Recent holds
const RecentRequestCount = 10

// unknownKey replaces an empty type or author when counting
const unknownKey = "Unknown"

// Count is a key with the number of requests that carry it
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// DashboardStats summarises requests for the admin dashboard
type DashboardStats struct {
	Total     int        `json:"total"`
	ByType    []Count    `json:"by_type"`
	ByAddedBy []Count    `json:"by_addedby"`
	Recent    []*Request `json:"recent"`
}

// ComputeDashboardStats summarises requests, which must be newest first.
// Count lists are ordered by count descending, then key.
func ComputeDashboardStats(requests []*Request) DashboardStats {
	byType := make(map[string]int)
	byAuthor := make(map[string]int)
	for _, r := range requests {
		byType[orUnknown(string(r.Type))]++
		byAuthor[orUnknown(r.AddedBy)]++
	}

	recent := requests
	if len(recent) > RecentRequestCount {
		recent = recent[:RecentRequestCount]
	}

	return DashboardStats{
		Total:     len(requests),
		ByType:    sortedCounts(byType),
		ByAddedBy: sortedCounts(byAuthor),
		Recent:    append([]*Request{}, recent...),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return unknownKey
	}
	return s
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
