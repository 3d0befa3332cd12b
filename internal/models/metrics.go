package models

import "time"

// SystemMetrics is an aggregated snapshot exposed on the admin surface.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ResolutionsTotal         uint64    `json:"resolutions_total"`
	AverageResolutionMs      float64   `json:"average_resolution_ms"`
	ConflictsRejected        uint64    `json:"conflicts_rejected"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
