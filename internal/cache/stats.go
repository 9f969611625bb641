package cache

import "time"

type Stats struct {
	EntryCount        int       `json:"entry_count"`
	MaterializedBytes int64     `json:"materialized_bytes"`
	Hits              int64     `json:"hits"`
	Misses            int64     `json:"misses"`
	Populations       int64     `json:"populations"`
	Evictions         int64     `json:"evictions"`
	HitRatio          float64   `json:"hit_ratio"`
	CompressionRatio  float64   `json:"compression_ratio"`
	LastSweep         time.Time `json:"last_sweep"`
}

func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var materialized, originalSize, compressedSize int64
	for _, e := range s.entries {
		materialized += int64(len(e.entity.Data))
		if e.entity.Materialized() && e.entity.Compression != CompressionNone {
			originalSize += e.entity.SourceSize
			compressedSize += int64(len(e.entity.Data))
		}
	}

	stats := Stats{
		EntryCount:        len(s.entries),
		MaterializedBytes: materialized,
		Hits:              s.hits.Load(),
		Misses:            s.misses.Load(),
		Populations:       s.populations.Load(),
		Evictions:         s.evictions.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(total)
	}
	if originalSize > 0 {
		stats.CompressionRatio = float64(compressedSize) / float64(originalSize)
	}
	if ns := s.lastSweep.Load(); ns != 0 {
		stats.LastSweep = time.Unix(0, ns).UTC()
	}
	return stats
}
