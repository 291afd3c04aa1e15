package marketdata

import (
	"time"

	"github.com/oddslab/parity-arb/pkg/cache"
	"github.com/oddslab/parity-arb/pkg/types"
)

// metadataTTL keeps presentation fields alive across cycles even when a
// later events response omits them.
const metadataTTL = 24 * time.Hour

// Metadata is the per-market presentation and fee subset worth keeping
// between cycles.
type Metadata struct {
	Question    string
	Slug        string
	Outcomes    []string
	TakerFeeBps int
}

// MetadataCache persists market metadata between cycles. The events API
// sometimes returns partial market objects; cached fields fill the gaps so
// the control plane keeps showing questions and outcome labels.
type MetadataCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewMetadataCache wraps a cache for market metadata.
func NewMetadataCache(c cache.Cache) *MetadataCache {
	return &MetadataCache{
		cache: c,
		ttl:   metadataTTL,
	}
}

// Fill restores missing presentation fields from the cache, then stores the
// merged metadata back, refreshing the TTL. A nil receiver or cache is a
// no-op so the client works without one.
func (mc *MetadataCache) Fill(m *types.Market) {
	if mc == nil || mc.cache == nil {
		return
	}

	key := "metadata:" + m.ID

	if cached, ok := mc.cache.Get(key); ok {
		if meta, ok := cached.(*Metadata); ok {
			if m.Question == "" {
				m.Question = meta.Question
			}
			if m.Slug == "" {
				m.Slug = meta.Slug
			}
			if len(m.Outcomes) == 0 {
				m.Outcomes = meta.Outcomes
			}
			if m.TakerFeeBps == 0 {
				m.TakerFeeBps = meta.TakerFeeBps
			}
		}
	}

	mc.cache.Set(key, &Metadata{
		Question:    m.Question,
		Slug:        m.Slug,
		Outcomes:    m.Outcomes,
		TakerFeeBps: m.TakerFeeBps,
	}, mc.ttl)
}
