// Package rating submits rating mutations and propagates their side effect
// to the views whose content depends on rating state.
package rating

import (
	"context"

	"nextplay/internal/catalog"
	"nextplay/internal/constants"
	"nextplay/internal/models"
	"nextplay/internal/util"
	"nextplay/internal/viewcache"
)

// DefaultAffects is the set of views invalidated after a confirmed rating.
// Popularity is corpus-wide on the default service and is not touched.
func DefaultAffects() []viewcache.Key {
	return []viewcache.Key{
		viewcache.KeyRecommendations,
		viewcache.KeyLiked,
		viewcache.KeyAllRatings,
	}
}

// AffectsWithPopular extends the dependency set for deployments where the
// service recomputes popularity from ratings.
func AffectsWithPopular() []viewcache.Key {
	return append(DefaultAffects(), viewcache.KeyPopular)
}

// Pipeline submits ratings through the gateway and, on success only,
// invalidates the dependent view entries. Failures leave every cached view
// untouched: a rating is reflected only from confirmed server state.
type Pipeline struct {
	gateway *catalog.Client
	cache   *viewcache.Cache
	affects []viewcache.Key
}

func NewPipeline(gateway *catalog.Client, cache *viewcache.Cache, affects []viewcache.Key) *Pipeline {
	return &Pipeline{gateway: gateway, cache: cache, affects: affects}
}

// Submit records a rating in [1,5] for gameID on behalf of userID.
func (p *Pipeline) Submit(ctx context.Context, userID, gameID string, score float64) error {
	if score < constants.MinRating || score > constants.MaxRating {
		return models.ErrInvalidRating
	}
	if err := p.gateway.SubmitRating(ctx, userID, gameID, score); err != nil {
		return err
	}

	for _, k := range p.affects {
		p.cache.Invalidate(k)
	}
	util.LogInfo("Rating %.1f for game %s accepted, invalidated %d views", score, gameID, len(p.affects))
	return nil
}
