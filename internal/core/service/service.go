// Package service is the query core: it plans bounding-box coverage, fans
// out across geohash prefix partitions, merges pages and read-through
// caches the hot lookups.
package service

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/greglum/map-project/internal/cache"
	"github.com/greglum/map-project/internal/core/keys"
	"github.com/greglum/map-project/internal/core/model"
	"github.com/greglum/map-project/internal/core/observability"
	"github.com/greglum/map-project/internal/geo"
	"github.com/greglum/map-project/internal/store"
	"github.com/greglum/map-project/internal/token"
)

// Cache key builders, shared with the invalidation consumer so deletes hit
// exactly the keys reads populate.
func ListCacheKey(island, district string) string {
	return keys.Cache("features:list", island, district)
}

func FeatureCacheKey(id string) string { return keys.Cache("feature", keys.FeaturePK(id)) }

func IslandsCacheKey() string { return keys.Cache("islands") }

func DistrictsCacheKey(island string) string { return keys.Cache("districts", island) }

// Service orchestrates queries over the storage backend with a read-through
// cache in front of the non-paginated lookups.
type Service struct {
	log   *slog.Logger
	store store.Backend
	cache cache.Interface

	precision    int
	defaultLimit int
	listTTL      time.Duration
	featureTTL   time.Duration
	hierarchyTTL time.Duration
	jitter       time.Duration
}

type Option func(*Service)

// WithPrecision sets the geohash prefix length used for coverage planning.
func WithPrecision(p int) Option {
	return func(s *Service) {
		if p > 0 {
			s.precision = p
		}
	}
}

// WithDefaultLimit sets the page size applied when a request carries none.
func WithDefaultLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithTTLs overrides the cache freshness windows for list, single-feature
// and hierarchy lookups.
func WithTTLs(list, feature, hierarchy time.Duration) Option {
	return func(s *Service) {
		if list > 0 {
			s.listTTL = list
		}
		if feature > 0 {
			s.featureTTL = feature
		}
		if hierarchy > 0 {
			s.hierarchyTTL = hierarchy
		}
	}
}

// WithJitter sets the spread applied around each TTL on write.
func WithJitter(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.jitter = d
		}
	}
}

func New(log *slog.Logger, backend store.Backend, c cache.Interface, opts ...Option) *Service {
	s := &Service{
		log:   log,
		store: backend,
		cache: c,

		precision:    geo.DefaultPrefixLen,
		defaultLimit: model.DefaultLimit,
		listTTL:      6 * time.Hour,
		featureTTL:   time.Hour,
		hierarchyTTL: 24 * time.Hour,
		jitter:       cache.DefaultJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cachedJSON serves key from the cache, or computes it with fetch and writes
// it back with a jittered TTL. Cache failures degrade to a fetch, never to
// an error.
func cachedJSON[T any](s *Service, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	var zero T
	if raw, ok, err := s.cache.Get(key); err != nil {
		s.log.Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			observability.IncCacheHit()
			return out, nil
		}
		s.log.Warn("cache entry undecodable, refetching", "key", key)
	}
	observability.IncCacheMiss()

	out, err := fetch()
	if err != nil {
		return zero, err
	}
	if raw, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(key, raw, cache.JitterTTL(ttl, s.jitter)); err != nil {
			s.log.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}

// ListFeatures returns every feature matching the optional island and
// district filters, sorted by island then district then name. Each filter
// combination is cached as one whole-list entry.
func (s *Service) ListFeatures(ctx context.Context, island, district string) ([]model.Feature, error) {
	return cachedJSON(s, ListCacheKey(island, district), s.listTTL, func() ([]model.Feature, error) {
		records, err := s.scanAll(ctx, store.ScanInput{
			Filter:     regionFilters(model.QueryRequest{Island: island, District: district}),
			Projection: queryProjection(model.DetailSimplified),
		})
		if err != nil {
			return nil, err
		}
		features := make([]model.Feature, 0, len(records))
		for _, rec := range records {
			features = append(features, featureFromRecord(rec))
		}
		sort.Slice(features, func(i, j int) bool {
			a, b := features[i], features[j]
			if a.Island != b.Island {
				return a.Island < b.Island
			}
			if a.District != b.District {
				return a.District < b.District
			}
			return a.Name < b.Name
		})
		return features, nil
	})
}

// GetFeatureByID returns one feature with all three boundary fidelities, or
// nil when no such feature exists. Present features are cached; absence is
// not.
func (s *Service) GetFeatureByID(ctx context.Context, id string) (*model.Feature, error) {
	key := FeatureCacheKey(id)
	if raw, ok, err := s.cache.Get(key); err != nil {
		s.log.Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		var f model.Feature
		if err := json.Unmarshal(raw, &f); err == nil {
			observability.IncCacheHit()
			return &f, nil
		}
	}
	observability.IncCacheMiss()

	rec, found, err := s.store.GetItem(ctx, keys.FeaturePK(id))
	if err != nil {
		s.log.Error("feature lookup failed", "id", id, "error", err)
		return nil, err
	}
	if !found {
		return nil, nil
	}
	f := featureFromRecord(rec)
	if raw, err := json.Marshal(f); err == nil {
		if err := s.cache.Set(key, raw, cache.JitterTTL(s.featureTTL, s.jitter)); err != nil {
			s.log.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return &f, nil
}

// ListIslands returns the distinct island names, sorted.
func (s *Service) ListIslands(ctx context.Context) ([]string, error) {
	return cachedJSON(s, IslandsCacheKey(), s.hierarchyTTL, func() ([]string, error) {
		records, err := s.scanAll(ctx, store.ScanInput{Projection: []string{store.AttrIsland}})
		if err != nil {
			return nil, err
		}
		return distinct(records, store.AttrIsland), nil
	})
}

// ListDistricts returns the distinct district names of one island, sorted.
func (s *Service) ListDistricts(ctx context.Context, island string) ([]string, error) {
	if island == "" {
		return nil, ErrPrecondition
	}
	return cachedJSON(s, DistrictsCacheKey(island), s.hierarchyTTL, func() ([]string, error) {
		var records []store.Record
		var startKey store.Key
		for {
			out, err := s.runQuery(ctx, store.QueryInput{
				Index:        store.IndexByIsland,
				KeyCondition: store.Eq(store.AttrIsland, island),
				Projection:   []string{store.AttrDistrict},
				StartKey:     startKey,
			})
			if err != nil {
				return nil, err
			}
			records = append(records, out.Records...)
			if out.LastKey == nil {
				break
			}
			startKey = out.LastKey
		}
		return distinct(records, store.AttrDistrict), nil
	})
}

// QueryByBoundingBox plans geohash prefix coverage for the box and fans out
// one bounded sub-query per prefix, merging pages up to the requested limit.
// The continuation token resumes each prefix's first sub-query; the last
// non-empty continuation key observed becomes the next token.
func (s *Service) QueryByBoundingBox(ctx context.Context, req model.QueryRequest, tok string) (*model.QueryResponse, error) {
	if req.Northeast == nil || req.Southwest == nil {
		return nil, ErrPrecondition
	}

	started := time.Now()
	limit := s.pageLimit(req)
	prefixes := geo.CoverPrefixes(*req.Southwest, *req.Northeast, s.precision)
	observability.ObservePrefixFanout(len(prefixes))

	startKey := token.Decode(tok)
	projection := queryProjection(req.Detail)
	filters := regionFilters(req)

	resp := &model.QueryResponse{Items: make([]model.Feature, 0, limit)}
	var lastKey store.Key

	for _, prefix := range prefixes {
		if len(resp.Items) >= limit {
			break
		}
		out, err := s.runQuery(ctx, store.QueryInput{
			Index:        store.IndexByGeohashPrefix,
			KeyCondition: store.Eq(store.AttrGeohashPrefix, prefix),
			Filter:       filters,
			Projection:   projection,
			Limit:        limit - len(resp.Items),
			StartKey:     startKey,
		})
		if err != nil {
			return nil, err
		}

		for _, rec := range out.Records {
			f := featureFromRecord(rec)
			if req.ZoomLevel > 0 && !visibleAt(f, req.ZoomLevel) {
				continue
			}
			resp.Items = append(resp.Items, f)
			if len(resp.Items) >= limit {
				break
			}
		}

		if out.LastKey != nil {
			lastKey = out.LastKey
		}
		resp.Metrics.ScannedCount += out.ScannedCount
		resp.Metrics.ConsumedCapacity += out.ConsumedCapacity
	}

	resp.Count = len(resp.Items)
	resp.NextToken = token.Encode(lastKey)
	resp.Metrics.Elapsed = time.Since(started)

	s.log.Debug("bbox query done",
		"prefixes", len(prefixes),
		"count", resp.Count,
		"scanned", resp.Metrics.ScannedCount,
		"more", resp.NextToken != "")
	return resp, nil
}

// QueryByZoomLevel returns one page of the features authored for exactly the
// given zoom level, with the slim simplified-geometry projection.
func (s *Service) QueryByZoomLevel(ctx context.Context, req model.QueryRequest, tok string) (*model.QueryResponse, error) {
	if req.ZoomLevel <= 0 {
		return nil, ErrPrecondition
	}

	started := time.Now()
	limit := s.pageLimit(req)

	out, err := s.runQuery(ctx, store.QueryInput{
		Index:        store.IndexByZoomLevel,
		KeyCondition: store.EqN(store.AttrZoomLevel, strconv.Itoa(req.ZoomLevel)),
		Filter:       regionFilters(req),
		Projection:   zoomProjection,
		Limit:        limit,
		StartKey:     token.Decode(tok),
	})
	if err != nil {
		return nil, err
	}

	resp := &model.QueryResponse{Items: make([]model.Feature, 0, len(out.Records))}
	for _, rec := range out.Records {
		resp.Items = append(resp.Items, featureFromRecord(rec))
	}
	resp.Count = len(resp.Items)
	resp.NextToken = token.Encode(out.LastKey)
	resp.Metrics = model.QueryMetrics{
		Elapsed:          time.Since(started),
		ScannedCount:     out.ScannedCount,
		ConsumedCapacity: out.ConsumedCapacity,
	}
	return resp, nil
}

// MapFeaturesForBoundingBox returns one page of slim map-rendering
// projections for the box. Annotation documents that fail to parse are
// dropped from the projection, not the feature.
func (s *Service) MapFeaturesForBoundingBox(ctx context.Context, req model.QueryRequest) ([]model.MapFeature, error) {
	resp, err := s.QueryByBoundingBox(ctx, req, "")
	if err != nil {
		return nil, err
	}
	out := make([]model.MapFeature, 0, len(resp.Items))
	for i := range resp.Items {
		f := &resp.Items[i]
		boundary := req.Detail.Boundary(f)
		if boundary == "" {
			// fall back so a feature missing the requested fidelity still renders
			boundary = f.SimplifiedBoundaries
		}
		out = append(out, model.MapFeature{
			ID:         f.ID,
			Name:       f.Name,
			District:   f.District,
			Boundary:   boundary,
			Annotation: parseAnnotation(f.AnnotationPoint),
			Style:      f.Style,
		})
	}
	return out, nil
}

// zoomProjection is the slim attribute set for zoom-level pages: identity,
// placement and the simplified geometry only.
var zoomProjection = []string{
	store.AttrPK,
	store.AttrHierarchySK,
	store.AttrName,
	store.AttrIsland,
	store.AttrDistrict,
	store.AttrGeohash,
	store.AttrZoomLevel,
	store.AttrMinZoom,
	store.AttrMaxZoom,
	store.AttrCentroidLat,
	store.AttrCentroidLng,
	store.AttrDisplayPriority,
	store.AttrSimplified,
}

func (s *Service) pageLimit(req model.QueryRequest) int {
	if req.Limit <= 0 {
		return s.defaultLimit
	}
	return req.EffectiveLimit()
}

func regionFilters(req model.QueryRequest) []store.Condition {
	var filters []store.Condition
	if req.Island != "" {
		filters = append(filters, store.Eq(store.AttrIsland, req.Island))
	}
	if req.District != "" {
		filters = append(filters, store.Eq(store.AttrDistrict, req.District))
	}
	return filters
}

// visibleAt reports whether the feature is authored to render at the given
// zoom. A zero bound means unbounded on that side.
func visibleAt(f model.Feature, zoom int) bool {
	if f.MinZoom > 0 && zoom < f.MinZoom {
		return false
	}
	if f.MaxZoom > 0 && zoom > f.MaxZoom {
		return false
	}
	return true
}

func (s *Service) runQuery(ctx context.Context, in store.QueryInput) (store.Output, error) {
	out, err := s.store.Query(ctx, in)
	if err != nil {
		s.log.Error("backend query failed", "index", string(in.Index), "error", err)
		return store.Output{}, err
	}
	return out, nil
}

func (s *Service) scanAll(ctx context.Context, in store.ScanInput) ([]store.Record, error) {
	var records []store.Record
	for {
		out, err := s.store.Scan(ctx, in)
		if err != nil {
			s.log.Error("backend scan failed", "error", err)
			return nil, err
		}
		records = append(records, out.Records...)
		if out.LastKey == nil {
			return records, nil
		}
		in.StartKey = out.LastKey
	}
}

func distinct(records []store.Record, attr string) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, rec := range records {
		v := store.GetString(rec, attr)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
