package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greglum/map-project/internal/core/model"
	"github.com/greglum/map-project/internal/store"
	"github.com/greglum/map-project/internal/token"
)

type fakeBackend struct {
	items   map[string]store.Record
	queries []store.QueryInput
	scans   []store.ScanInput
	getPKs  []string

	queryFn func(store.QueryInput) (store.Output, error)
	scanFn  func(store.ScanInput) (store.Output, error)
}

func (f *fakeBackend) GetItem(_ context.Context, pk string) (store.Record, bool, error) {
	f.getPKs = append(f.getPKs, pk)
	rec, ok := f.items[pk]
	return rec, ok, nil
}

func (f *fakeBackend) Query(_ context.Context, in store.QueryInput) (store.Output, error) {
	f.queries = append(f.queries, in)
	if f.queryFn != nil {
		return f.queryFn(in)
	}
	return store.Output{}, nil
}

func (f *fakeBackend) Scan(_ context.Context, in store.ScanInput) (store.Output, error) {
	f.scans = append(f.scans, in)
	if f.scanFn != nil {
		return f.scanFn(in)
	}
	return store.Output{}, nil
}

type fakeCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	gets    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(key string) ([]byte, bool, error) {
	c.gets++
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeCache) Set(key string, val []byte, ttl time.Duration) error {
	c.sets++
	c.entries[key] = val
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Del(keys ...string) error {
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func newTestService(b store.Backend, opts ...Option) *Service {
	return New(slog.New(slog.DiscardHandler), b, newFakeCache(), opts...)
}

func feature(id, name, island, district string, zoom, minZoom, maxZoom int) model.Feature {
	return model.Feature{
		ID:        id,
		Name:      name,
		Island:    island,
		District:  district,
		ZoomLevel: zoom,
		MinZoom:   minZoom,
		MaxZoom:   maxZoom,
		Style:     model.DefaultStyle(),
	}
}

func TestQueryByBoundingBoxValidation(t *testing.T) {
	svc := newTestService(&fakeBackend{})

	_, err := svc.QueryByBoundingBox(context.Background(), model.QueryRequest{
		Northeast: &model.Point{Lat: 20, Lng: -155},
	}, "")
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = svc.QueryByBoundingBox(context.Background(), model.QueryRequest{
		Southwest: &model.Point{Lat: 19, Lng: -156},
	}, "")
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestQueryByBoundingBoxFanout(t *testing.T) {
	backend := &fakeBackend{}
	svc := newTestService(backend)

	// big island box: coverage planning samples nine points
	resp, err := svc.QueryByBoundingBox(context.Background(), model.QueryRequest{
		Southwest: &model.Point{Lat: 18.9, Lng: -156.1},
		Northeast: &model.Point{Lat: 20.3, Lng: -154.8},
	}, "")
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Empty(t, resp.NextToken)

	require.NotEmpty(t, backend.queries)
	assert.LessOrEqual(t, len(backend.queries), 9)
	for _, q := range backend.queries {
		assert.Equal(t, store.IndexByGeohashPrefix, q.Index)
		assert.Equal(t, store.AttrGeohashPrefix, q.KeyCondition.Attribute)
	}
}

func TestQueryByBoundingBoxLimitAndZoomFilter(t *testing.T) {
	hidden := RecordFromFeature(feature("a-1", "Hidden", "Hawaii", "Kona", 12, 12, 16))
	vis1 := RecordFromFeature(feature("a-2", "First", "Hawaii", "Kona", 10, 8, 14))
	vis2 := RecordFromFeature(feature("a-3", "Second", "Hawaii", "Kona", 10, 0, 0))
	vis3 := RecordFromFeature(feature("a-4", "Third", "Hawaii", "Hilo", 10, 9, 0))

	backend := &fakeBackend{}
	backend.queryFn = func(in store.QueryInput) (store.Output, error) {
		if len(backend.queries) == 1 {
			return store.Output{
				Records:      []store.Record{hidden, vis1, vis2, vis3},
				ScannedCount: 4,
			}, nil
		}
		return store.Output{}, nil
	}
	svc := newTestService(backend)

	resp, err := svc.QueryByBoundingBox(context.Background(), model.QueryRequest{
		Southwest: &model.Point{Lat: 18.9, Lng: -156.1},
		Northeast: &model.Point{Lat: 20.3, Lng: -154.8},
		ZoomLevel: 10,
		Limit:     2,
	}, "")
	require.NoError(t, err)

	// zoom 10 is below the hidden feature's MinZoom of 12
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "First", resp.Items[0].Name)
	assert.Equal(t, "Second", resp.Items[1].Name)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 4, resp.Metrics.ScannedCount)

	// the limit was reached on the first prefix, so no further fan-out
	assert.Len(t, backend.queries, 1)
	assert.Equal(t, 2, backend.queries[0].Limit)
}

func TestQueryByBoundingBoxContinuation(t *testing.T) {
	rec := RecordFromFeature(feature("a-9", "Partial", "Maui", "Hana", 10, 0, 0))
	lastKey := store.Key{
		store.AttrPK:            store.String("AHUPUAA#a-9"),
		store.AttrGeohashPrefix: store.String("8e9"),
	}

	backend := &fakeBackend{}
	backend.queryFn = func(in store.QueryInput) (store.Output, error) {
		if len(backend.queries) == 1 {
			return store.Output{Records: []store.Record{rec}, LastKey: lastKey}, nil
		}
		return store.Output{}, nil
	}
	svc := newTestService(backend)

	req := model.QueryRequest{
		Southwest: &model.Point{Lat: 18.9, Lng: -156.1},
		Northeast: &model.Point{Lat: 20.3, Lng: -154.8},
		Limit:     25,
	}
	resp, err := svc.QueryByBoundingBox(context.Background(), req, "")
	require.NoError(t, err)
	require.NotEmpty(t, resp.NextToken)
	assert.Equal(t, lastKey, token.Decode(resp.NextToken))

	// the token resumes every prefix's first sub-query
	backend.queries = nil
	_, err = svc.QueryByBoundingBox(context.Background(), req, resp.NextToken)
	require.NoError(t, err)
	for _, q := range backend.queries {
		assert.Equal(t, lastKey, q.StartKey)
	}
}

func TestQueryByBoundingBoxBackendError(t *testing.T) {
	boom := errors.New("partition unavailable")
	backend := &fakeBackend{
		queryFn: func(store.QueryInput) (store.Output, error) { return store.Output{}, boom },
	}
	svc := newTestService(backend)

	_, err := svc.QueryByBoundingBox(context.Background(), model.QueryRequest{
		Southwest: &model.Point{Lat: 18.9, Lng: -156.1},
		Northeast: &model.Point{Lat: 20.3, Lng: -154.8},
	}, "")
	require.ErrorIs(t, err, boom)
}

func TestQueryByBoundingBoxRegionFilters(t *testing.T) {
	backend := &fakeBackend{}
	svc := newTestService(backend)

	_, err := svc.QueryByBoundingBox(context.Background(), model.QueryRequest{
		Southwest: &model.Point{Lat: 18.9, Lng: -156.1},
		Northeast: &model.Point{Lat: 20.3, Lng: -154.8},
		Island:    "Hawaii",
		District:  "Kona",
	}, "")
	require.NoError(t, err)
	require.NotEmpty(t, backend.queries)
	assert.Contains(t, backend.queries[0].Filter, store.Eq(store.AttrIsland, "Hawaii"))
	assert.Contains(t, backend.queries[0].Filter, store.Eq(store.AttrDistrict, "Kona"))
}

func TestQueryByZoomLevel(t *testing.T) {
	rec := RecordFromFeature(feature("z-1", "Zoomed", "Oahu", "Ewa", 8, 0, 0))
	backend := &fakeBackend{
		queryFn: func(store.QueryInput) (store.Output, error) {
			return store.Output{Records: []store.Record{rec}, ScannedCount: 1}, nil
		},
	}
	svc := newTestService(backend)

	_, err := svc.QueryByZoomLevel(context.Background(), model.QueryRequest{}, "")
	require.ErrorIs(t, err, ErrPrecondition)

	resp, err := svc.QueryByZoomLevel(context.Background(), model.QueryRequest{ZoomLevel: 8}, "")
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Zoomed", resp.Items[0].Name)

	require.Len(t, backend.queries, 1)
	q := backend.queries[0]
	assert.Equal(t, store.IndexByZoomLevel, q.Index)
	assert.Equal(t, store.EqN(store.AttrZoomLevel, "8"), q.KeyCondition)
	assert.Contains(t, q.Projection, store.AttrSimplified)
	assert.NotContains(t, q.Projection, store.AttrHighDetail)
}

func TestGetFeatureByIDReadThrough(t *testing.T) {
	f := feature("hon-1", "Honokohau", "Hawaii", "Kona", 10, 0, 0)
	backend := &fakeBackend{
		items: map[string]store.Record{"AHUPUAA#hon-1": RecordFromFeature(f)},
	}
	c := newFakeCache()
	svc := New(slog.New(slog.DiscardHandler), backend, c)

	got, err := svc.GetFeatureByID(context.Background(), "hon-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Honokohau", got.Name)
	assert.Len(t, backend.getPKs, 1)

	// second read is served from cache
	got, err = svc.GetFeatureByID(context.Background(), "hon-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, backend.getPKs, 1)

	ttl := c.ttls[FeatureCacheKey("hon-1")]
	assert.InDelta(t, float64(time.Hour), float64(ttl), float64(11*time.Minute))
}

func TestGetFeatureByIDAbsent(t *testing.T) {
	backend := &fakeBackend{items: map[string]store.Record{}}
	c := newFakeCache()
	svc := New(slog.New(slog.DiscardHandler), backend, c)

	got, err := svc.GetFeatureByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	// absence is never cached
	assert.Zero(t, c.sets)
}

func TestListFeaturesSorted(t *testing.T) {
	records := []store.Record{
		RecordFromFeature(feature("3", "Waipio", "Hawaii", "Hamakua", 10, 0, 0)),
		RecordFromFeature(feature("1", "Honolulu", "Oahu", "Kona", 10, 0, 0)),
		RecordFromFeature(feature("2", "Anahulu", "Hawaii", "Hamakua", 10, 0, 0)),
	}
	backend := &fakeBackend{
		scanFn: func(store.ScanInput) (store.Output, error) {
			return store.Output{Records: records}, nil
		},
	}
	svc := newTestService(backend)

	features, err := svc.ListFeatures(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, features, 3)
	assert.Equal(t, "Anahulu", features[0].Name)
	assert.Equal(t, "Waipio", features[1].Name)
	assert.Equal(t, "Honolulu", features[2].Name)
}

func TestListFeaturesFilterPushdown(t *testing.T) {
	backend := &fakeBackend{}
	svc := newTestService(backend)

	_, err := svc.ListFeatures(context.Background(), "Hawaii", "Kona")
	require.NoError(t, err)
	require.Len(t, backend.scans, 1)
	assert.Contains(t, backend.scans[0].Filter, store.Eq(store.AttrIsland, "Hawaii"))
	assert.Contains(t, backend.scans[0].Filter, store.Eq(store.AttrDistrict, "Kona"))
}

func TestQueryProjectionDetailSelection(t *testing.T) {
	cases := []struct {
		detail model.DetailLevel
		want   string
	}{
		{model.DetailFull, store.AttrHighDetail},
		{model.DetailLow, store.AttrLowDetail},
		{model.DetailSimplified, store.AttrSimplified},
		{"", store.AttrSimplified},
		{"bogus", store.AttrSimplified},
	}
	boundaries := []string{store.AttrLowDetail, store.AttrSimplified, store.AttrHighDetail}
	for _, tc := range cases {
		proj := queryProjection(tc.detail)
		assert.Contains(t, proj, tc.want, string(tc.detail))
		for _, attr := range boundaries {
			if attr != tc.want {
				assert.NotContains(t, proj, attr, string(tc.detail))
			}
		}
	}
}

func TestListIslandsDistinct(t *testing.T) {
	backend := &fakeBackend{
		scanFn: func(store.ScanInput) (store.Output, error) {
			return store.Output{Records: []store.Record{
				{store.AttrIsland: store.String("Oahu")},
				{store.AttrIsland: store.String("Hawaii")},
				{store.AttrIsland: store.String("Oahu")},
				{store.AttrIsland: store.String("Maui")},
			}}, nil
		},
	}
	svc := newTestService(backend)

	islands, err := svc.ListIslands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Hawaii", "Maui", "Oahu"}, islands)
}

func TestListDistricts(t *testing.T) {
	backend := &fakeBackend{
		queryFn: func(in store.QueryInput) (store.Output, error) {
			return store.Output{Records: []store.Record{
				{store.AttrDistrict: store.String("Kona")},
				{store.AttrDistrict: store.String("Hilo")},
				{store.AttrDistrict: store.String("Kona")},
			}}, nil
		},
	}
	svc := newTestService(backend)

	_, err := svc.ListDistricts(context.Background(), "")
	require.ErrorIs(t, err, ErrPrecondition)

	districts, err := svc.ListDistricts(context.Background(), "Hawaii")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hilo", "Kona"}, districts)

	require.Len(t, backend.queries, 1)
	assert.Equal(t, store.Eq(store.AttrIsland, "Hawaii"), backend.queries[0].KeyCondition)
}

func TestMapFeaturesProjection(t *testing.T) {
	f := feature("m-1", "Kahana", "Oahu", "Koolauloa", 10, 0, 0)
	f.SimplifiedBoundaries = `[[21.55,-157.87]]`
	f.HighDetailBoundaries = `[[21.551,-157.871],[21.552,-157.872]]`
	f.AnnotationPoint = `{"coordinate":[21.55,-157.87],"title":"Kahana","subtitle":"Koolauloa"}`

	bad := feature("m-2", "Broken", "Oahu", "Koolauloa", 10, 0, 0)
	bad.SimplifiedBoundaries = `[[21.4,-157.9]]`
	bad.AnnotationPoint = `{not json`

	backend := &fakeBackend{}
	backend.queryFn = func(store.QueryInput) (store.Output, error) {
		if len(backend.queries) == 1 {
			return store.Output{Records: []store.Record{
				RecordFromFeature(f), RecordFromFeature(bad),
			}}, nil
		}
		return store.Output{}, nil
	}
	svc := newTestService(backend)

	out, err := svc.MapFeaturesForBoundingBox(context.Background(), model.QueryRequest{
		Southwest: &model.Point{Lat: 21.2, Lng: -158.3},
		Northeast: &model.Point{Lat: 21.7, Lng: -157.6},
		Detail:    model.DetailFull,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, f.HighDetailBoundaries, out[0].Boundary)
	require.NotNil(t, out[0].Annotation)
	assert.Equal(t, "Kahana", out[0].Annotation.Title)
	assert.Equal(t, []float64{21.55, -157.87}, out[0].Annotation.Coordinate)

	// unparsable annotation drops the pin, keeps the feature
	assert.Nil(t, out[1].Annotation)
	assert.Equal(t, bad.SimplifiedBoundaries, out[1].Boundary)
}

func TestFeatureRecordRoundTrip(t *testing.T) {
	f := feature("rt-1", "Keauhou", "Hawaii", "Kona", 10, 8, 14)
	f.Geohash = "8e92y0p"
	f.GeohashPrefix = "8e9"
	f.Centroid = &model.Point{Lat: 19.56, Lng: -155.96}
	f.Bounds = &model.Bounds{
		Northeast: model.Point{Lat: 19.6, Lng: -155.9},
		Southwest: model.Point{Lat: 19.5, Lng: -156.0},
	}
	f.DisplayPriority = 2
	f.GeometryType = "Polygon"
	f.SimplifiedBoundaries = `[[19.56,-155.96]]`
	f.Hints = model.RenderingHints{FillOpacity: 0.4, ZIndex: 3}
	f.Meta = model.Metadata{DataVersion: 7, FeatureHash: "abc123", LastUpdated: "2026-08-01T00:00:00Z"}

	got := featureFromRecord(RecordFromFeature(f))
	assert.Equal(t, f, got)
}

func TestFeatureFromRecordDefaults(t *testing.T) {
	rec := store.Record{
		store.AttrPK:          store.String("AHUPUAA#d-1"),
		store.AttrName:        store.String("Sparse"),
		store.AttrHierarchySK: store.String("MOKUPUNI#Kauai#MOKU#Puna"),
	}
	f := featureFromRecord(rec)

	assert.Equal(t, "d-1", f.ID)
	assert.Equal(t, "Kauai", f.Island)
	assert.Equal(t, "Puna", f.District)
	assert.Equal(t, model.DefaultStyle(), f.Style)
	assert.Equal(t, 5, f.DisplayPriority)
	assert.Nil(t, f.Centroid)
	assert.Nil(t, f.Bounds)
}
