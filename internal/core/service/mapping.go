package service

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/greglum/map-project/internal/core/keys"
	"github.com/greglum/map-project/internal/core/model"
	"github.com/greglum/map-project/internal/store"
)

var json = jsoniter.ConfigFastest

// coreAttributes is the non-geometry projection every query carries; the
// boundary field is appended per detail level so only one of the three
// large geometry attributes crosses the wire.
var coreAttributes = []string{
	store.AttrPK,
	store.AttrHierarchySK,
	store.AttrName,
	store.AttrIsland,
	store.AttrDistrict,
	store.AttrGeohash,
	store.AttrGeohashPrefix,
	store.AttrZoomLevel,
	store.AttrMinZoom,
	store.AttrMaxZoom,
	store.AttrCentroidLat,
	store.AttrCentroidLng,
	store.AttrAnnotationPoint,
	store.AttrDisplayPriority,
	store.AttrGeometryType,
	store.AttrFillColor,
	store.AttrBorderColor,
	store.AttrBorderWidth,
	store.AttrRenderingHints,
	store.AttrDataVersion,
	store.AttrFeatureHash,
	store.AttrLastUpdated,
}

func queryProjection(detail model.DetailLevel) []string {
	return append(append([]string(nil), coreAttributes...), detail.BoundaryAttribute())
}

// featureFromRecord tolerates missing attributes: absent fields map to zero
// values and absent style properties to the documented defaults, so one
// malformed row never fails a whole page.
func featureFromRecord(rec store.Record) model.Feature {
	island := store.GetString(rec, store.AttrIsland)
	district := store.GetString(rec, store.AttrDistrict)
	if island == "" || district == "" {
		if sk := store.GetString(rec, store.AttrHierarchySK); sk != "" {
			i, d := keys.ParseHierarchySK(sk)
			if island == "" {
				island = i
			}
			if district == "" {
				district = d
			}
		}
	}

	f := model.Feature{
		ID:       keys.FeatureID(store.GetString(rec, store.AttrPK)),
		Name:     store.GetString(rec, store.AttrName),
		Island:   island,
		District: district,

		Geohash:       store.GetString(rec, store.AttrGeohash),
		GeohashPrefix: store.GetString(rec, store.AttrGeohashPrefix),
		ZoomLevel:     store.GetInt(rec, store.AttrZoomLevel, 0),
		MinZoom:       store.GetInt(rec, store.AttrMinZoom, 0),
		MaxZoom:       store.GetInt(rec, store.AttrMaxZoom, 0),

		AnnotationPoint: store.GetString(rec, store.AttrAnnotationPoint),
		DisplayPriority: store.GetInt(rec, store.AttrDisplayPriority, 5),
		GeometryType:    store.GetString(rec, store.AttrGeometryType),

		LowDetailBoundaries:  store.GetString(rec, store.AttrLowDetail),
		SimplifiedBoundaries: store.GetString(rec, store.AttrSimplified),
		HighDetailBoundaries: store.GetString(rec, store.AttrHighDetail),
	}

	if store.HasNumber(rec, store.AttrCentroidLat) && store.HasNumber(rec, store.AttrCentroidLng) {
		f.Centroid = &model.Point{
			Lat: store.GetFloat(rec, store.AttrCentroidLat, 0),
			Lng: store.GetFloat(rec, store.AttrCentroidLng, 0),
		}
	}
	if store.HasNumber(rec, store.AttrBoundsNELat) && store.HasNumber(rec, store.AttrBoundsSWLat) {
		f.Bounds = &model.Bounds{
			Northeast: model.Point{
				Lat: store.GetFloat(rec, store.AttrBoundsNELat, 0),
				Lng: store.GetFloat(rec, store.AttrBoundsNELng, 0),
			},
			Southwest: model.Point{
				Lat: store.GetFloat(rec, store.AttrBoundsSWLat, 0),
				Lng: store.GetFloat(rec, store.AttrBoundsSWLng, 0),
			},
		}
	}

	f.Style = model.DefaultStyle()
	if v := store.GetString(rec, store.AttrFillColor); v != "" {
		f.Style.FillColor = v
	}
	if v := store.GetString(rec, store.AttrBorderColor); v != "" {
		f.Style.BorderColor = v
	}
	if store.HasNumber(rec, store.AttrBorderWidth) {
		f.Style.BorderWidth = store.GetFloat(rec, store.AttrBorderWidth, 2)
	}

	if raw := store.GetString(rec, store.AttrRenderingHints); raw != "" {
		_ = json.UnmarshalFromString(raw, &f.Hints)
	}

	f.Meta = model.Metadata{
		DataVersion: int64(store.GetInt(rec, store.AttrDataVersion, 0)),
		FeatureHash: store.GetString(rec, store.AttrFeatureHash),
		LastUpdated: store.GetString(rec, store.AttrLastUpdated),
	}

	return f
}

// RecordFromFeature builds the stored attribute bag for a feature. Import
// tooling and tests write through this; queries never do.
func RecordFromFeature(f model.Feature) store.Record {
	rec := store.Record{
		store.AttrPK:          store.String(keys.FeaturePK(f.ID)),
		store.AttrHierarchySK: store.String(keys.HierarchySK(f.Island, f.District)),
		store.AttrName:        store.String(f.Name),
		store.AttrIsland:      store.String(f.Island),
		store.AttrDistrict:    store.String(f.District),

		store.AttrGeohash:       store.String(f.Geohash),
		store.AttrGeohashPrefix: store.String(f.GeohashPrefix),
		store.AttrZoomLevel:     store.Number(strconv.Itoa(f.ZoomLevel)),
		store.AttrMinZoom:       store.Number(strconv.Itoa(f.MinZoom)),
		store.AttrMaxZoom:       store.Number(strconv.Itoa(f.MaxZoom)),

		store.AttrDisplayPriority: store.Number(strconv.Itoa(f.DisplayPriority)),

		store.AttrFillColor:   store.String(f.Style.FillColor),
		store.AttrBorderColor: store.String(f.Style.BorderColor),
		store.AttrBorderWidth: store.Number(strconv.FormatFloat(f.Style.BorderWidth, 'f', -1, 64)),

		store.AttrDataVersion: store.Number(strconv.FormatInt(f.Meta.DataVersion, 10)),
		store.AttrFeatureHash: store.String(f.Meta.FeatureHash),
		store.AttrLastUpdated: store.String(f.Meta.LastUpdated),
	}

	setIfPresent := func(attr, val string) {
		if val != "" {
			rec[attr] = store.String(val)
		}
	}
	setIfPresent(store.AttrAnnotationPoint, f.AnnotationPoint)
	setIfPresent(store.AttrGeometryType, f.GeometryType)
	setIfPresent(store.AttrLowDetail, f.LowDetailBoundaries)
	setIfPresent(store.AttrSimplified, f.SimplifiedBoundaries)
	setIfPresent(store.AttrHighDetail, f.HighDetailBoundaries)

	if f.Centroid != nil {
		rec[store.AttrCentroidLat] = store.Number(strconv.FormatFloat(f.Centroid.Lat, 'f', -1, 64))
		rec[store.AttrCentroidLng] = store.Number(strconv.FormatFloat(f.Centroid.Lng, 'f', -1, 64))
	}
	if f.Bounds != nil {
		rec[store.AttrBoundsNELat] = store.Number(strconv.FormatFloat(f.Bounds.Northeast.Lat, 'f', -1, 64))
		rec[store.AttrBoundsNELng] = store.Number(strconv.FormatFloat(f.Bounds.Northeast.Lng, 'f', -1, 64))
		rec[store.AttrBoundsSWLat] = store.Number(strconv.FormatFloat(f.Bounds.Southwest.Lat, 'f', -1, 64))
		rec[store.AttrBoundsSWLng] = store.Number(strconv.FormatFloat(f.Bounds.Southwest.Lng, 'f', -1, 64))
	}

	if (f.Hints != model.RenderingHints{}) {
		if raw, err := json.MarshalToString(f.Hints); err == nil {
			rec[store.AttrRenderingHints] = store.String(raw)
		}
	}

	return rec
}

func parseAnnotation(raw string) *model.Annotation {
	if raw == "" {
		return nil
	}
	var a model.Annotation
	if err := json.UnmarshalFromString(raw, &a); err != nil {
		return nil
	}
	if len(a.Coordinate) == 0 && a.Title == "" {
		return nil
	}
	return &a
}
