// Package model defines core domain types shared across the service.
package model

import "time"

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	Northeast Point `json:"northeast"`
	Southwest Point `json:"southwest"`
}

// DetailLevel selects one of the three precomputed boundary fidelities.
type DetailLevel string

const (
	DetailLow        DetailLevel = "low"
	DetailSimplified DetailLevel = "simplified"
	DetailFull       DetailLevel = "full"
)

// BoundaryAttribute returns the stored attribute name holding the geometry
// for this detail level. Anything other than "low" or "full" (including the
// empty value) selects the simplified geometry.
func (d DetailLevel) BoundaryAttribute() string {
	switch d {
	case DetailFull:
		return "HighDetailBoundaries"
	case DetailLow:
		return "LowDetailBoundaries"
	default:
		return "SimplifiedBoundaries"
	}
}

// Boundary picks the matching geometry field from a feature.
func (d DetailLevel) Boundary(f *Feature) string {
	switch d {
	case DetailFull:
		return f.HighDetailBoundaries
	case DetailLow:
		return f.LowDetailBoundaries
	default:
		return f.SimplifiedBoundaries
	}
}

type StyleProperties struct {
	FillColor   string  `json:"fillColor"`
	BorderColor string  `json:"borderColor"`
	BorderWidth float64 `json:"borderWidth"`
}

// DefaultStyle matches the colors written by the data import pipeline.
func DefaultStyle() StyleProperties {
	return StyleProperties{
		FillColor:   "#A3C1AD",
		BorderColor: "#2A6041",
		BorderWidth: 2,
	}
}

type RenderingHints struct {
	StrokeWidth         float64 `json:"strokeWidth"`
	FillOpacity         float64 `json:"fillOpacity"`
	StrokeOpacity       float64 `json:"strokeOpacity"`
	ZIndex              int     `json:"zIndex"`
	LineDashPattern     string  `json:"lineDashPattern"`
	SelectedFillColor   string  `json:"selectedFillColor"`
	SelectedStrokeColor string  `json:"selectedStrokeColor"`
}

type Metadata struct {
	DataVersion int64  `json:"dataVersion"`
	FeatureHash string `json:"featureHash"`
	LastUpdated string `json:"lastUpdated"`
}

// Feature is one stored land-division polygon record.
type Feature struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Island   string `json:"island"`
	District string `json:"district"`

	Geohash       string `json:"geohash"`
	GeohashPrefix string `json:"geohashPrefix"`
	ZoomLevel     int    `json:"zoomLevel"`
	MinZoom       int    `json:"minZoom"`
	MaxZoom       int    `json:"maxZoom"`

	Centroid *Point  `json:"centroid,omitempty"`
	Bounds   *Bounds `json:"bounds,omitempty"`

	// AnnotationPoint is a JSON document with a coordinate, title and
	// subtitle for map pins; kept as the raw stored string.
	AnnotationPoint string `json:"annotationPoint,omitempty"`
	DisplayPriority int    `json:"displayPriority"`
	GeometryType    string `json:"geometryType,omitempty"`

	LowDetailBoundaries  string `json:"lowDetailBoundaries,omitempty"`
	SimplifiedBoundaries string `json:"simplifiedBoundaries,omitempty"`
	HighDetailBoundaries string `json:"highDetailBoundaries,omitempty"`

	Style StyleProperties `json:"style"`
	Hints RenderingHints  `json:"renderingHints"`
	Meta  Metadata        `json:"metadata"`
}

const DefaultLimit = 50

// QueryRequest describes a bounding-box or zoom-level query.
// Bounding-box queries require both corners; zoom-level queries require a
// positive ZoomLevel.
type QueryRequest struct {
	Northeast *Point
	Southwest *Point
	ZoomLevel int
	Island    string
	District  string
	Detail    DetailLevel
	Limit     int
}

func (r QueryRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultLimit
	}
	return r.Limit
}

type QueryMetrics struct {
	Elapsed          time.Duration `json:"elapsedMs"`
	ScannedCount     int           `json:"scannedCount"`
	ConsumedCapacity float64       `json:"consumedCapacity"`
}

// QueryResponse is created fresh per call and never mutated after return.
// Item order is backend index order, not globally sorted across prefixes.
type QueryResponse struct {
	Items     []Feature    `json:"items"`
	NextToken string       `json:"nextToken,omitempty"`
	Count     int          `json:"count"`
	Metrics   QueryMetrics `json:"metrics"`
}

// Annotation is the parsed form of a feature's AnnotationPoint document.
type Annotation struct {
	Coordinate []float64 `json:"coordinate"`
	Title      string    `json:"title"`
	Subtitle   string    `json:"subtitle"`
}

// MapFeature is the slim projection returned to map-rendering clients.
type MapFeature struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	District   string          `json:"district"`
	Boundary   string          `json:"boundary"`
	Annotation *Annotation     `json:"annotation,omitempty"`
	Style      StyleProperties `json:"style"`
}
