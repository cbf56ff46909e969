// Package store defines the storage-backend port the query core is written
// against: a partitioned key-value store with secondary indexes, single-
// partition range queries and opaque continuation keys.
package store

import "context"

// AttributeKind tags the scalar kind carried by an AttributeValue.
type AttributeKind int

const (
	KindString AttributeKind = iota
	KindNumber
	KindBinary
)

// AttributeValue is a tagged scalar. Numbers travel as strings, matching the
// backend wire representation, so no precision is lost in transit.
type AttributeValue struct {
	Kind AttributeKind
	S    string
	N    string
	B    []byte
}

func String(s string) AttributeValue { return AttributeValue{Kind: KindString, S: s} }
func Number(n string) AttributeValue { return AttributeValue{Kind: KindNumber, N: n} }
func Binary(b []byte) AttributeValue { return AttributeValue{Kind: KindBinary, B: b} }

// Key is a backend continuation or primary key: attribute name to value.
type Key = map[string]AttributeValue

// Record is one stored item's attribute bag.
type Record = map[string]AttributeValue

// Index names the secondary indexes the backend must provide.
type Index string

const (
	IndexByName          Index = "by-name"
	IndexByDistrict      Index = "by-district"
	IndexByGeohash       Index = "by-geohash"
	IndexByIsland        Index = "by-island"
	IndexByZoomLevel     Index = "by-zoom-level"
	IndexByGeohashPrefix Index = "by-geohash-prefix"
)

// Attribute names of the feature record.
const (
	AttrPK              = "AhupuaaPK"
	AttrHierarchySK     = "HierarchySK"
	AttrName            = "AhupuaaName"
	AttrIsland          = "MokupuniName"
	AttrDistrict        = "MokuName"
	AttrGeohash         = "Geohash"
	AttrGeohashPrefix   = "GeohashPrefix"
	AttrZoomLevel       = "ZoomLevel"
	AttrMinZoom         = "MinZoom"
	AttrMaxZoom         = "MaxZoom"
	AttrCentroidLat     = "CentroidLat"
	AttrCentroidLng     = "CentroidLng"
	AttrBoundsNELat     = "BoundsNELat"
	AttrBoundsNELng     = "BoundsNELng"
	AttrBoundsSWLat     = "BoundsSWLat"
	AttrBoundsSWLng     = "BoundsSWLng"
	AttrAnnotationPoint = "AnnotationPoint"
	AttrDisplayPriority = "DisplayPriority"
	AttrGeometryType    = "GeometryType"
	AttrLowDetail       = "LowDetailBoundaries"
	AttrSimplified      = "SimplifiedBoundaries"
	AttrHighDetail      = "HighDetailBoundaries"
	AttrFillColor       = "StyleFillColor"
	AttrBorderColor     = "StyleBorderColor"
	AttrBorderWidth     = "StyleBorderWidth"
	AttrRenderingHints  = "RenderingHints"
	AttrDataVersion     = "DataVersion"
	AttrFeatureHash     = "FeatureHash"
	AttrLastUpdated     = "LastUpdated"
)

// Condition is an equality predicate on a single attribute.
type Condition struct {
	Attribute string
	Value     AttributeValue
}

// Eq builds a string equality condition.
func Eq(attribute, value string) Condition {
	return Condition{Attribute: attribute, Value: String(value)}
}

// EqN builds a numeric equality condition.
func EqN(attribute, value string) Condition {
	return Condition{Attribute: attribute, Value: Number(value)}
}

// QueryInput describes one single-partition range query against a secondary
// index. StartKey, when non-nil, resumes from a previous Output.LastKey.
type QueryInput struct {
	Index        Index
	KeyCondition Condition
	Filter       []Condition
	Projection   []string
	Limit        int
	StartKey     Key
}

// ScanInput describes a full-table scan with optional equality filters.
type ScanInput struct {
	Filter     []Condition
	Projection []string
	StartKey   Key
}

// Output carries one page of results. LastKey is nil when the page reached
// the end of the matching rows.
type Output struct {
	Records          []Record
	LastKey          Key
	ScannedCount     int
	ConsumedCapacity float64
}

// Backend is the single port the orchestrator consumes. Errors from the
// backend propagate to callers unchanged; the core never retries.
type Backend interface {
	GetItem(ctx context.Context, pk string) (Record, bool, error)
	Scan(ctx context.Context, in ScanInput) (Output, error)
	Query(ctx context.Context, in QueryInput) (Output, error)
}
