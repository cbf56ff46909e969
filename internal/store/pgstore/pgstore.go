// Package pgstore implements the storage-backend port on PostgreSQL.
//
// Each feature row keeps its indexed attributes in dedicated columns and the
// complete attribute bag as a tagged jsonb document, so secondary-index
// queries run on btree indexes while projections stay attribute-shaped.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greglum/map-project/internal/core/observability"
	"github.com/greglum/map-project/internal/store"
)

const (
	defaultTableName = "features"
	dialectPostgres  = "postgres"

	colPK            = "pk"
	colHierarchySK   = "hierarchy_sk"
	colName          = "name"
	colIsland        = "island"
	colDistrict      = "district"
	colGeohash       = "geohash"
	colGeohashPrefix = "geohash_prefix"
	colZoomLevel     = "zoom_level"
	colDoc           = "doc"

	// mirrors the backend's pricing model: one half unit per 4KB read
	capacityUnitBytes = 4096
)

type indexDef struct {
	hashCol   string
	rangeCol  string
	rangeAttr string
}

// indexes maps each logical secondary index onto its column pair. The
// partition key column is always the final ordering tiebreak.
var indexes = map[store.Index]indexDef{
	store.IndexByName:          {hashCol: colName},
	store.IndexByDistrict:      {hashCol: colDistrict, rangeCol: colHierarchySK, rangeAttr: store.AttrHierarchySK},
	store.IndexByGeohash:       {hashCol: colGeohash},
	store.IndexByIsland:        {hashCol: colIsland, rangeCol: colHierarchySK, rangeAttr: store.AttrHierarchySK},
	store.IndexByZoomLevel:     {hashCol: colZoomLevel, rangeCol: colGeohash, rangeAttr: store.AttrGeohash},
	store.IndexByGeohashPrefix: {hashCol: colGeohashPrefix},
}

// attrColumns lists the attributes that live in their own column; equality
// filters on these are pushed down as plain WHERE clauses. Filters on any
// other attribute fall back to jsonb containment on the document.
var attrColumns = map[string]string{
	store.AttrPK:            colPK,
	store.AttrHierarchySK:   colHierarchySK,
	store.AttrName:          colName,
	store.AttrIsland:        colIsland,
	store.AttrDistrict:      colDistrict,
	store.AttrGeohash:       colGeohash,
	store.AttrGeohashPrefix: colGeohashPrefix,
	store.AttrZoomLevel:     colZoomLevel,
}

type Option func(*Store)

func WithTableName(name string) Option {
	return func(s *Store) { s.table = name }
}

// Store is the PostgreSQL adapter behind the storage port.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pgstore: nil connection pool")
	}
	s := &Store{pool: pool, table: defaultTableName}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// EnsureSchema creates the features table and its secondary indexes when
// they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			pk text PRIMARY KEY,
			hierarchy_sk text NOT NULL DEFAULT '',
			name text NOT NULL DEFAULT '',
			island text NOT NULL DEFAULT '',
			district text NOT NULL DEFAULT '',
			geohash text NOT NULL DEFAULT '',
			geohash_prefix text NOT NULL DEFAULT '',
			zoom_level integer NOT NULL DEFAULT 0,
			doc jsonb NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_by_name ON %s (name, pk)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_by_district ON %s (district, hierarchy_sk, pk)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_by_geohash ON %s (geohash, pk)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_by_island ON %s (island, hierarchy_sk, pk)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_by_zoom_level ON %s (zoom_level, geohash, pk)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_by_geohash_prefix ON %s (geohash_prefix, pk)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgstore schema: %w", err)
		}
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, pk string) (store.Record, bool, error) {
	sql, _, err := goqu.Dialect(dialectPostgres).
		From(s.table).
		Select(colDoc).
		Where(goqu.C(colPK).Eq(pk)).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, false, fmt.Errorf("build get query: %w", err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, sql)
	observability.ObserveBackendOp("get_item", "", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("get item %q: %w", pk, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("get item %q: %w", pk, err)
		}
		return nil, false, nil
	}
	var doc []byte
	if err := rows.Scan(&doc); err != nil {
		return nil, false, fmt.Errorf("scan item %q: %w", pk, err)
	}
	rec, err := decodeDoc(doc)
	if err != nil {
		return nil, false, fmt.Errorf("decode item %q: %w", pk, err)
	}
	observability.AddScannedRows(1)
	observability.AddConsumedCapacity(capacityFor(len(doc)))
	return rec, true, nil
}

func (s *Store) Scan(ctx context.Context, in store.ScanInput) (store.Output, error) {
	ds := goqu.Dialect(dialectPostgres).
		From(s.table).
		Select(colPK, colDoc).
		Order(goqu.I(colPK).Asc())

	if in.StartKey != nil {
		if pk, ok := keyText(in.StartKey, store.AttrPK); ok {
			ds = ds.Where(goqu.C(colPK).Gt(pk))
		}
	}
	ds, err := applyFilters(ds, in.Filter)
	if err != nil {
		return store.Output{}, err
	}

	return s.run(ctx, "scan", "", ds, 0, in.Projection, func(lastPK string, last store.Record) store.Key {
		return store.Key{store.AttrPK: store.String(lastPK)}
	})
}

func (s *Store) Query(ctx context.Context, in store.QueryInput) (store.Output, error) {
	def, ok := indexes[in.Index]
	if !ok {
		return store.Output{}, fmt.Errorf("unknown index %q", in.Index)
	}

	ds := goqu.Dialect(dialectPostgres).
		From(s.table).
		Select(colPK, colDoc)

	switch in.KeyCondition.Value.Kind {
	case store.KindNumber:
		n, err := strconv.ParseFloat(in.KeyCondition.Value.N, 64)
		if err != nil {
			return store.Output{}, fmt.Errorf("numeric key condition %q: %w", in.KeyCondition.Value.N, err)
		}
		ds = ds.Where(goqu.C(def.hashCol).Eq(n))
	case store.KindString:
		ds = ds.Where(goqu.C(def.hashCol).Eq(in.KeyCondition.Value.S))
	case store.KindBinary:
		return store.Output{}, errors.New("binary key conditions are not supported")
	}

	if def.rangeCol != "" {
		ds = ds.Order(goqu.I(def.rangeCol).Asc(), goqu.I(colPK).Asc())
	} else {
		ds = ds.Order(goqu.I(colPK).Asc())
	}

	if in.StartKey != nil {
		ds = resumeAfter(ds, def, in.StartKey)
	}
	ds, err := applyFilters(ds, in.Filter)
	if err != nil {
		return store.Output{}, err
	}

	hashAttr := in.KeyCondition.Attribute
	hashVal := in.KeyCondition.Value
	return s.run(ctx, "query", string(in.Index), ds, in.Limit, in.Projection, func(lastPK string, last store.Record) store.Key {
		key := store.Key{
			store.AttrPK: store.String(lastPK),
			hashAttr:     hashVal,
		}
		if def.rangeAttr != "" {
			if v, ok := last[def.rangeAttr]; ok {
				key[def.rangeAttr] = v
			}
		}
		return key
	})
}

// run executes one built query. A positive limit fetches one extra row to
// decide whether a continuation key must be produced.
func (s *Store) run(
	ctx context.Context,
	op string,
	index string,
	ds *goqu.SelectDataset,
	limit int,
	projection []string,
	lastKey func(lastPK string, last store.Record) store.Key,
) (store.Output, error) {
	if limit > 0 {
		ds = ds.Limit(uint(limit) + 1)
	}
	sql, _, err := ds.ToSQL()
	if err != nil {
		return store.Output{}, fmt.Errorf("build %s query: %w", op, err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, sql)
	observability.ObserveBackendOp(op, index, err, time.Since(start).Seconds())
	if err != nil {
		return store.Output{}, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out store.Output
	var pks []string
	var recs []store.Record
	var bytesRead int
	for rows.Next() {
		var pk string
		var doc []byte
		if err := rows.Scan(&pk, &doc); err != nil {
			return store.Output{}, fmt.Errorf("%s scan row: %w", op, err)
		}
		rec, err := decodeDoc(doc)
		if err != nil {
			return store.Output{}, fmt.Errorf("%s decode row %q: %w", op, pk, err)
		}
		pks = append(pks, pk)
		recs = append(recs, rec)
		bytesRead += len(doc)
	}
	if err := rows.Err(); err != nil {
		return store.Output{}, fmt.Errorf("%s rows: %w", op, err)
	}

	out.ScannedCount = len(recs)
	out.ConsumedCapacity = capacityFor(bytesRead)
	observability.AddScannedRows(out.ScannedCount)
	observability.AddConsumedCapacity(out.ConsumedCapacity)

	more := limit > 0 && len(recs) > limit
	if more {
		pks = pks[:limit]
		recs = recs[:limit]
		out.LastKey = lastKey(pks[limit-1], recs[limit-1])
	}
	out.Records = make([]store.Record, len(recs))
	for i, rec := range recs {
		out.Records[i] = store.Project(rec, projection)
	}
	return out, nil
}

// resumeAfter turns a continuation key into a row-comparison predicate so
// the next page starts strictly after the last returned row.
func resumeAfter(ds *goqu.SelectDataset, def indexDef, key store.Key) *goqu.SelectDataset {
	pk, okPK := keyText(key, store.AttrPK)
	if def.rangeCol == "" {
		if okPK {
			return ds.Where(goqu.C(colPK).Gt(pk))
		}
		return ds
	}
	rangeVal, okRange := keyText(key, def.rangeAttr)
	switch {
	case okRange && okPK:
		return ds.Where(goqu.L(fmt.Sprintf("(%s, %s)", def.rangeCol, colPK)).Gt(goqu.L("(?, ?)", rangeVal, pk)))
	case okRange:
		return ds.Where(goqu.C(def.rangeCol).Gt(rangeVal))
	case okPK:
		return ds.Where(goqu.C(colPK).Gt(pk))
	}
	return ds
}

func applyFilters(ds *goqu.SelectDataset, filters []store.Condition) (*goqu.SelectDataset, error) {
	for _, f := range filters {
		if col, ok := attrColumns[f.Attribute]; ok {
			switch f.Value.Kind {
			case store.KindString:
				ds = ds.Where(goqu.C(col).Eq(f.Value.S))
			case store.KindNumber:
				n, err := strconv.ParseFloat(f.Value.N, 64)
				if err != nil {
					return nil, fmt.Errorf("numeric filter on %q: %w", f.Attribute, err)
				}
				ds = ds.Where(goqu.C(col).Eq(n))
			case store.KindBinary:
				return nil, fmt.Errorf("binary filter on %q is not supported", f.Attribute)
			}
			continue
		}
		frag, err := containmentJSON(f)
		if err != nil {
			return nil, err
		}
		ds = ds.Where(goqu.L(colDoc+" @> ?", frag))
	}
	return ds, nil
}

// keyText reads a continuation key attribute regardless of whether the
// token codec recovered it as a string or a number.
func keyText(key store.Key, attr string) (string, bool) {
	v, ok := key[attr]
	if !ok {
		return "", false
	}
	switch v.Kind {
	case store.KindString:
		return v.S, true
	case store.KindNumber:
		return v.N, true
	case store.KindBinary:
		return string(v.B), true
	}
	return "", false
}

func capacityFor(bytes int) float64 {
	if bytes <= 0 {
		return 0
	}
	units := float64(bytes) / capacityUnitBytes
	if units < 0.5 {
		return 0.5
	}
	return units
}
