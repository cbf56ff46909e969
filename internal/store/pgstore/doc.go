package pgstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/greglum/map-project/internal/core/observability"
	"github.com/greglum/map-project/internal/store"
)

var json = jsoniter.ConfigFastest

// taggedValue is the jsonb wire form of one attribute: exactly one of the
// three fields is set.
type taggedValue struct {
	S *string `json:"s,omitempty"`
	N *string `json:"n,omitempty"`
	B *string `json:"b,omitempty"`
}

func encodeDoc(rec store.Record) ([]byte, error) {
	doc := make(map[string]taggedValue, len(rec))
	for name, v := range rec {
		doc[name] = tagValue(v)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode doc: %w", err)
	}
	return raw, nil
}

func decodeDoc(raw []byte) (store.Record, error) {
	var doc map[string]taggedValue
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode doc: %w", err)
	}
	rec := make(store.Record, len(doc))
	for name, tv := range doc {
		switch {
		case tv.S != nil:
			rec[name] = store.String(*tv.S)
		case tv.N != nil:
			rec[name] = store.Number(*tv.N)
		case tv.B != nil:
			b, err := base64.StdEncoding.DecodeString(*tv.B)
			if err != nil {
				return nil, fmt.Errorf("decode binary attribute %q: %w", name, err)
			}
			rec[name] = store.Binary(b)
		}
	}
	return rec, nil
}

func tagValue(v store.AttributeValue) taggedValue {
	switch v.Kind {
	case store.KindString:
		s := v.S
		return taggedValue{S: &s}
	case store.KindNumber:
		n := v.N
		return taggedValue{N: &n}
	case store.KindBinary:
		b := base64.StdEncoding.EncodeToString(v.B)
		return taggedValue{B: &b}
	}
	return taggedValue{}
}

// containmentJSON renders one equality filter as a jsonb containment
// fragment against the tagged document.
func containmentJSON(f store.Condition) (string, error) {
	frag := map[string]taggedValue{f.Attribute: tagValue(f.Value)}
	raw, err := json.Marshal(frag)
	if err != nil {
		return "", fmt.Errorf("filter on %q: %w", f.Attribute, err)
	}
	return string(raw), nil
}

// Put upserts one feature record. It is not part of the storage port; the
// import tooling and tests write through it.
func (s *Store) Put(ctx context.Context, rec store.Record) error {
	pk := store.GetString(rec, store.AttrPK)
	if pk == "" {
		return fmt.Errorf("record is missing %s", store.AttrPK)
	}
	doc, err := encodeDoc(rec)
	if err != nil {
		return err
	}

	row := goqu.Record{
		colPK:            pk,
		colHierarchySK:   store.GetString(rec, store.AttrHierarchySK),
		colName:          store.GetString(rec, store.AttrName),
		colIsland:        store.GetString(rec, store.AttrIsland),
		colDistrict:      store.GetString(rec, store.AttrDistrict),
		colGeohash:       store.GetString(rec, store.AttrGeohash),
		colGeohashPrefix: store.GetString(rec, store.AttrGeohashPrefix),
		colZoomLevel:     store.GetInt(rec, store.AttrZoomLevel, 0),
		colDoc:           string(doc),
	}

	sql, _, err := goqu.Dialect(dialectPostgres).
		Insert(s.table).
		Rows(row).
		OnConflict(goqu.DoUpdate(colPK, row)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build put query: %w", err)
	}

	start := time.Now()
	_, err = s.pool.Exec(ctx, sql)
	observability.ObserveBackendOp("put", "", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("put %q: %w", pk, err)
	}
	return nil
}
