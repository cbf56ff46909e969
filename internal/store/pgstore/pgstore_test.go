package pgstore

import (
	"strings"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greglum/map-project/internal/store"
)

func TestDocRoundTrip(t *testing.T) {
	rec := store.Record{
		store.AttrPK:        store.String("AHUPUAA#A1"),
		store.AttrName:      store.String("Waipiʻo"),
		store.AttrZoomLevel: store.Number("10"),
		"Cursor":            store.Binary([]byte{0x00, 0x01, 0xff}),
	}

	raw, err := encodeDoc(rec)
	require.NoError(t, err)

	got, err := decodeDoc(raw)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestDecodeDoc_Malformed(t *testing.T) {
	_, err := decodeDoc([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeDoc([]byte(`{"X":{"b":"!!!"}}`))
	assert.Error(t, err)
}

func TestContainmentJSON(t *testing.T) {
	frag, err := containmentJSON(store.Eq("DisplayPriority", "5"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"DisplayPriority":{"s":"5"}}`, frag)
}

func TestIndexes_CoverEveryPortIndex(t *testing.T) {
	for _, idx := range []store.Index{
		store.IndexByName,
		store.IndexByDistrict,
		store.IndexByGeohash,
		store.IndexByIsland,
		store.IndexByZoomLevel,
		store.IndexByGeohashPrefix,
	} {
		def, ok := indexes[idx]
		require.True(t, ok, "index %s has no column mapping", idx)
		assert.NotEmpty(t, def.hashCol, "index %s", idx)
		if def.rangeCol != "" {
			assert.NotEmpty(t, def.rangeAttr, "index %s range attr", idx)
		}
	}
}

func TestResumeAfter_BuildsRowComparison(t *testing.T) {
	def := indexes[store.IndexByZoomLevel]
	key := store.Key{
		store.AttrPK:      store.String("AHUPUAA#A9"),
		store.AttrGeohash: store.String("8e92y0p"),
	}

	base := newSelect()
	sql, _, err := resumeAfter(base, def, key).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "(geohash, pk)")
	assert.Contains(t, sql, "8e92y0p")
	assert.Contains(t, sql, "AHUPUAA#A9")
}

func TestResumeAfter_PKOnly(t *testing.T) {
	def := indexes[store.IndexByGeohashPrefix]
	key := store.Key{store.AttrPK: store.String("AHUPUAA#A9")}

	sql, _, err := resumeAfter(newSelect(), def, key).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `"pk" >`)
	assert.Contains(t, sql, "AHUPUAA#A9")
}

func TestApplyFilters_ColumnAndDocument(t *testing.T) {
	ds, err := applyFilters(newSelect(), []store.Condition{
		store.Eq(store.AttrIsland, "Hawaii"),
		store.Eq("FeatureHash", "abc123"),
	})
	require.NoError(t, err)

	sql, _, err := ds.ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `"island"`)
	assert.Contains(t, sql, "Hawaii")
	assert.True(t, strings.Contains(sql, "@>"), "document filter must use containment: %s", sql)
}

func TestCapacityFor(t *testing.T) {
	assert.Equal(t, 0.0, capacityFor(0))
	assert.Equal(t, 0.5, capacityFor(100))
	assert.Equal(t, 2.0, capacityFor(2*capacityUnitBytes))
}

func newSelect() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).From(defaultTableName).Select(colPK, colDoc)
}
