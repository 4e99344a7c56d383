package pipeline

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/codec"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

// sheetStore is a minimal document: sheet name to absolute cell text.
type sheetStore map[string]map[address.Cell]string

func (s sheetStore) apply(grids []*models.Grid) {
	for _, g := range grids {
		cells, ok := s[g.Sheet()]
		if !ok {
			cells = make(map[address.Cell]string)
			s[g.Sheet()] = cells
		}
		for c := range cells {
			if g.Range.Contains(c) {
				delete(cells, c)
			}
		}
		for r, row := range g.Values {
			for c, v := range row {
				if v != "" {
					cells[g.Range.Start.Add(c, r)] = v
				}
			}
		}
	}
}

func (s sheetStore) names() []string {
	var names []string
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s sheetStore) fetch(ranges []address.Range) []*models.Grid {
	grids := make([]*models.Grid, len(ranges))
	for i, r := range ranges {
		g := models.NewGrid(r)
		for c, v := range s[r.Sheet] {
			if r.Contains(c) {
				_ = g.Set(c, v)
			}
		}
		grids[i] = g
	}
	return grids
}

func registry(t *testing.T, defs ...*schema.TypeDef) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry(schema.WithMaxElements(20))
	require.NoError(t, reg.Register(defs...))
	return reg
}

func write(t *testing.T, reg *schema.Registry, store sheetStore, name, sheet string, obj models.Object) []*models.Grid {
	t.Helper()
	typ, err := reg.Describe(name)
	require.NoError(t, err)
	w := NewWriter(codec.NewDefault())
	require.NoError(t, w.Write(typ, sheet, obj))
	store.apply(w.Grids())
	return w.Grids()
}

func read(t *testing.T, reg *schema.Registry, store sheetStore, name, sheet string) (models.Object, *Reader, error) {
	t.Helper()
	typ, err := reg.Describe(name)
	require.NoError(t, err)
	r := NewReader(codec.NewDefault(), store.names())
	asm, err := r.Plan(typ, sheet)
	if err != nil {
		return nil, r, err
	}
	require.NoError(t, r.Deliver(store.fetch(r.Ranges())))
	obj, err := asm()
	return obj, r, err
}

func TestMatrixRoundTrip(t *testing.T) {
	reg := registry(t, schema.NewType("M").Sheet("M").Field("cells", "int32", schema.Fixed(3, 3)))
	store := sheetStore{}

	matrix := []any{
		[]any{int32(1), int32(2), int32(3)},
		[]any{int32(4), int32(5), int32(6)},
		[]any{int32(7), int32(8), int32(9)},
	}
	grids := write(t, reg, store, "M", "M", models.Object{"cells": matrix})
	require.Len(t, grids, 1)
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}, {"7", "8", "9"}}, grids[0].Values)

	obj, _, err := read(t, reg, store, "M", "M")
	require.NoError(t, err)
	assert.Equal(t, matrix, obj["cells"])
}

func TestTypedSlicesAreAccepted(t *testing.T) {
	reg := registry(t, schema.NewType("M").Sheet("M").Field("cells", "int32", schema.Fixed(2, 2)))
	store := sheetStore{}

	write(t, reg, store, "M", "M", models.Object{"cells": [][]int32{{1, 2}, {3, 4}}})
	obj, _, err := read(t, reg, store, "M", "M")
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{int32(1), int32(2)}, []any{int32(3), int32(4)}}, obj["cells"])
}

func TestFreeArrayLength(t *testing.T) {
	reg := registry(t, schema.NewType("L").Sheet("L").Field("items", "int32", schema.Rank(1)))

	for n := 0; n < 20; n += 3 {
		store := sheetStore{}
		items := make([]any, n)
		for i := range items {
			items[i] = int32(i * 10)
		}
		write(t, reg, store, "L", "L", models.Object{"items": items})

		obj, _, err := read(t, reg, store, "L", "L")
		require.NoError(t, err, "n=%d", n)
		assert.Len(t, obj["items"], n, "n=%d", n)
		assert.Equal(t, items, obj["items"], "n=%d", n)
	}
}

func TestNestedFreeRanksPastOneThousandRows(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(
		schema.NewType("Inner").Field("vals", "string", schema.Rank(1)),
		schema.NewType("Outer").Sheet("O").Field("items", "Inner", schema.Rank(1)),
	))
	typ, err := reg.Describe("Outer")
	require.NoError(t, err)
	assert.Equal(t, schema.Size{W: 1, H: 10000}, typ.Size)

	items := make([]any, 15)
	for i := range items {
		items[i] = models.Object{"vals": []any{fmt.Sprintf("v%d", i), "x"}}
	}
	store := sheetStore{}
	grids := write(t, reg, store, "Outer", "O", models.Object{"items": items})
	require.Len(t, grids, 1)
	assert.Equal(t, "'O'!B2:B10001", grids[0].Range.String())

	obj, _, err := read(t, reg, store, "Outer", "O")
	require.NoError(t, err)
	assert.Equal(t, items, obj["items"])
}

func TestShorterRewriteClearsStaleElements(t *testing.T) {
	reg := registry(t, schema.NewType("L").Sheet("L").Field("items", "string", schema.Rank(1)))
	store := sheetStore{}

	write(t, reg, store, "L", "L", models.Object{"items": []any{"a", "b", "c", "d"}})
	write(t, reg, store, "L", "L", models.Object{"items": []any{"x"}})

	obj, _, err := read(t, reg, store, "L", "L")
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, obj["items"])
}

func TestEndToEndTitleTags(t *testing.T) {
	reg := registry(t, schema.NewType("Post").Sheet("X").
		Field("title", "string").
		Field("tags", "string", schema.Rank(1)))
	store := sheetStore{}

	in := models.Object{"title": "A", "tags": []any{"p", "q"}}
	grids := write(t, reg, store, "Post", "X", in)

	require.Len(t, grids, 1)
	assert.Equal(t, "X", grids[0].Sheet())
	assert.Equal(t, address.Anchor, grids[0].Range.Start)
	assert.Equal(t, "'X'!B2:C21", grids[0].Range.String())
	assert.Equal(t, [][]string{{"A", "p"}, {"", "q"}}, grids[0].Values)

	out, r, err := read(t, reg, store, "Post", "X")
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Empty(t, r.Issues())
}

func TestFreeWalkStopsAtFirstGap(t *testing.T) {
	reg := registry(t, schema.NewType("L").Sheet("L").Field("items", "string", schema.Rank(1)))
	store := sheetStore{"L": {
		{Col: 1, Row: 1}: "p",
		{Col: 1, Row: 3}: "q",
	}}

	obj, _, err := read(t, reg, store, "L", "L")
	require.NoError(t, err)
	assert.Equal(t, []any{"p"}, obj["items"])
}

func sheetTypes(optional bool) []*schema.TypeDef {
	var opts []schema.FieldOption
	if optional {
		opts = append(opts, schema.Optional())
	}
	return []*schema.TypeDef{
		schema.NewType("Stats").Sheet("Stats").Field("score", "int32"),
		schema.NewType("Player").Sheet("Player").
			Field("name", "string").
			Field("stats", "Stats", opts...),
	}
}

func TestMissingRequiredSubSheetFailsRead(t *testing.T) {
	reg := registry(t, sheetTypes(false)...)
	store := sheetStore{}
	write(t, reg, store, "Player", "Player", models.Object{"name": "ann", "stats": models.Object{"score": 3}})
	delete(store, "Stats")

	_, r, err := read(t, reg, store, "Player", "Player")
	var mde *MissingDataError
	require.ErrorAs(t, err, &mde)
	assert.Equal(t, "Stats", mde.Sheet)
	assert.Empty(t, r.Ranges(), "a failed plan must not need a fetch")
}

func TestMissingOptionalSubSheetIsDefaulted(t *testing.T) {
	reg := registry(t, sheetTypes(true)...)
	store := sheetStore{}
	write(t, reg, store, "Player", "Player", models.Object{"name": "ann"})
	_, hasStats := store["Stats"]
	require.False(t, hasStats)

	obj, _, err := read(t, reg, store, "Player", "Player")
	require.NoError(t, err)
	assert.Equal(t, "ann", obj["name"])
	assert.Nil(t, obj["stats"])
}

func TestSubSheetRoundTrip(t *testing.T) {
	reg := registry(t, sheetTypes(false)...)
	store := sheetStore{}
	in := models.Object{"name": "ann", "stats": models.Object{"score": int32(42)}}
	grids := write(t, reg, store, "Player", "Player", in)
	require.Len(t, grids, 2)
	assert.Equal(t, "Player", grids[0].Sheet())
	assert.Equal(t, "Stats", grids[1].Sheet())

	obj, r, err := read(t, reg, store, "Player", "Player")
	require.NoError(t, err)
	assert.Equal(t, in, obj)
	assert.Len(t, r.Ranges(), 2)
}

func TestMissingBlockSheet(t *testing.T) {
	reg := registry(t,
		schema.NewType("Req").Sheet("Req").Field("v", "int32"),
		schema.NewType("Opt").Sheet("Opt").Field("v", "int32", schema.Optional()).Field("w", "string", schema.Optional()))

	_, _, err := read(t, reg, sheetStore{}, "Req", "Req")
	assert.ErrorIs(t, err, ErrMissingData)

	obj, _, err := read(t, reg, sheetStore{}, "Opt", "Opt")
	require.NoError(t, err)
	assert.Equal(t, models.Object{"v": int32(0), "w": ""}, obj)
}

func TestValueFormatErrorDefaultsAndContinues(t *testing.T) {
	reg := registry(t, schema.NewType("T").Sheet("T").
		Field("n", "int32").
		Field("ok", "bool").
		Field("list", "float64", schema.Rank(1)))
	store := sheetStore{"T": {
		{Col: 1, Row: 1}: "twelve",
		{Col: 2, Row: 1}: "TRUE",
		{Col: 3, Row: 1}: "1.5",
		{Col: 3, Row: 2}: "oops",
		{Col: 3, Row: 3}: "2.5",
	}}

	obj, r, err := read(t, reg, store, "T", "T")
	require.NoError(t, err)
	assert.Equal(t, int32(0), obj["n"])
	assert.Equal(t, true, obj["ok"])
	assert.Equal(t, []any{1.5, float64(0), 2.5}, obj["list"])

	issues := r.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "T.n", issues[0].Field)
	assert.Equal(t, "B2", issues[0].Cell)
	var fe *codec.FormatError
	assert.ErrorAs(t, issues[1], &fe)
	assert.Equal(t, "D3", issues[1].Cell)
}

func TestRequiredFieldMissing(t *testing.T) {
	reg := registry(t, schema.NewType("T").Sheet("T").
		Field("a", "string").
		Field("b", "int32").
		Field("c", "int32", schema.Optional()))
	store := sheetStore{"T": {{Col: 1, Row: 1}: "x"}}

	_, _, err := read(t, reg, store, "T", "T")
	var mde *MissingDataError
	require.ErrorAs(t, err, &mde)
	assert.Equal(t, "T.b", mde.Field)
	assert.Equal(t, "C2", mde.Cell)

	store["T"][address.Cell{Col: 2, Row: 1}] = "7"
	obj, _, err := read(t, reg, store, "T", "T")
	require.NoError(t, err)
	assert.Equal(t, models.Object{"a": "x", "b": int32(7), "c": int32(0)}, obj)
}

func TestFixedArrayPartiallyPresent(t *testing.T) {
	cells := map[address.Cell]string{
		{Col: 1, Row: 1}: "1",
		{Col: 1, Row: 3}: "3",
	}
	req := registry(t, schema.NewType("T").Sheet("T").Field("v", "int32", schema.Fixed(3)))
	_, _, err := read(t, req, sheetStore{"T": cells}, "T", "T")
	assert.ErrorIs(t, err, ErrMissingData)

	opt := registry(t, schema.NewType("T").Sheet("T").Field("v", "int32", schema.Fixed(3), schema.Optional()))
	obj, _, err := read(t, opt, sheetStore{"T": cells}, "T", "T")
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1), int32(0), int32(3)}, obj["v"])
}

func TestObjectArrays(t *testing.T) {
	reg := registry(t,
		schema.NewType("Item").Field("id", "int32").Field("label", "string", schema.Optional()),
		schema.NewType("Inv").Sheet("Inv").
			Field("owner", "string").
			Field("items", "Item", schema.Rank(1)).
			Field("when", "datetime"))
	store := sheetStore{}

	when := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := models.Object{
		"owner": "bob",
		"items": []any{
			models.Object{"id": int32(1), "label": "sword"},
			models.Object{"id": int32(2), "label": ""},
			models.Object{"id": int32(3), "label": "shield"},
		},
		"when": when,
	}
	write(t, reg, store, "Inv", "Inv", in)

	obj, _, err := read(t, reg, store, "Inv", "Inv")
	require.NoError(t, err)
	assert.Equal(t, "bob", obj["owner"])
	assert.True(t, when.Equal(obj["when"].(time.Time)))
	assert.Equal(t, in["items"], obj["items"])
}

func TestSheetArrays(t *testing.T) {
	reg := registry(t,
		schema.NewType("Level").Sheet("Level").Field("name", "string").Field("size", "int32"),
		schema.NewType("Game").Sheet("Game").
			Field("title", "string").
			Field("levels", "Level", schema.Rank(1)))
	store := sheetStore{}

	levels := []any{
		models.Object{"name": "intro", "size": int32(1)},
		models.Object{"name": "cave", "size": int32(2)},
		models.Object{"name": "boss", "size": int32(3)},
	}
	write(t, reg, store, "Game", "Game", models.Object{"title": "g", "levels": levels})
	assert.Equal(t, []string{"Game", "Level 0", "Level 1", "Level 2"}, store.names())

	obj, r, err := read(t, reg, store, "Game", "Game")
	require.NoError(t, err)
	assert.Equal(t, levels, obj["levels"])
	assert.Len(t, r.Pending(), 4)
}

func TestEmptyFreeSheetArray(t *testing.T) {
	reg := registry(t,
		schema.NewType("Level").Sheet("Level").Field("name", "string"),
		schema.NewType("Game").Sheet("Game").Field("title", "string").Field("levels", "Level", schema.Rank(1)))
	store := sheetStore{}
	write(t, reg, store, "Game", "Game", models.Object{"title": "g"})

	obj, _, err := read(t, reg, store, "Game", "Game")
	require.NoError(t, err)
	assert.Equal(t, []any{}, obj["levels"])
}

func TestWriteErrors(t *testing.T) {
	reg := registry(t, schema.NewType("T").Sheet("T").
		Field("n", "int32").
		Field("few", "int32", schema.Fixed(2), schema.Optional()))
	typ, err := reg.Describe("T")
	require.NoError(t, err)

	w := NewWriter(codec.NewDefault())
	err = w.Write(typ, "T", models.Object{})
	assert.ErrorIs(t, err, ErrMissingData)

	w = NewWriter(codec.NewDefault())
	err = w.Write(typ, "T", models.Object{"n": 1, "few": []any{1, 2, 3}})
	assert.ErrorIs(t, err, ErrTooManyElements)

	w = NewWriter(codec.NewDefault())
	err = w.Write(typ, "T", models.Object{"n": "seven"})
	var vfe *ValueFormatError
	assert.ErrorAs(t, err, &vfe)
}

func TestBatchMergesSameKey(t *testing.T) {
	b := newBatch()
	var got []*models.Grid
	b.register(address.NewRange("S", address.Anchor, 1, 1), func(g *models.Grid) { got = append(got, g) })
	b.register(address.NewRange("S", address.Anchor, 3, 2), func(g *models.Grid) { got = append(got, g) })

	ranges := b.ranges()
	require.Len(t, ranges, 1)
	assert.Equal(t, "'S'!B2:D3", ranges[0].String())

	g := models.NewGrid(ranges[0])
	require.NoError(t, b.deliver([]*models.Grid{g}))
	assert.Len(t, got, 2)
}

func TestDeliverFallsBackToPosition(t *testing.T) {
	b := newBatch()
	var got *models.Grid
	b.register(address.NewRange("S", address.Anchor, 2, 2), func(g *models.Grid) { got = g })

	g := models.NewGrid(address.Range{Sheet: "S", Start: address.Cell{Col: 1, Row: 2}, End: address.Cell{Col: 2, Row: 2}})
	require.NoError(t, b.deliver([]*models.Grid{g}))
	assert.Same(t, g, got)

	err := b.deliver([]*models.Grid{nil, models.NewGrid(address.NewRange("Z", address.Cell{}, 1, 1))})
	assert.Error(t, err)
}
