package gridmap_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukaji3/gridmap-go/pkg/gridmap"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/address"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend/memory"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/backend/xlsx"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/models"
	"github.com/ukaji3/gridmap-go/pkg/gridmap/schema"
)

func gameRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry(schema.WithMaxElements(10))
	require.NoError(t, reg.Register(
		schema.NewType("Point").Field("x", "int32").Field("y", "int32"),
		schema.NewType("Level").Sheet("Level").
			Field("name", "string").
			Field("spawns", "Point", schema.Rank(1)),
		schema.NewType("Settings").Sheet("Settings").
			Field("volume", "float64").
			Field("muted", "bool", schema.Optional()),
		schema.NewType("Game").Sheet("Game").
			Field("title", "string").
			Field("board", "int32", schema.Fixed(3, 3)).
			Field("levels", "Level", schema.Rank(1)).
			Field("settings", "Settings"),
	))
	return reg
}

func sampleGame() models.Object {
	return models.Object{
		"title": "quest",
		"board": []any{
			[]any{int32(1), int32(0), int32(2)},
			[]any{int32(0), int32(3), int32(0)},
			[]any{int32(4), int32(0), int32(5)},
		},
		"levels": []any{
			models.Object{"name": "intro", "spawns": []any{
				models.Object{"x": int32(1), "y": int32(2)},
			}},
			models.Object{"name": "cave", "spawns": []any{
				models.Object{"x": int32(3), "y": int32(4)},
				models.Object{"x": int32(5), "y": int32(6)},
			}},
		},
		"settings": models.Object{"volume": 0.5, "muted": true},
	}
}

func newMapper(store backend.Gateway, reg *schema.Registry) *gridmap.Mapper {
	opts := gridmap.DefaultOptions()
	opts.Document = "doc"
	return gridmap.New(store, reg, opts)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := newMapper(store, gameRegistry(t))

	wr, err := m.Write(ctx, "Game", "", sampleGame())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Game", "Level 0", "Level 1", "Settings"}, wr.Created)
	assert.Len(t, wr.Grids, 4)
	assert.Equal(t, 20, wr.Cells)

	rr, err := m.Read(ctx, "Game", "")
	require.NoError(t, err)
	assert.Equal(t, sampleGame(), rr.Object)
	assert.Empty(t, rr.Issues)
}

func TestReadIsOneListAndOneBatchGet(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := newMapper(store, gameRegistry(t))
	_, err := m.Write(ctx, "Game", "", sampleGame())
	require.NoError(t, err)

	lists, gets := store.Calls(backend.OpListSheets), store.Calls(backend.OpBatchGet)
	rr, err := m.Read(ctx, "Game", "")
	require.NoError(t, err)
	assert.Equal(t, lists+1, store.Calls(backend.OpListSheets))
	assert.Equal(t, gets+1, store.Calls(backend.OpBatchGet))
	assert.Len(t, rr.Grids, 4)
}

func TestSchemaErrorBeforeAnyIO(t *testing.T) {
	store := memory.New()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(schema.NewType("Empty").Sheet("Empty")))
	m := newMapper(store, reg)

	_, err := m.Read(context.Background(), "Empty", "")
	var se *gridmap.SchemaError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, schema.ErrNoFields)

	_, err = m.Write(context.Background(), "Nope", "", models.Object{})
	assert.ErrorIs(t, err, gridmap.ErrUnknownType)

	assert.Zero(t, store.Calls(backend.OpListSheets))
	assert.Zero(t, store.Calls(backend.OpBatchGet))
}

func TestCompactTypeNeedsSheet(t *testing.T) {
	store := memory.New()
	m := newMapper(store, gameRegistry(t))

	_, err := m.Read(context.Background(), "Point", "")
	assert.ErrorIs(t, err, gridmap.ErrNoSheet)

	ctx := context.Background()
	_, err = m.Write(ctx, "Point", "Origin", models.Object{"x": 1, "y": 2})
	require.NoError(t, err)
	rr, err := m.Read(ctx, "Point", "Origin")
	require.NoError(t, err)
	assert.Equal(t, models.Object{"x": int32(1), "y": int32(2)}, rr.Object)
}

func TestMissingSubSheet(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := newMapper(store, gameRegistry(t))
	_, err := m.Write(ctx, "Game", "", sampleGame())
	require.NoError(t, err)
	store.DeleteSheet("doc", "Settings")

	_, err = m.Read(ctx, "Game", "")
	var mde *gridmap.MissingDataError
	require.ErrorAs(t, err, &mde)
	assert.Equal(t, "Settings", mde.Sheet)
	var me *gridmap.MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "read", me.Op)
	assert.Equal(t, "Game", me.Type)
}

func TestValueFormatIssues(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := newMapper(store, gameRegistry(t))
	_, err := m.Write(ctx, "Settings", "", models.Object{"volume": 0.25})
	require.NoError(t, err)
	store.Put("doc", "Settings", address.Anchor, "loud")

	rr, err := m.Read(ctx, "Settings", "")
	require.NoError(t, err)
	assert.Equal(t, models.Object{"volume": float64(0), "muted": false}, rr.Object)
	require.Len(t, rr.Issues, 1)
	assert.Equal(t, "Settings.volume", rr.Issues[0].Field)
}

func TestTransientReadsAreRetried(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	retries := 3
	opts := gridmap.DefaultOptions()
	opts.Document = "doc"
	opts.MaxRetries = &retries
	m := gridmap.New(store, gameRegistry(t), opts)

	_, err := m.Write(ctx, "Settings", "", models.Object{"volume": 1.0})
	require.NoError(t, err)

	store.FailWith(func(op, doc string, call int) error {
		if op == backend.OpBatchGet && call == 1 {
			return backend.ErrTransient
		}
		return nil
	})
	rr, err := m.Read(ctx, "Settings", "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rr.Object["volume"])
	assert.Equal(t, 2, store.Calls(backend.OpBatchGet))
}

func TestExhaustedRetriesFailTheRead(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	retries := 1
	opts := gridmap.DefaultOptions()
	opts.Document = "doc"
	opts.MaxRetries = &retries
	opts.Serialize = true
	m := gridmap.New(store, gameRegistry(t), opts)
	defer m.Close()

	_, err := m.Write(ctx, "Settings", "", models.Object{"volume": 1.0})
	require.NoError(t, err)

	store.FailWith(func(op, doc string, call int) error {
		if op == backend.OpBatchGet {
			return backend.ErrTransient
		}
		return nil
	})
	_, err = m.Read(ctx, "Settings", "")
	assert.ErrorIs(t, err, gridmap.ErrRetriesExhausted)
	assert.ErrorIs(t, err, gridmap.ErrTransient)
	assert.Equal(t, 2, store.Calls(backend.OpBatchGet))
}

func TestFailedUpdateIsNotRetried(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := newMapper(store, gameRegistry(t))
	store.FailWith(func(op, doc string, call int) error {
		if op == backend.OpBatchUpdate {
			return backend.ErrTransient
		}
		return nil
	})

	_, err := m.Write(ctx, "Settings", "", models.Object{"volume": 1.0})
	var be *gridmap.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, backend.OpBatchUpdate, be.Op)
	assert.Equal(t, 1, store.Calls(backend.OpBatchUpdate))
}

func TestReadAll(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	opts := gridmap.DefaultOptions()
	opts.Document = "doc"
	opts.Parallelism = 2
	m := gridmap.New(store, gameRegistry(t), opts)

	var reqs []gridmap.ReadRequest
	for i := 0; i < 6; i++ {
		sheet := fmt.Sprintf("Origin %d", i)
		_, err := m.Write(ctx, "Point", sheet, models.Object{"x": i, "y": -i})
		require.NoError(t, err)
		reqs = append(reqs, gridmap.ReadRequest{Type: "Point", Sheet: sheet})
	}

	results, err := m.ReadAll(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for i, rr := range results {
		assert.Equal(t, int32(i), rr.Object["x"])
		assert.Equal(t, int32(-i), rr.Object["y"])
	}

	reqs = append(reqs, gridmap.ReadRequest{Type: "Point", Sheet: "Nowhere"})
	_, err = m.ReadAll(ctx, reqs)
	assert.ErrorIs(t, err, gridmap.ErrMissingData)
}

func TestSerializedMapper(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	opts := gridmap.DefaultOptions()
	opts.Document = "doc"
	opts.Serialize = true
	m := gridmap.New(store, gameRegistry(t), opts)

	_, err := m.Write(ctx, "Game", "", sampleGame())
	require.NoError(t, err)
	rr, err := m.Read(ctx, "Game", "")
	require.NoError(t, err)
	assert.Equal(t, sampleGame(), rr.Object)

	require.NoError(t, m.Close())
	_, err = m.Read(ctx, "Game", "")
	assert.True(t, errors.Is(err, backend.ErrClosed))
}

func TestWorkbookRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := xlsx.New(t.TempDir(), nil)
	opts := gridmap.DefaultOptions()
	opts.Document = "game"
	m := gridmap.New(gw, gameRegistry(t), opts)

	_, err := m.Write(ctx, "Game", "", sampleGame())
	require.NoError(t, err)
	sheets, err := gw.ListSheets(ctx, "game")
	require.NoError(t, err)
	assert.Equal(t, []string{"Game", "Level 0", "Level 1", "Settings"}, sheets)

	rr, err := m.Read(ctx, "Game", "")
	require.NoError(t, err)
	assert.Equal(t, sampleGame(), rr.Object)

	shorter := sampleGame()
	shorter["levels"] = []any{models.Object{"name": "only", "spawns": []any{}}}
	_, err = m.Write(ctx, "Game", "", shorter)
	require.NoError(t, err)
	rr, err = m.Read(ctx, "Game", "")
	require.NoError(t, err)
	// Stale "Level 1" still exists on the workbook and is read back.
	assert.Len(t, rr.Object.List("levels"), 2)
	assert.Equal(t, "only", rr.Object.List("levels")[0].(models.Object)["name"])
}
