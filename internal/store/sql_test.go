package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiguide/internal/config"
	"optiguide/internal/model"
	"optiguide/internal/scenario"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleNetwork() model.Network {
	inv := 100.0
	return model.Network{
		Supply: []model.SupplyNode{
			{ID: 1, Name: "WH_1", Location: model.GeoPoint{Lat: 40.7, Lon: -74.0}, Inventory: &inv},
			{ID: 2, Name: "WH_2", Location: model.GeoPoint{Lat: 34.0, Lon: -118.2}},
		},
		Demand: []model.DemandNode{
			{ID: 1, Name: "RT_1", Demand: 50, Location: model.GeoPoint{Lat: 40.73, Lon: -74.17}},
			{ID: 2, Name: "RT_2", Demand: 30},
		},
		Routes: []model.Route{
			{ID: 1, SupplyID: 1, DemandID: 1, Cost: 4},
			{ID: 2, SupplyID: 2, DemandID: 1, Cost: 9},
			{ID: 3, SupplyID: 2, DemandID: 2, Cost: 6},
		},
	}
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1", Rebind("SELECT 1"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestNewMemoryDriver(t *testing.T) {
	s, err := New(config.DatabaseConfig{Driver: "memory"})
	require.NoError(t, err)
	_, ok := s.(*Memory)
	assert.True(t, ok)
}

func TestSQLiteStore(t *testing.T) { runStoreSuite(t, testDB(t)) }

func TestMemoryStore(t *testing.T) { runStoreSuite(t, NewMemory()) }

// runStoreSuite exercises the behaviour every Store must share.
func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.SeedNetwork(ctx, sampleNetwork()))

	t.Run("baseline", func(t *testing.T) {
		n, err := LoadNetwork(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, sampleNetwork(), n)
	})

	t.Run("save then materialize", func(t *testing.T) {
		sc, err := s.SaveScenario(ctx, SaveRequest{
			Name: "demand spike",
			Overrides: []model.Override{
				{TableName: "retailers", RowID: 1, ColumnName: "demand", Value: "80"},
				{TableName: "retailers", RowID: 1, ColumnName: "demand", Value: "120"},
			},
		})
		require.NoError(t, err)
		assert.NotZero(t, sc.ID)
		assert.Equal(t, model.ScenarioSupply, sc.Type)

		rows, err := s.ListOverrides(ctx, sc.ID)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Less(t, rows[0].ID, rows[1].ID)
		assert.Equal(t, sc.ID, rows[1].ScenarioID)

		base, err := LoadNetwork(ctx, s)
		require.NoError(t, err)
		ds, err := scenario.Materialize(base, rows)
		require.NoError(t, err)
		assert.Equal(t, 120.0, ds.Demand[0].Demand)
		assert.Equal(t, 50.0, base.Demand[0].Demand)
	})

	t.Run("save by name updates existing", func(t *testing.T) {
		a, err := s.SaveScenario(ctx, SaveRequest{Name: "dup", Type: model.ScenarioTPO,
			Overrides: []model.Override{{TableName: "routes", RowID: 1, ColumnName: "cost", Value: "1"}}})
		require.NoError(t, err)
		b, err := s.SaveScenario(ctx, SaveRequest{Name: "dup", Type: model.ScenarioTPO,
			Overrides: []model.Override{{TableName: "routes", RowID: 2, ColumnName: "cost", Value: "2"}}})
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)

		rows, err := s.ListOverrides(ctx, b.ID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(2), rows[0].RowID)
	})

	t.Run("save by id renames", func(t *testing.T) {
		sc, err := s.CreateScenario(ctx, model.Scenario{Name: "old"})
		require.NoError(t, err)
		got, err := s.SaveScenario(ctx, SaveRequest{ScenarioID: sc.ID, Name: "new"})
		require.NoError(t, err)
		assert.Equal(t, "new", got.Name)
		reread, err := s.GetScenario(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", reread.Name)
		assert.False(t, reread.CreatedAt.IsZero())
	})

	t.Run("errors", func(t *testing.T) {
		_, err := s.SaveScenario(ctx, SaveRequest{Name: "  "})
		assert.ErrorIs(t, err, ErrInvalid)
		_, err = s.SaveScenario(ctx, SaveRequest{ScenarioID: 9999})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetScenario(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.ReplaceOverrides(ctx, 9999, nil), ErrNotFound)
		assert.ErrorIs(t, s.DeleteScenario(ctx, 9999), ErrNotFound)
	})

	t.Run("delete cascades", func(t *testing.T) {
		sc, err := s.SaveScenario(ctx, SaveRequest{Name: "gone",
			Overrides: []model.Override{{TableName: "warehouses", RowID: 1, ColumnName: "inventory", Value: "5"}}})
		require.NoError(t, err)
		require.NoError(t, s.DeleteScenario(ctx, sc.ID))
		rows, err := s.ListOverrides(ctx, sc.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
		_, err = s.GetScenario(ctx, sc.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list ordered", func(t *testing.T) {
		list, err := s.ListScenarios(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, list)
		for i := 1; i < len(list); i++ {
			assert.Less(t, list[i-1].ID, list[i].ID)
		}
	})
}
