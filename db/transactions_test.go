package db

import (
	"bytes"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestLoadClimateState_Empty(t *testing.T) {
	db := openMemory(t)

	_, ok, err := LoadClimateState(db)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAndLoadClimateState(t *testing.T) {
	db := openMemory(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	err := SaveClimateState(db, model.ClimateState{
		Mode:       model.ModeAuto,
		TargetLow:  model.Float(19.5),
		TargetHigh: model.Float(24),
		Away:       true,
	})
	require.NoError(t, err)

	st, ok, err := LoadClimateState(db)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.ModeAuto, st.Mode)
	assert.Nil(t, st.Target)
	assert.Equal(t, 19.5, *st.TargetLow)
	assert.Equal(t, 24.0, *st.TargetHigh)
	assert.True(t, st.Away)
	assert.Equal(t, model.ActionOff, st.Action)
	assert.True(t, fixed.Equal(st.UpdatedAt))

	// a second save overwrites the single row
	err = SaveClimateState(db, model.ClimateState{Mode: model.ModeHeat, Target: model.Float(21)})
	require.NoError(t, err)

	st, ok, err = LoadClimateState(db)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.ModeHeat, st.Mode)
	assert.Equal(t, 21.0, *st.Target)
	assert.Nil(t, st.TargetLow)
	assert.False(t, st.Away)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM climate_state`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestUpdateFunctions(t *testing.T) {
	db := openMemory(t)

	t.Run("fail before first save", func(t *testing.T) {
		assert.Error(t, UpdateMode(db, model.ModeCool))
	})

	require.NoError(t, SaveClimateState(db, model.ClimateState{
		Mode:       model.ModeAuto,
		TargetLow:  model.Float(18),
		TargetHigh: model.Float(25),
	}))

	t.Run("mode", func(t *testing.T) {
		require.NoError(t, UpdateMode(db, model.ModeCool))
		st, _, err := LoadClimateState(db)
		require.NoError(t, err)
		assert.Equal(t, model.ModeCool, st.Mode)
	})

	t.Run("targets", func(t *testing.T) {
		require.NoError(t, UpdateTargets(db, nil, model.Float(17), model.Float(26)))
		st, _, err := LoadClimateState(db)
		require.NoError(t, err)
		assert.Equal(t, 17.0, *st.TargetLow)
		assert.Equal(t, 26.0, *st.TargetHigh)
	})

	t.Run("away", func(t *testing.T) {
		require.NoError(t, UpdateAway(db, true))
		st, _, err := LoadClimateState(db)
		require.NoError(t, err)
		assert.True(t, st.Away)
	})

	t.Run("action", func(t *testing.T) {
		require.NoError(t, UpdateAction(db, model.ActionCooling))
		st, _, err := LoadClimateState(db)
		require.NoError(t, err)
		assert.Equal(t, model.ActionCooling, st.Action)

		// saving user state keeps the recorded action
		require.NoError(t, SaveClimateState(db, st.ClimateState))
		st, _, err = LoadClimateState(db)
		require.NoError(t, err)
		assert.Equal(t, model.ActionCooling, st.Action)
	})
}

func TestMigrate_AddsActionColumn(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	// first release schema, without the action column
	_, err = db.Exec(`CREATE TABLE climate_state (
		id INTEGER PRIMARY KEY CHECK(id=1),
		mode TEXT NOT NULL,
		target REAL,
		target_low REAL,
		target_high REAL,
		away BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO climate_state (id, mode, target, away, updated_at) VALUES (1, 'heat', 20.5, FALSE, '2025-11-01T10:00:00Z')`)
	require.NoError(t, err)

	columns, err := tableColumns(db, "climate_state")
	require.NoError(t, err)
	assert.False(t, columns["action"], "action should not exist before migration")

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrate is idempotent")

	st, ok, err := LoadClimateState(db)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.ModeHeat, st.Mode)
	assert.Equal(t, 20.5, *st.Target)
	assert.Equal(t, model.ActionOff, st.Action)
}

func TestStore(t *testing.T) {
	store := NewStore(openMemory(t))

	_, ok, err := store.Restore()
	require.NoError(t, err)
	assert.False(t, ok)

	saved := model.ClimateState{Mode: model.ModeCool, Target: model.Float(23)}
	require.NoError(t, store.SaveClimateState(saved))
	require.NoError(t, store.RecordAction(model.ActionIdle))

	restored, ok, err := store.Restore()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, saved, restored)
}

func TestCLIHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "climate.db")

	var out bytes.Buffer
	require.NoError(t, ShowStateCLI(path, &out))
	assert.Contains(t, out.String(), "No climate state saved yet")

	dbConn, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, SaveClimateState(dbConn, model.ClimateState{Mode: model.ModeAuto, TargetLow: model.Float(19), TargetHigh: model.Float(24)}))
	dbConn.Close()

	assert.Error(t, SetModeCLI(path, "turbo"))
	require.NoError(t, SetModeCLI(path, "heat"))
	require.NoError(t, SetTargetsCLI(path, nil, model.Float(20), model.Float(23)))
	require.NoError(t, SetAwayCLI(path, true))

	out.Reset()
	require.NoError(t, ShowStateCLI(path, &out))
	assert.Contains(t, out.String(), "mode:        heat")
	assert.Contains(t, out.String(), "target_low:  20.0°C")
	assert.Contains(t, out.String(), "target:      -")
	assert.Contains(t, out.String(), "away:        true")
}

func TestSaveClimateState_Errors(t *testing.T) {
	state := model.ClimateState{Mode: model.ModeOff}

	t.Run("begin fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

		err = SaveClimateState(db, state)
		assert.ErrorContains(t, err, "failed to start transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec fails and rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO climate_state").WillReturnError(errors.New("disk I/O error"))
		mock.ExpectRollback()

		err = SaveClimateState(db, state)
		assert.ErrorContains(t, err, "save climate state")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO climate_state").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit().WillReturnError(errors.New("disk full"))

		err = SaveClimateState(db, state)
		assert.ErrorContains(t, err, "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateMode_NoRowRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE climate_state SET mode").
		WithArgs("heat", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = UpdateMode(db, model.ModeHeat)
	assert.ErrorContains(t, err, "no climate state saved yet")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadClimateState_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT mode, target").WillReturnError(errors.New("no such table: climate_state"))

	_, ok, err := LoadClimateState(db)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "query climate state")
	assert.NoError(t, mock.ExpectationsWereMet())
}
