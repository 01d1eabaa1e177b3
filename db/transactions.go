package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

var now = time.Now

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

// SaveClimateState upserts the user-owned state, leaving the action column alone.
func SaveClimateState(db *sql.DB, s model.ClimateState) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	if err := saveWithTx(tx, s); err != nil {
		RollbackTransaction(tx)
		return err
	}
	return CommitTransaction(tx)
}

func saveWithTx(tx *sql.Tx, s model.ClimateState) error {
	_, err := tx.Exec(`INSERT INTO climate_state (id, mode, target, target_low, target_high, away, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			target = excluded.target,
			target_low = excluded.target_low,
			target_high = excluded.target_high,
			away = excluded.away,
			updated_at = excluded.updated_at`,
		string(s.Mode), floatArg(s.Target), floatArg(s.TargetLow), floatArg(s.TargetHigh), s.Away, now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save climate state: %w", err)
	}
	return nil
}

// updateRow runs a single-row UPDATE and fails when no state has been saved yet.
func updateRow(db *sql.DB, what, query string, args ...interface{}) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	args = append(args, now().UTC().Format(time.RFC3339))
	res, err := tx.Exec(query, args...)
	if err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("update %s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		RollbackTransaction(tx)
		return fmt.Errorf("update %s: no climate state saved yet", what)
	}
	return CommitTransaction(tx)
}

func UpdateMode(db *sql.DB, mode model.Mode) error {
	return updateRow(db, "mode", `UPDATE climate_state SET mode = ?, updated_at = ? WHERE id = 1`, string(mode))
}

// UpdateTargets overwrites the set points. nil clears a column.
func UpdateTargets(db *sql.DB, target, low, high *float64) error {
	return updateRow(db, "targets", `UPDATE climate_state SET target = ?, target_low = ?, target_high = ?, updated_at = ? WHERE id = 1`,
		floatArg(target), floatArg(low), floatArg(high))
}

func UpdateAway(db *sql.DB, away bool) error {
	return updateRow(db, "away", `UPDATE climate_state SET away = ?, updated_at = ? WHERE id = 1`, away)
}

// UpdateAction records the last action for diagnostics. It is never restored.
func UpdateAction(db *sql.DB, action model.Action) error {
	return updateRow(db, "action", `UPDATE climate_state SET action = ?, updated_at = ? WHERE id = 1`, string(action))
}
