package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

// StoredState is the full climate_state row.
type StoredState struct {
	model.ClimateState
	Action    model.Action
	UpdatedAt time.Time
}

// LoadClimateState returns the saved state. ok is false when nothing was saved yet.
func LoadClimateState(db *sql.DB) (StoredState, bool, error) {
	var (
		st                      StoredState
		mode, action, updatedAt string
		target, low, high       sql.NullFloat64
	)

	err := db.QueryRow(`SELECT mode, target, target_low, target_high, away, action, updated_at FROM climate_state WHERE id = 1`).
		Scan(&mode, &target, &low, &high, &st.Away, &action, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredState{}, false, nil
	}
	if err != nil {
		return StoredState{}, false, fmt.Errorf("query climate state: %w", err)
	}

	st.Mode = model.Mode(mode)
	st.Action = model.Action(action)
	st.Target = nullFloat(target)
	st.TargetLow = nullFloat(low)
	st.TargetHigh = nullFloat(high)
	st.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return st, true, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Float(v.Float64)
}

func floatArg(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
