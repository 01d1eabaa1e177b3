package db

import (
	"database/sql"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

// Store adapts a database handle to the controller's restore and save hooks.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Restore() (model.ClimateState, bool, error) {
	st, ok, err := LoadClimateState(s.db)
	if err != nil || !ok {
		return model.ClimateState{}, ok, err
	}
	return st.ClimateState, true, nil
}

func (s *Store) SaveClimateState(state model.ClimateState) error {
	return SaveClimateState(s.db, state)
}

func (s *Store) RecordAction(action model.Action) error {
	return UpdateAction(s.db, action)
}
