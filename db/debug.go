package db

import (
	"fmt"
	"io"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

// The CLI helpers edit the saved state while the controller is stopped.
// A running controller only picks the changes up on its next start.

func SetModeCLI(dbPath, mode string) error {
	m := model.Mode(mode)
	if !m.Valid() {
		return fmt.Errorf("invalid mode %q", mode)
	}
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	return UpdateMode(dbConn, m)
}

func SetTargetsCLI(dbPath string, target, low, high *float64) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	return UpdateTargets(dbConn, target, low, high)
}

func SetAwayCLI(dbPath string, away bool) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	return UpdateAway(dbConn, away)
}

func ShowStateCLI(dbPath string, w io.Writer) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	st, ok, err := LoadClimateState(dbConn)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "No climate state saved yet")
		return nil
	}

	fmt.Fprintf(w, "mode:        %s\n", st.Mode)
	fmt.Fprintf(w, "action:      %s\n", st.Action)
	fmt.Fprintf(w, "target:      %s\n", formatTemp(st.Target))
	fmt.Fprintf(w, "target_low:  %s\n", formatTemp(st.TargetLow))
	fmt.Fprintf(w, "target_high: %s\n", formatTemp(st.TargetHigh))
	fmt.Fprintf(w, "away:        %t\n", st.Away)
	fmt.Fprintf(w, "updated_at:  %s\n", st.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func formatTemp(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f°C", *v)
}
