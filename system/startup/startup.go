package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/thatsimonsguy/climate-controller/internal/config"
	"github.com/thatsimonsguy/climate-controller/internal/env"
	"github.com/thatsimonsguy/climate-controller/internal/pinctrl"
)

// BootScript renders a shell script that drives every relay pin to its
// inactive level, so the plant stays off until the controller takes over.
func BootScript(cfg *config.Config) string {
	lines := []string{"#!/bin/bash", "", "# Climate relay pin configuration at boot", ""}

	for _, named := range cfg.NamedRelays() {
		for i, pin := range named.Relay.Pins {
			label := named.Name
			if len(named.Relay.Pins) > 1 {
				label = fmt.Sprintf("%s.%d", named.Name, i)
			}
			lines = append(lines, "# "+label)
			lines = append(lines, fmt.Sprintf("pinctrl set %d op pn %s", pin.Number, pinctrl.DriveArg(pin.ActiveHigh, false)))
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func WriteStartupScript() error {
	return os.WriteFile(env.Cfg.BootScriptFilePath, []byte(BootScript(env.Cfg)), 0755)
}

func InstallStartupService() error {
	unitContents := fmt.Sprintf(`[Unit]
Description=Configure climate relay pins at boot
After=network.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, env.Cfg.BootScriptFilePath)

	return os.WriteFile(env.Cfg.OSServicePath, []byte(unitContents), 0644)
}

func RunStartupScript() error {
	cmd := exec.Command("/bin/bash", env.Cfg.BootScriptFilePath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ClimateServiceUnit renders the main service unit. It runs after the relay
// unit so pins are parked before the controller starts.
func ClimateServiceUnit(cfg *config.Config, binary string) string {
	relayUnit := filepath.Base(cfg.OSServicePath)

	args := []string{binary}
	if cfg.ConfigFile != "" {
		args = append(args, "-config-file", cfg.ConfigFile)
	}
	if cfg.DBPath != "" {
		args = append(args, "-db", cfg.DBPath)
	}

	return fmt.Sprintf(`[Unit]
Description=Climate controller main service
After=%s
Requires=%s

[Service]
Type=simple
WorkingDirectory=%s
ExecStart=%s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, relayUnit, relayUnit, filepath.Dir(binary), strings.Join(args, " "))
}

// InstallClimateService writes the main unit pointing at binary. An empty
// binary means the currently running executable.
func InstallClimateService(binary string) error {
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		binary = exe
	}
	return os.WriteFile(env.Cfg.MainServicePath, []byte(ClimateServiceUnit(env.Cfg, binary)), 0644)
}
