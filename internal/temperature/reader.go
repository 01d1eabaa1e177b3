package temperature

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Reader returns one temperature sample in °C.
type Reader interface {
	Read() (float64, error)
}

// W1Reader reads a DS18B20 through the kernel 1-wire w1_slave file.
type W1Reader struct {
	Path string
}

// NewW1Reader builds a reader for sensor id under the w1 devices directory.
func NewW1Reader(devicesDir, id string) *W1Reader {
	if devicesDir == "" {
		devicesDir = "/sys/bus/w1/devices"
	}
	return &W1Reader{Path: filepath.Join(devicesDir, id)}
}

func (r *W1Reader) Read() (float64, error) {
	data, err := os.ReadFile(filepath.Join(r.Path, "w1_slave"))
	if err != nil {
		return 0, fmt.Errorf("read sensor data: %w", err)
	}
	return parseW1Slave(string(data))
}

// parseW1Slave parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(data string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("temperature data missing or malformed")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("sensor crc check failed")
	}

	parts := strings.Split(lines[1], "t=")
	if len(parts) != 2 {
		return 0, fmt.Errorf("could not parse temperature line %q", lines[1])
	}

	milliC, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("failed to convert temperature to int: %w", err)
	}
	return float64(milliC) / 1000.0, nil
}

// ReadWithRetries retries failed reads, waiting delay between attempts.
func ReadWithRetries(r Reader, retries int, delay time.Duration) (float64, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
		}
		temp, err := r.Read()
		if err == nil {
			return temp, nil
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("Temperature read failed")
	}
	return 0, fmt.Errorf("sensor read failed after %d attempts: %w", retries+1, lastErr)
}
