package env

import (
	"github.com/thatsimonsguy/climate-controller/internal/config"
)

var Cfg *config.Config
