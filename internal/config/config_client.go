package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ClientConfig holds the configuration settings for the agent.
type ClientConfig struct {
	ServerAddr     string // Server address
	Logger         *zap.SugaredLogger
	MachineID      string // Id the machine is registered under
	PrivateKeyPath string // Ed25519 private key, PEM or DER
	ReportInterval int    // Interval for sending reports (in seconds)
	ClientTimeout  int    // HTTP client timeout (in seconds)
	ServiceUnit    string // systemd unit reported as "service"
	DiskPath       string // Mount point reported as "disk"
	MetricScheme   string // "structured" or "flat"
	Legacy         bool   // Send one single-metric request per sample
}

// NewClientConfig creates and returns a new ClientConfig by parsing flags, an
// optional JSON file and environment variables.
func NewClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		ServerAddr:     "http://localhost:8080",
		ReportInterval: 300,
		ClientTimeout:  10,
		ServiceUnit:    "fleet-backend",
		DiskPath:       "/",
		MetricScheme:   "structured",
	}

	var fAddr, fID, fKey, fUnit, fDisk, fScheme, fConf strFlag
	var fRep, fTO intFlag
	var fLegacy boolFlag
	flag.Var(&fAddr, "a", "HTTP server address (must include http(s)://)")
	flag.Var(&fID, "id", "machine id")
	flag.Var(&fKey, "k", "Path to Ed25519 private key")
	flag.Var(&fRep, "r", "report interval (seconds)")
	flag.Var(&fTO, "t", "client timeout (seconds)")
	flag.Var(&fUnit, "unit", "systemd unit to report")
	flag.Var(&fDisk, "disk", "mount point to report")
	flag.Var(&fScheme, "scheme", "metric scheme: structured|flat")
	flag.Var(&fLegacy, "legacy", "send single-metric legacy requests")
	flag.Var(&fConf, "c", "Path to JSON config file")
	flag.Var(&fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	if fAddr.set {
		cfg.ServerAddr = fAddr.v
	}
	if fID.set {
		cfg.MachineID = fID.v
	}
	if fKey.set {
		cfg.PrivateKeyPath = fKey.v
	}
	if fRep.set {
		cfg.ReportInterval = fRep.v
	}
	if fTO.set {
		cfg.ClientTimeout = fTO.v
	}
	if fUnit.set {
		cfg.ServiceUnit = fUnit.v
	}
	if fDisk.set {
		cfg.DiskPath = fDisk.v
	}
	if fScheme.set {
		cfg.MetricScheme = fScheme.v
	}
	if fLegacy.set {
		cfg.Legacy = fLegacy.v
	}

	if fConf.v == "" {
		if v := os.Getenv("CONFIG"); v != "" {
			fConf.v = v
		}
	}
	if fConf.v != "" {
		if js, err := loadClientJSON(fConf.v); err == nil {
			if js.Address != nil && !fAddr.set {
				cfg.ServerAddr = *js.Address
			}
			if js.MachineID != nil && !fID.set {
				cfg.MachineID = *js.MachineID
			}
			if js.PrivateKey != nil && !fKey.set {
				cfg.PrivateKeyPath = *js.PrivateKey
			}
			if js.ReportInterval != nil && !fRep.set {
				if sec, err := parseDurationSeconds(*js.ReportInterval); err == nil {
					cfg.ReportInterval = sec
				}
			}
			if js.ClientTimeout != nil && !fTO.set {
				if sec, err := parseDurationSeconds(*js.ClientTimeout); err == nil {
					cfg.ClientTimeout = sec
				}
			}
			if js.ServiceUnit != nil && !fUnit.set {
				cfg.ServiceUnit = *js.ServiceUnit
			}
			if js.DiskPath != nil && !fDisk.set {
				cfg.DiskPath = *js.DiskPath
			}
			if js.MetricScheme != nil && !fScheme.set {
				cfg.MetricScheme = *js.MetricScheme
			}
			if js.Legacy != nil && !fLegacy.set {
				cfg.Legacy = *js.Legacy
			}
		}
	}

	readClientEnvironment(cfg)

	// normalize address
	if !strings.HasPrefix(cfg.ServerAddr, "http://") && !strings.HasPrefix(cfg.ServerAddr, "https://") {
		cfg.ServerAddr = "http://" + cfg.ServerAddr
	}

	cfg.Logger = zap.Must(zap.NewProduction()).Sugar()
	return cfg
}

func readClientEnvironment(cfg *ClientConfig) {
	logger := envLogger(cfg.Logger)

	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.ServerAddr = addr
	}
	if id := os.Getenv("MACHINE_ID"); id != "" {
		cfg.MachineID = id
	}
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		cfg.PrivateKeyPath = key
	}

	if v := os.Getenv("REPORT_INTERVAL"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.ReportInterval = i
		} else {
			logger.Warnw("invalid REPORT_INTERVAL env var", "error", err)
		}
	}

	if v := os.Getenv("CLIENT_TIMEOUT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.ClientTimeout = i
		} else {
			logger.Warnw("invalid CLIENT_TIMEOUT env var", "error", err)
		}
	}

	if v := os.Getenv("SERVICE_UNIT"); v != "" {
		cfg.ServiceUnit = v
	}
	if v := os.Getenv("DISK_PATH"); v != "" {
		cfg.DiskPath = v
	}
	if v := os.Getenv("METRIC_SCHEME"); v != "" {
		cfg.MetricScheme = v
	}

	if v := os.Getenv("LEGACY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Legacy = b
		} else {
			logger.Warnw("invalid LEGACY env var", "error", err)
		}
	}
}
