// Package config provides application configuration structures and helpers.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ServerConfig holds the configuration settings for the collector.
type ServerConfig struct {
	Addr              string // Server address
	Logger            *zap.SugaredLogger
	StoreInterval     int           // Interval for snapshotting the in-memory store (in seconds)
	FileStoragePath   string        // Snapshot file of the in-memory store
	Restore           bool          // Whether to restore the snapshot on startup
	DatabaseDsn       string        // Data Source Name for PostgreSQL
	BadgerPath        string        // Directory of the embedded Badger store
	MachinesFile      string        // YAML seed of machines and public keys
	AdminPasswordHash string        // bcrypt hash guarding /private_info
	AllowedOrigins    []string      // CORS origins for /public_info, empty echoes any origin
	TrustedSubnet     string        // CIDR list, ex. "192.168.1.0/24,10.0.0.0/8"
	TrustedProxies    string        // CIDR list of reverse proxies whose X-Real-IP is honored
	StaleAfter        time.Duration // Age above which a series is stale
	HealthPolicy      string        // "any" or "all"
	MetricSchemes     []string      // Enabled metric naming schemes
	StoreTimeout      time.Duration // Bound on every store call
	ScanWorkers       int           // Concurrent series reads during aggregation
	NATSURL           string        // Report events bus, disabled when empty
	NATSSubject       string        // Subject for report events
}

func defaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:            "localhost:8080",
		StoreInterval:   300,
		FileStoragePath: "./tmp/fleet-status.json",
		Restore:         true,
		StaleAfter:      25 * time.Minute,
		HealthPolicy:    "any",
		MetricSchemes:   []string{"structured"},
		StoreTimeout:    5 * time.Second,
		ScanWorkers:     8,
		NATSSubject:     "fleetstatus.reports",
	}
}

// NewServerConfig creates and returns a new ServerConfig by parsing flags, an
// optional JSON file and environment variables.
func NewServerConfig() *ServerConfig {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout", "server.log"}
	logger := zap.Must(logCfg.Build())

	// 0) defaults
	cfg := defaultServerConfig()
	cfg.Logger = logger.Sugar()

	// 1) flags
	fAddr := strFlag{v: cfg.Addr}
	fStoreI := intFlag{v: cfg.StoreInterval}
	fFile := strFlag{v: cfg.FileStoragePath}
	fRestore := boolFlag{v: cfg.Restore}
	fStale := durFlag{v: cfg.StaleAfter}
	fPolicy := strFlag{v: cfg.HealthPolicy}
	fSchemes := listFlag{v: cfg.MetricSchemes}
	fTimeout := durFlag{v: cfg.StoreTimeout}
	fWorkers := intFlag{v: cfg.ScanWorkers}
	fSubject := strFlag{v: cfg.NATSSubject}
	var fDSN, fBadger, fMachines, fAdmin, fTrusted, fProxies, fNATS, fConf strFlag
	var fOrigins listFlag

	flag.Var(&fAddr, "a", "HTTP server address")
	flag.Var(&fStoreI, "i", "snapshot interval (seconds)")
	flag.Var(&fFile, "f", "path to snapshot file")
	flag.Var(&fRestore, "r", "restore from snapshot")
	flag.Var(&fDSN, "d", "DB connection string")
	flag.Var(&fBadger, "badger", "Badger data directory")
	flag.Var(&fMachines, "machines", "YAML file with machines to register on start")
	flag.Var(&fAdmin, "admin-hash", "bcrypt hash of the admin password")
	flag.Var(&fOrigins, "origins", "comma separated CORS origins")
	flag.Var(&fTrusted, "t", "trusted subnet(s) for /private_info")
	flag.Var(&fProxies, "trusted-proxies", "reverse proxy subnet(s) allowed to set X-Real-IP")
	flag.Var(&fStale, "stale-after", "staleness window")
	flag.Var(&fPolicy, "policy", "health policy: any|all")
	flag.Var(&fSchemes, "schemes", "metric schemes: structured,flat")
	flag.Var(&fTimeout, "store-timeout", "timeout of a single store call")
	flag.Var(&fWorkers, "workers", "concurrent series reads during aggregation")
	flag.Var(&fNATS, "nats-url", "NATS server URL for report events")
	flag.Var(&fSubject, "nats-subject", "NATS subject for report events")
	flag.Var(&fConf, "c", "Path to JSON config file")
	flag.Var(&fConf, "config", "Path to JSON config file (alias)")
	flag.Parse()

	cfg.Addr = fAddr.v
	cfg.StoreInterval = fStoreI.v
	cfg.FileStoragePath = fFile.v
	cfg.Restore = fRestore.v
	cfg.DatabaseDsn = fDSN.v
	cfg.BadgerPath = fBadger.v
	cfg.MachinesFile = fMachines.v
	cfg.AdminPasswordHash = fAdmin.v
	cfg.AllowedOrigins = fOrigins.v
	cfg.TrustedSubnet = fTrusted.v
	cfg.TrustedProxies = fProxies.v
	cfg.StaleAfter = fStale.v
	cfg.HealthPolicy = fPolicy.v
	cfg.MetricSchemes = fSchemes.v
	cfg.StoreTimeout = fTimeout.v
	cfg.ScanWorkers = fWorkers.v
	cfg.NATSURL = fNATS.v
	cfg.NATSSubject = fSubject.v

	// 2) JSON (lowest priority after defaults)
	if fConf.v == "" {
		if v := os.Getenv("CONFIG"); v != "" {
			fConf.v = v
		}
	}

	if fConf.v != "" {
		js, err := loadServerJSON(fConf.v)
		if err != nil {
			cfg.Logger.Warnw("failed to read config file", "path", fConf.v, "error", err)
		} else {
			if js.Address != nil && !fAddr.set {
				cfg.Addr = *js.Address
			}
			if js.Restore != nil && !fRestore.set {
				cfg.Restore = *js.Restore
			}
			if js.StoreInterval != nil && !fStoreI.set {
				if sec, err := parseDurationSeconds(*js.StoreInterval); err == nil {
					cfg.StoreInterval = sec
				}
			}
			if js.StoreFile != nil && !fFile.set {
				cfg.FileStoragePath = *js.StoreFile
			}
			if js.DatabaseDSN != nil && !fDSN.set {
				cfg.DatabaseDsn = *js.DatabaseDSN
			}
			if js.BadgerPath != nil && !fBadger.set {
				cfg.BadgerPath = *js.BadgerPath
			}
			if js.MachinesFile != nil && !fMachines.set {
				cfg.MachinesFile = *js.MachinesFile
			}
			if js.AdminPasswordHash != nil && !fAdmin.set {
				cfg.AdminPasswordHash = *js.AdminPasswordHash
			}
			if js.AllowedOrigins != nil && !fOrigins.set {
				cfg.AllowedOrigins = js.AllowedOrigins
			}
			if js.TrustedSubnet != nil && !fTrusted.set {
				cfg.TrustedSubnet = *js.TrustedSubnet
			}
			if js.TrustedProxies != nil && !fProxies.set {
				cfg.TrustedProxies = *js.TrustedProxies
			}
			if js.StaleAfter != nil && !fStale.set {
				if d, err := parseDuration(*js.StaleAfter); err == nil {
					cfg.StaleAfter = d
				}
			}
			if js.HealthPolicy != nil && !fPolicy.set {
				cfg.HealthPolicy = *js.HealthPolicy
			}
			if js.MetricSchemes != nil && !fSchemes.set {
				cfg.MetricSchemes = js.MetricSchemes
			}
			if js.StoreTimeout != nil && !fTimeout.set {
				if d, err := parseDuration(*js.StoreTimeout); err == nil {
					cfg.StoreTimeout = d
				}
			}
			if js.ScanWorkers != nil && !fWorkers.set {
				cfg.ScanWorkers = *js.ScanWorkers
			}
			if js.NATSURL != nil && !fNATS.set {
				cfg.NATSURL = *js.NATSURL
			}
			if js.NATSSubject != nil && !fSubject.set {
				cfg.NATSSubject = *js.NATSSubject
			}
		}
	}

	// 3) environment
	readServerEnvironment(cfg)

	return cfg
}

func envLogger(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.S()
	}
	return l
}

func readServerEnvironment(cfg *ServerConfig) {
	logger := envLogger(cfg.Logger)

	if addr := os.Getenv("ADDRESS"); addr != "" {
		cfg.Addr = addr
	}

	if v := os.Getenv("STORE_INTERVAL"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.StoreInterval = i
		} else {
			logger.Warnw("invalid STORE_INTERVAL env var", "error", err)
		}
	}

	if fsp := os.Getenv("FILE_STORAGE_PATH"); fsp != "" {
		cfg.FileStoragePath = fsp
	} else if fsp := os.Getenv("STORE_FILE"); fsp != "" {
		cfg.FileStoragePath = fsp
	}

	if dbDsn := os.Getenv("DATABASE_DSN"); dbDsn != "" {
		cfg.DatabaseDsn = dbDsn
	}

	if v := os.Getenv("RESTORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Restore = b
		} else {
			logger.Warnw("invalid RESTORE env var", "error", err)
		}
	}

	if v := os.Getenv("BADGER_PATH"); v != "" {
		cfg.BadgerPath = v
	}
	if v := os.Getenv("MACHINES_FILE"); v != "" {
		cfg.MachinesFile = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		cfg.AdminPasswordHash = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_SUBNET"); v != "" {
		cfg.TrustedSubnet = v
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = v
	}

	if v := os.Getenv("STALE_AFTER"); v != "" {
		if d, err := parseDuration(v); err == nil {
			cfg.StaleAfter = d
		} else {
			logger.Warnw("invalid STALE_AFTER env var", "error", err)
		}
	}

	if v := os.Getenv("HEALTH_POLICY"); v != "" {
		cfg.HealthPolicy = v
	}
	if v := os.Getenv("METRIC_SCHEMES"); v != "" {
		cfg.MetricSchemes = splitList(v)
	}

	if v := os.Getenv("STORE_TIMEOUT"); v != "" {
		if d, err := parseDuration(v); err == nil {
			cfg.StoreTimeout = d
		} else {
			logger.Warnw("invalid STORE_TIMEOUT env var", "error", err)
		}
	}

	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.ScanWorkers = i
		} else {
			logger.Warnw("invalid SCAN_WORKERS env var", "error", err)
		}
	}

	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("NATS_SUBJECT"); v != "" {
		cfg.NATSSubject = v
	}
}
