package config

import (
	"encoding/json"
	"os"
	"time"
)

type serverJSON struct {
	Address           *string  `json:"address"`
	Restore           *bool    `json:"restore"`
	StoreInterval     *string  `json:"store_interval"` // "1s"
	StoreFile         *string  `json:"store_file"`
	DatabaseDSN       *string  `json:"database_dsn"`
	BadgerPath        *string  `json:"badger_path"`
	MachinesFile      *string  `json:"machines_file"`
	AdminPasswordHash *string  `json:"admin_password_hash"`
	AllowedOrigins    []string `json:"allowed_origins"`
	TrustedSubnet     *string  `json:"trusted_subnet"`
	TrustedProxies    *string  `json:"trusted_proxies"`
	StaleAfter        *string  `json:"stale_after"`
	HealthPolicy      *string  `json:"health_policy"`
	MetricSchemes     []string `json:"metric_schemes"`
	StoreTimeout      *string  `json:"store_timeout"`
	ScanWorkers       *int     `json:"scan_workers"`
	NATSURL           *string  `json:"nats_url"`
	NATSSubject       *string  `json:"nats_subject"`
}

type clientJSON struct {
	Address        *string `json:"address"`
	MachineID      *string `json:"machine_id"`
	PrivateKey     *string `json:"private_key"`
	ReportInterval *string `json:"report_interval"`
	ClientTimeout  *string `json:"client_timeout"`
	ServiceUnit    *string `json:"service_unit"`
	DiskPath       *string `json:"disk_path"`
	MetricScheme   *string `json:"metric_scheme"`
	Legacy         *bool   `json:"legacy"`
}

func loadServerJSON(path string) (*serverJSON, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg serverJSON
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadClientJSON(path string) (*clientJSON, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c clientJSON
	return &c, json.Unmarshal(b, &c)
}

func parseDurationSeconds(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}
