package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/anbuneel/zenote-sub002/internal/flagx"
	"github.com/anbuneel/zenote-sub002/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies
// on timex.Duration so JSON can specify intervals either as strings like
// "30s" or as integer nanoseconds.
type JsonConfig struct {
	DatabaseDir      string         `json:"database_dir"`
	RemoteDSN        string         `json:"remote_dsn"`
	SyncInterval     timex.Duration `json:"sync_interval"`
	ProbeInterval    timex.Duration `json:"probe_interval"`
	HydrationTimeout timex.Duration `json:"hydration_timeout"`
	EchoGrace        timex.Duration `json:"echo_grace"`
}

// parseJson overlays Config with values loaded from a JSON file resolved
// via the -c/-config flags. Missing flag means no JSON stage. Read or
// unmarshal errors panic; the config is unusable at that point.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JSONConfigPath()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabaseDir != "" {
		cfg.DatabaseDir = jc.DatabaseDir
	}
	if jc.RemoteDSN != "" {
		cfg.RemoteDSN = jc.RemoteDSN
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.ProbeInterval.Duration > 0 {
		cfg.ProbeInterval = time.Duration(jc.ProbeInterval.Duration)
	}
	if jc.HydrationTimeout.Duration > 0 {
		cfg.HydrationTimeout = time.Duration(jc.HydrationTimeout.Duration)
	}
	if jc.EchoGrace.Duration > 0 {
		cfg.EchoGrace = time.Duration(jc.EchoGrace.Duration)
	}
}
