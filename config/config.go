// Package config loads the run-time settings of dplink tools from the
// environment and describes simulated topologies in YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sarchlab/dplink/dp"
)

// Environment variables read by FromEnv.
const (
	EnvMaxLinkRate    = "DPLINK_MAX_LINK_RATE"
	EnvMaxLanes       = "DPLINK_MAX_LANES"
	EnvProtocol       = "DPLINK_PROTOCOL"
	EnvAdaptive       = "DPLINK_ADAPTIVE_TRAINING"
	EnvRecorder       = "DPLINK_RECORDER"
	EnvRecordPath     = "DPLINK_RECORD_PATH"
	EnvClickHouseHost = "DPLINK_CLICKHOUSE_HOST"
	EnvClickHousePort = "DPLINK_CLICKHOUSE_PORT"
	EnvClickHouseDB   = "DPLINK_CLICKHOUSE_DB"
	EnvClickHouseUser = "DPLINK_CLICKHOUSE_USER"
	EnvClickHousePass = "DPLINK_CLICKHOUSE_PASSWORD"
	EnvMonitorPort    = "DPLINK_MONITOR_PORT"
	EnvLogLevel       = "DPLINK_LOG_LEVEL"
	EnvTopology       = "DPLINK_TOPOLOGY"
)

// Recorder backends.
const (
	RecorderNone       = "none"
	RecorderSQLite     = "sqlite"
	RecorderClickHouse = "clickhouse"
)

// ClickHouse holds the connection settings of the ClickHouse recorder.
type ClickHouse struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Config holds the settings of a dplink run.
type Config struct {
	MaxLinkRate  dp.LinkRate
	MaxLanes     int
	Protocol     dp.Protocol
	Adaptive     bool
	Recorder     string
	RecordPath   string
	ClickHouse   ClickHouse
	MonitorPort  int
	LogLevel     string
	TopologyFile string
}

// Default returns the settings used when nothing is configured: a DP1.2
// transmitter with four lanes, adaptive training and no recording.
func Default() Config {
	return Config{
		MaxLinkRate: dp.LinkRate540,
		MaxLanes:    4,
		Protocol:    dp.ProtocolDP12,
		Adaptive:    true,
		Recorder:    RecorderNone,
		ClickHouse: ClickHouse{
			Host:     "localhost",
			Port:     9000,
			Database: "dplink",
			Username: "default",
		},
		LogLevel: "info",
	}
}

// Load reads the given .env files, or ./.env when none is given, and then
// returns FromEnv. A missing ./.env is not an error. Variables already set
// in the environment win over the files.
func Load(files ...string) (Config, error) {
	err := godotenv.Load(files...)
	if err != nil && (len(files) > 0 || !errors.Is(err, fs.ErrNotExist)) {
		return Config{}, fmt.Errorf("loading env files: %w", err)
	}

	return FromEnv()
}

// FromEnv builds a Config from Default and the DPLINK_* variables.
func FromEnv() (Config, error) {
	c := Default()

	var errs []error

	if v, ok := os.LookupEnv(EnvProtocol); ok {
		p, err := ParseProtocol(v)
		errs = append(errs, err)
		c.Protocol = p

		if _, rateSet := os.LookupEnv(EnvMaxLinkRate); !rateSet {
			c.MaxLinkRate = p.MaxLinkRate()
		}
	}

	if v, ok := os.LookupEnv(EnvMaxLinkRate); ok {
		r, err := dp.ParseLinkRate(v)
		errs = append(errs, err)
		c.MaxLinkRate = r
	}

	if v, ok := os.LookupEnv(EnvMaxLanes); ok {
		n, err := parseInt(EnvMaxLanes, v)
		if err == nil && !dp.ValidLaneCount(n) {
			err = fmt.Errorf("%w: %s=%d is not 1, 2 or 4",
				dp.ErrInvalidArgument, EnvMaxLanes, n)
		}

		errs = append(errs, err)
		c.MaxLanes = n
	}

	if v, ok := os.LookupEnv(EnvAdaptive); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			err = fmt.Errorf("%w: %s=%q", dp.ErrInvalidArgument, EnvAdaptive, v)
		}

		errs = append(errs, err)
		c.Adaptive = b
	}

	if v, ok := os.LookupEnv(EnvRecorder); ok {
		c.Recorder = strings.ToLower(v)
		switch c.Recorder {
		case RecorderNone, RecorderSQLite, RecorderClickHouse:
		default:
			errs = append(errs, fmt.Errorf("%w: unknown recorder %q",
				dp.ErrInvalidArgument, v))
		}
	}

	c.RecordPath = envOr(EnvRecordPath, c.RecordPath)
	c.ClickHouse.Host = envOr(EnvClickHouseHost, c.ClickHouse.Host)
	c.ClickHouse.Database = envOr(EnvClickHouseDB, c.ClickHouse.Database)
	c.ClickHouse.Username = envOr(EnvClickHouseUser, c.ClickHouse.Username)
	c.ClickHouse.Password = envOr(EnvClickHousePass, c.ClickHouse.Password)
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
	c.TopologyFile = envOr(EnvTopology, c.TopologyFile)

	if v, ok := os.LookupEnv(EnvClickHousePort); ok {
		n, err := parseInt(EnvClickHousePort, v)
		errs = append(errs, err)
		c.ClickHouse.Port = n
	}

	if v, ok := os.LookupEnv(EnvMonitorPort); ok {
		n, err := parseInt(EnvMonitorPort, v)
		errs = append(errs, err)
		c.MonitorPort = n
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return c, nil
}

// ParseProtocol converts "dp1.2" or "dp1.4" (case insensitive, the "dp" is
// optional) into a protocol generation.
func ParseProtocol(s string) (dp.Protocol, error) {
	switch strings.TrimPrefix(strings.ToLower(s), "dp") {
	case "1.2", "12":
		return dp.ProtocolDP12, nil
	case "1.4", "14":
		return dp.ProtocolDP14, nil
	}

	return dp.ProtocolDP12, fmt.Errorf("%w: unknown protocol %q",
		dp.ErrInvalidArgument, s)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return fallback
}

func parseInt(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number",
			dp.ErrInvalidArgument, key, v)
	}

	return n, nil
}
