package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
)

// DefaultLedgerAddress holds escrowed value when LEDGER_ADDRESS is unset.
const DefaultLedgerAddress = "0x000000000000000000000000000000000000Ed6e"

type Config struct {
	AppPort string
	AppEnv  string

	StoreDriver string
	SQLitePath  string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	// RedisAddr empty disables idempotency and stream publishing.
	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	LedgerAddress string

	EventStream       string
	EventStreamMaxLen int64
	RelayIntervalSecs int

	LogLevel string
	LogFile  string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

// Load reads the environment, after merging a .env file from the working directory if present.
// Variables already set in the environment win over the file.
func Load() *Config {
	_ = godotenv.Load()
	return fromEnv()
}

// LoadFile is Load with an explicit dotenv path; a missing file is an error.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return fromEnv(), nil
}

func fromEnv() *Config {
	return &Config{
		AppPort: getenv("APP_PORT", "8080"),
		AppEnv:  getenv("APP_ENV", "development"),

		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", StoreMemory)),
		SQLitePath:  getenv("SQLITE_PATH", "lending.db"),

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "lending"),
		MySQLUser: getenv("MYSQL_USER", "lending"),
		MySQLPass: getenv("MYSQL_PASS", "lending"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		LedgerAddress: getenv("LEDGER_ADDRESS", DefaultLedgerAddress),

		EventStream:       getenv("EVENT_STREAM", "lending.events"),
		EventStreamMaxLen: int64(getenvInt("EVENT_STREAM_MAXLEN", 100000)),
		RelayIntervalSecs: getenvInt("RELAY_INTERVAL_SECONDS", 2),

		LogLevel: getenv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	case StoreMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want memory, sqlite or mysql)", c.StoreDriver)
	}
	if !strings.HasPrefix(c.LedgerAddress, "0x") || !common.IsHexAddress(c.LedgerAddress) {
		return fmt.Errorf("invalid LEDGER_ADDRESS %q", c.LedgerAddress)
	}
	if c.IdempTTLSecs <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL_SECONDS must be positive, got %d", c.IdempTTLSecs)
	}
	if c.RelayIntervalSecs <= 0 {
		return fmt.Errorf("RELAY_INTERVAL_SECONDS must be positive, got %d", c.RelayIntervalSecs)
	}
	return nil
}

func (c *Config) Ledger() common.Address { return common.HexToAddress(c.LedgerAddress) }

func (c *Config) IdempotencyTTL() time.Duration { return time.Duration(c.IdempTTLSecs) * time.Second }

func (c *Config) RelayInterval() time.Duration { return time.Duration(c.RelayIntervalSecs) * time.Second }

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
