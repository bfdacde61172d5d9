package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier.
	DatabaseSchemePostgres = "postgres"
	// DatabaseSchemeSQLite is the sqlite database scheme identifier.
	DatabaseSchemeSQLite = "sqlite"
)

// DefaultVoteMethodID is the 4-byte selector of the contract's vote(uint256) call.
const DefaultVoteMethodID = "0x0121b93f"

type Config struct {
	RPCURL          string // EVM JSON-RPC endpoint for contract reads
	ContractAddress string
	EtherscanAPIURL string
	EtherscanAPIKey string
	ChainID         string // etherscan v2 chainid parameter
	VoteMethodID    string

	DBDialect string // postgres or sqlite
	DBDsn     string // DSN string passed to the GORM driver

	ListenAddr string
	AdminToken string

	StatusSyncInterval time.Duration
	TxSyncInterval     time.Duration
	PriceSyncInterval  time.Duration
	SyncJitter         time.Duration
	HTTPTimeout        time.Duration

	CommissionPct  int64
	DedupCacheSize int
	MaxWorkers     int

	ResetOnStart bool
	Dashboard    bool // if true: render TUI, logs go to file; if false: logs only
	Debug        bool
	LogLevel     string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql, sqlite.
func parseDatabaseURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	case DatabaseSchemeSQLite, "file":
		return DatabaseSchemeSQLite, strings.TrimPrefix(databaseURL, "sqlite://"), nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

func Load() Config {
	cfg := Config{
		RPCURL:          getenv("RPC_URL", "http://localhost:8545"),
		ContractAddress: os.Getenv("CONTRACT_ADDRESS"),
		EtherscanAPIURL: getenv("ETHERSCAN_API_URL", "https://api.etherscan.io/v2/api"),
		EtherscanAPIKey: os.Getenv("ETHERSCAN_API_KEY"),
		ChainID:         getenv("CHAIN_ID", "11155111"),
		VoteMethodID:    getenv("VOTE_METHOD_ID", DefaultVoteMethodID),

		ListenAddr: getenv("LISTEN_ADDR", ":5001"),
		AdminToken: os.Getenv("ADMIN_TOKEN"),

		StatusSyncInterval: getenvDuration("STATUS_SYNC_INTERVAL", 30*time.Second),
		TxSyncInterval:     getenvDuration("TX_SYNC_INTERVAL", 60*time.Second),
		PriceSyncInterval:  getenvDuration("PRICE_SYNC_INTERVAL", 6*time.Hour),
		SyncJitter:         getenvDuration("SYNC_JITTER", 2*time.Second),
		HTTPTimeout:        getenvDuration("HTTP_TIMEOUT", 15*time.Second),

		CommissionPct:  int64(getenvInt("COMMISSION_PCT", 10)),
		DedupCacheSize: getenvInt("DEDUP_CACHE_SIZE", 10000),
		MaxWorkers:     getenvInt("MAX_BACKGROUND_WORKERS", 3),

		ResetOnStart: getenvBool("RESET_ON_START", false),
		Dashboard:    getenvBool("DASHBOARD", false),
		Debug:        getenvBool("DEBUG", false),
		LogLevel:     getenv("LOG_LEVEL", "info"),
	}

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
			cfg.DBDialect = dialect
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, disabling persistence: %v\n", err)
		}
	}

	return cfg
}

func (c Config) String() string {
	return fmt.Sprintf("rpc=%s contract=%s db=%s", c.RPCURL, c.ContractAddress, c.DBDialect)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	return fmt.Sprintf(
		"rpc=%s contract=%s chain=%s explorer=%s db=%s dsn=%s listen=%s workers=%d",
		c.RPCURL,
		c.ContractAddress,
		c.ChainID,
		c.EtherscanAPIURL,
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
		c.ListenAddr,
		c.MaxWorkers,
	)
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	default:
		return dsn
	}
}
