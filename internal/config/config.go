package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Valid values of DATA_BACKEND and MIRROR_BACKEND.
const (
	BackendXLSX   = "xlsx"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

var validBackends = []string{BackendXLSX, BackendSQLite, BackendSheets, BackendMemory}

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Ledger
	DataBackend      string
	LedgerFile       string
	LedgerSheet      string
	WatchFile        bool
	WindowDays       int
	CategoriesFile   string
	IncomeCategories []string
	WindowCacheSize  int

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID       string
	GoogleSheetName           string
	GoogleServiceAccountJSON  string
	GoogleServiceAccountFile  string
	GoogleCategoriesSheetName string

	// Worker
	MirrorBackend  string
	MirrorInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:      getEnv("DATA_BACKEND", BackendXLSX),
		LedgerFile:       getEnv("KAKEIBO_FILE", "kakeibo.xlsx"),
		LedgerSheet:      getEnv("KAKEIBO_SHEET", "Sheet1"),
		WatchFile:        getEnvBool("KAKEIBO_WATCH", true),
		WindowDays:       getEnvInt("KAKEIBO_WINDOW_DAYS", 7),
		CategoriesFile:   getEnv("KAKEIBO_CATEGORIES_FILE", "./data/categories.yaml"),
		IncomeCategories: getEnvList("KAKEIBO_INCOME_CATEGORIES"),
		WindowCacheSize:  getEnvInt("WINDOW_CACHE_SIZE", 64),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kakeibo.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kakeibo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		GoogleSpreadsheetID:       getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:           getEnv("GOOGLE_SHEET_NAME", ""),
		GoogleServiceAccountJSON:  getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile:  getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleCategoriesSheetName: getEnv("GOOGLE_CATEGORIES_SHEET_NAME", ""),

		MirrorBackend:  getEnv("MIRROR_BACKEND", BackendSQLite),
		MirrorInterval: getEnvDuration("MIRROR_INTERVAL", time.Minute),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if !isValidBackend(c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.WindowDays < 1 || c.WindowDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid window days %d: must be between 1 and 366", c.WindowDays))
	}
	if c.WindowCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid window cache size %d: must be at least 1", c.WindowCacheSize))
	}

	errors = append(errors, c.validateBackend(c.DataBackend)...)

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the mirror worker needs on top of
// Validate.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the mirror worker")
	}
	if !isValidBackend(c.MirrorBackend) {
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of %v", c.MirrorBackend, validBackends))
	} else if c.MirrorBackend == c.DataBackend && c.MirrorBackend != BackendMemory {
		errors = append(errors, fmt.Sprintf("mirror backend '%s' must differ from data backend", c.MirrorBackend))
	} else {
		errors = append(errors, c.validateBackend(c.MirrorBackend)...)
	}
	if c.MirrorInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at least 1 second", c.MirrorInterval))
	} else if c.MirrorInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at most 24 hours", c.MirrorInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateBackend(backend string) []string {
	var errors []string
	switch backend {
	case BackendXLSX:
		if c.LedgerFile == "" {
			errors = append(errors, "ledger file cannot be empty when using xlsx backend")
		} else if ext := strings.ToLower(filepath.Ext(c.LedgerFile)); ext != ".xlsx" {
			errors = append(errors, fmt.Sprintf("ledger file '%s' must have the .xlsx extension", c.LedgerFile))
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	return errors
}

func isValidBackend(b string) bool {
	for _, v := range validBackends {
		if b == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
