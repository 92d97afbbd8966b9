package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"invoicedash/internal/core"
)

// Data backends the dashboard can read invoices from.
const (
	BackendCSV    = "csv"
	BackendMemory = "memory" // CSV read once at startup
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration
	ExportRateLimit int // export requests per minute per client

	// Dashboard
	DashboardTitle    string
	DashboardLogoPath string
	WeekStart         string

	// Backend selection
	DataBackend string

	// CSV
	CSVPath         string
	CSVDateColumn   string
	CSVStatusColumn string
	CSVAmountColumn string

	// Database
	SQLiteDBPath string

	// AMQP (empty URL disables exports)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID   string
	GoogleInvoicesSheet   string
	GoogleWeeklySheet     string
	GoogleCumulativeSheet string

	// Worker
	ExportTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ExportRateLimit: getEnvInt("EXPORT_RATE_LIMIT", 6),

		DashboardTitle:    getEnv("DASHBOARD_TITLE", "Artisma Dash"),
		DashboardLogoPath: getEnv("DASHBOARD_LOGO_PATH", ""),
		WeekStart:         getEnv("WEEK_START", "monday"),

		DataBackend: strings.ToLower(getEnv("DATA_BACKEND", BackendCSV)),

		CSVPath:         getEnv("CSV_PATH", "./data/Project_List.csv"),
		CSVDateColumn:   getEnv("CSV_DATE_COLUMN", "Invoice Date"),
		CSVStatusColumn: getEnv("CSV_STATUS_COLUMN", "Status"),
		CSVAmountColumn: getEnv("CSV_AMOUNT_COLUMN", "Invoice Amount"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/invoicedash.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "invoicedash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_exports"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleInvoicesSheet:   getEnv("GOOGLE_INVOICES_SHEET", "Invoices"),
		GoogleWeeklySheet:     getEnv("GOOGLE_WEEKLY_SHEET", "Weekly Revenue"),
		GoogleCumulativeSheet: getEnv("GOOGLE_CUMULATIVE_SHEET", "Cumulative Revenue"),

		ExportTimeout: getEnvDuration("EXPORT_TIMEOUT", 2*time.Minute),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

// WeekStartDay returns the parsed WEEK_START, falling back to Monday.
func (c *Config) WeekStartDay() time.Weekday {
	d, err := core.ParseWeekday(c.WeekStart)
	if err != nil {
		return time.Monday
	}
	return d
}

// ExportsEnabled reports whether the export pipeline is configured.
func (c *Config) ExportsEnabled() bool {
	return c.AMQPURL != "" && c.SQLiteDBPath != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendCSV, BackendMemory, BackendSQLite, BackendSheets}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if _, err := core.ParseWeekday(c.WeekStart); err != nil {
		errors = append(errors, fmt.Sprintf("invalid week start '%s': must be a weekday name", c.WeekStart))
	}

	switch c.DataBackend {
	case BackendCSV, BackendMemory:
		if c.CSVPath == "" {
			errors = append(errors, fmt.Sprintf("CSV path cannot be empty when using %s backend", c.DataBackend))
		}
		if c.CSVDateColumn == "" || c.CSVStatusColumn == "" || c.CSVAmountColumn == "" {
			errors = append(errors, "CSV column names cannot be empty")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleInvoicesSheet == "" {
			errors = append(errors, "Google invoices sheet name is required when using sheets backend")
		}
	}

	if c.DashboardLogoPath != "" {
		if _, err := os.Stat(c.DashboardLogoPath); err != nil {
			errors = append(errors, fmt.Sprintf("dashboard logo file not readable: %s", c.DashboardLogoPath))
		}
	}

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
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path is required to track exports")
		}
	}

	if c.ExportRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid export rate limit %d: must be at least 1", c.ExportRateLimit))
	}
	if c.ExportTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export timeout %v: must be at least 1 second", c.ExportTimeout))
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
