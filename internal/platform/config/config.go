// Package config provides runtime configuration values for the register.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// Config holds the knobs for servers, storage and the sale pipeline.
// Empty MySQLDSN or RedisAddr select the in-memory store.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	MySQLDSN        string
	RedisAddr       string
	WorkerCount     int
	QueueSize       int
	ShutdownTimeout time.Duration
	LogLevel        string

	StoreName      string
	TaxRate        decimal.Decimal
	CurrencyCode   string
	CurrencySymbol string
	CurrencyLocale string
	SymbolAfter    bool
	Timezone       string
	ReceiptFooter  []string
	TextDirection  string

	ReceiptPrefix   string
	RegisterNode    int64
	DailyReportCron string

	parseErrs []error
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envParser keeps the default for malformed values and remembers the
// failure for Validate.
type envParser struct {
	errs []error
}

func (p *envParser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s %q: %w", key, value, err))
}

func (p *envParser) atoi(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *envParser) boolean(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *envParser) seconds(key string, defSec int) time.Duration {
	return time.Duration(p.atoi(key, defSec)) * time.Second
}

func (p *envParser) dec(key, def string) decimal.Decimal {
	v := getenv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, v, err)
		return decimal.RequireFromString(def)
	}
	return d
}

func listenv(key, def string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key, def), "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load collects configuration from environment with defaults. Values that
// fail to parse fall back to their default and are reported by Validate.
func Load() Config {
	var p envParser
	c := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":50051"),
		MySQLDSN:        getenv("MYSQL_DSN", ""),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		WorkerCount:     p.atoi("WORKER_COUNT", 4),
		QueueSize:       p.atoi("QUEUE_SIZE", 1000),
		ShutdownTimeout: p.seconds("SHUTDOWN_TIMEOUT", 5),
		LogLevel:        getenv("LOG_LEVEL", "info"),

		StoreName:      getenv("STORE_NAME", "Al Mohandes Sales"),
		TaxRate:        p.dec("TAX_RATE", "0.14"),
		CurrencyCode:   getenv("CURRENCY_CODE", "EGP"),
		CurrencySymbol: getenv("CURRENCY_SYMBOL", "ج.م"),
		CurrencyLocale: getenv("CURRENCY_LOCALE", "en-EG"),
		SymbolAfter:    p.boolean("CURRENCY_SYMBOL_AFTER", true),
		Timezone:       getenv("TIMEZONE", "Africa/Cairo"),
		ReceiptFooter:  listenv("RECEIPT_FOOTER", "Thank you for shopping with us"),
		TextDirection:  getenv("TEXT_DIRECTION", "ltr"),

		ReceiptPrefix:   getenv("RECEIPT_PREFIX", "POS"),
		RegisterNode:    int64(p.atoi("REGISTER_NODE", 1)),
		DailyReportCron: getenv("DAILY_REPORT_CRON", "0 59 23 * * *"),
	}
	c.parseErrs = p.errs
	return c
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)

	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("TAX_RATE %s must be in [0, 1)", c.TaxRate))
	}
	if _, err := currency.ParseISO(c.CurrencyCode); err != nil {
		errs = append(errs, fmt.Errorf("CURRENCY_CODE %q: %w", c.CurrencyCode, err))
	}
	if _, err := language.Parse(c.CurrencyLocale); err != nil {
		errs = append(errs, fmt.Errorf("CURRENCY_LOCALE %q: %w", c.CurrencyLocale, err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("WORKER_COUNT %d must be positive", c.WorkerCount))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("QUEUE_SIZE %d must be positive", c.QueueSize))
	}
	if c.RegisterNode < 0 || c.RegisterNode > 1023 {
		errs = append(errs, fmt.Errorf("REGISTER_NODE %d must be in [0, 1023]", c.RegisterNode))
	}

	return errors.Join(errs...)
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) Locale() language.Tag {
	tag, err := language.Parse(c.CurrencyLocale)
	if err != nil {
		return language.English
	}
	return tag
}
