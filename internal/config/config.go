package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Disposal policies accepted by -method.
const (
	MethodFIFO    = "fifo"
	MethodLIFO    = "lifo"
	MethodLowest  = "lowest"
	MethodHighest = "highest"
)

type Config struct {
	Histories []string

	// Price feed: file path, http(s) URL or binance:SYMBOL
	FMVURL        string
	FallbackPrice decimal.Decimal

	// External transactions file
	DataPath string

	TransferWindow time.Duration
	Method         string
	ConfirmAll     bool

	// Logging
	LogLevel string
	LogFile  string

	// Exports
	CSVExport  string
	JSONExport string
}

// Load reads an optional .env, then the environment, then command-line
// flags. Flags win over the environment.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	return parse(args, os.Stderr)
}

func parse(args []string, output io.Writer) (*Config, error) {
	windowHours, err := parseFloat(getEnv("TRANSFER_WINDOW_HOURS", "24"), "TRANSFER_WINDOW_HOURS")
	if err != nil {
		return nil, err
	}
	confirmAll, err := parseBool(getEnv("CONFIRM_ALL", "false"), "CONFIRM_ALL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	var fallback string

	fs := flag.NewFlagSet("bitcoin-gains", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: bitcoin-gains [flags] FILE [FILE ...]\n\nCompute capital gains/losses from exchange and wallet histories.\n\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.FMVURL, "fmv_url", getEnv("FMV_URL", "./blockchain-market-price.csv"), "fair market value prices: file, http(s) url or binance:SYMBOL")
	fs.StringVar(&fallback, "fallback_price", getEnv("FALLBACK_PRICE", "100"), "price used for dates missing from the feed")
	fs.StringVar(&cfg.DataPath, "data", getEnv("DATA_PATH", "data.json"), "external transaction info")
	fs.Float64Var(&windowHours, "transfer_window_hours", windowHours, "max hours between a withdrawal and the deposit it pairs with")
	fs.StringVar(&cfg.Method, "method", getEnv("METHOD", MethodFIFO), "used to select which lot to sell; one of fifo, lifo, lowest, highest")
	fs.BoolVar(&cfg.ConfirmAll, "y", confirmAll, "don't prompt the user to confirm external transfer details")
	fs.BoolVar(&cfg.ConfirmAll, "confirm_all", confirmAll, "same as -y")
	fs.StringVar(&cfg.LogLevel, "log_level", getEnv("LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFile, "log_file", getEnv("LOG_FILE", "logs/bitcoin-gains.log"), "rotating log file")
	fs.StringVar(&cfg.CSVExport, "csv", getEnv("CSV_EXPORT", ""), "write every ledger step to this CSV file")
	fs.StringVar(&cfg.JSONExport, "json", getEnv("JSON_EXPORT", ""), "write the final summary and lots to this JSON file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Histories = fs.Args()

	if len(cfg.Histories) == 0 {
		fs.Usage()
		return nil, fmt.Errorf("at least one history file is required")
	}
	if windowHours <= 0 {
		return nil, fmt.Errorf("invalid value for transfer_window_hours: %v", windowHours)
	}
	cfg.TransferWindow = time.Duration(windowHours * float64(time.Hour))

	cfg.Method = strings.ToLower(strings.TrimSpace(cfg.Method))
	switch cfg.Method {
	case MethodFIFO, MethodLIFO, MethodLowest, MethodHighest:
	default:
		return nil, fmt.Errorf("invalid value for method: %q", cfg.Method)
	}

	cfg.FallbackPrice, err = decimal.NewFromString(fallback)
	if err != nil {
		return nil, fmt.Errorf("invalid value for fallback_price: %w", err)
	}
	if cfg.FallbackPrice.IsNegative() {
		return nil, fmt.Errorf("fallback_price must not be negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseFloat(value, name string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return f, nil
}

func parseBool(value, name string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return b, nil
}
