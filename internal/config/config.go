package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("configuration invalid")

// Settings keeps all configuration options.
type Settings struct {
	RPCURL     string
	RPCTimeout time.Duration

	AmountMin decimal.Decimal
	AmountMax decimal.Decimal
	DelayMin  int
	DelayMax  int

	Concurrency     int
	ProxyUniqueness bool

	BridgeContract     string
	SourceChainID      int64
	DestinationChainID int64
	NativeSymbol       string
	ExplorerURL        string

	QuoteURLs    []string
	QuoteTimeout time.Duration
	QuoteRounds  int
	QuoteBackoff time.Duration
	QuoteRPS     float64

	ResultsDir  string
	JournalPath string
	LogDir      string
	LogLevel    string

	WalletKeys   []string
	Destinations []string
	Proxies      []string
}

// Layout locates the settings file and data files under a base directory.
type Layout struct {
	Settings     string
	Wallets      string
	Destinations string
	Proxies      string
}

func DefaultLayout(base string) Layout {
	data := filepath.Join(base, "config", "data")
	return Layout{
		Settings:     filepath.Join(base, "config", "settings.yaml"),
		Wallets:      filepath.Join(data, "wallets.txt"),
		Destinations: filepath.Join(data, "target_addresses.txt"),
		Proxies:      filepath.Join(data, "proxies.txt"),
	}
}

var requiredSections = []string{"web3_settings", "attempts_and_delay_settings"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("web3_settings.rpc_timeout", "30s")
	v.SetDefault("bridge_settings.concurrency", 1)
	v.SetDefault("bridge_settings.proxy_uniqueness", true)
	v.SetDefault("bridge_settings.bridge_contract", "0x391E7C679d29bD940d63be94AD22A25d25b5A604")
	v.SetDefault("bridge_settings.source_chain_id", 56)
	v.SetDefault("bridge_settings.destination_chain_id", 204)
	v.SetDefault("bridge_settings.native_symbol", "BNB")
	v.SetDefault("bridge_settings.explorer_url", "https://bscscan.com")
	v.SetDefault("bridge_settings.quote_urls", []string{"https://backend.gas.zip/v2/quotes/{source}/{value}/{destination}"})
	v.SetDefault("bridge_settings.quote_timeout", "10s")
	v.SetDefault("bridge_settings.quote_rounds", 3)
	v.SetDefault("bridge_settings.quote_backoff", "2s")
	v.SetDefault("bridge_settings.quote_rps", 0)
	v.SetDefault("bridge_settings.results_dir", "results")
	v.SetDefault("bridge_settings.journal_path", "")
	v.SetDefault("logging.dir", "logs")
	v.SetDefault("logging.level", "info")
}

// Load reads settings.yaml and the data files, applies environment
// overrides and validates the result.
func Load(l Layout) (Settings, error) {
	v := viper.New()
	v.SetConfigFile(l.Settings)
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("%w: read %s: %w", ErrInvalid, l.Settings, err)
	}
	var missing []string
	for _, s := range requiredSections {
		if !v.IsSet(s) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return Settings{}, fmt.Errorf("%w: missing required fields: %s", ErrInvalid, strings.Join(missing, ", "))
	}

	st := Settings{
		RPCURL:     v.GetString("web3_settings.bsc_rpc_url"),
		RPCTimeout: v.GetDuration("web3_settings.rpc_timeout"),
		DelayMin:   v.GetInt("attempts_and_delay_settings.delay_before_start.min"),
		DelayMax:   v.GetInt("attempts_and_delay_settings.delay_before_start.max"),

		Concurrency:     v.GetInt("bridge_settings.concurrency"),
		ProxyUniqueness: v.GetBool("bridge_settings.proxy_uniqueness"),

		BridgeContract:     v.GetString("bridge_settings.bridge_contract"),
		SourceChainID:      v.GetInt64("bridge_settings.source_chain_id"),
		DestinationChainID: v.GetInt64("bridge_settings.destination_chain_id"),
		NativeSymbol:       v.GetString("bridge_settings.native_symbol"),
		ExplorerURL:        v.GetString("bridge_settings.explorer_url"),

		QuoteURLs:    v.GetStringSlice("bridge_settings.quote_urls"),
		QuoteTimeout: v.GetDuration("bridge_settings.quote_timeout"),
		QuoteRounds:  v.GetInt("bridge_settings.quote_rounds"),
		QuoteBackoff: v.GetDuration("bridge_settings.quote_backoff"),
		QuoteRPS:     v.GetFloat64("bridge_settings.quote_rps"),

		ResultsDir:  v.GetString("bridge_settings.results_dir"),
		JournalPath: v.GetString("bridge_settings.journal_path"),
		LogDir:      v.GetString("logging.dir"),
		LogLevel:    v.GetString("logging.level"),

		WalletKeys: v.GetStringSlice("web3_settings.wallet_private_keys"),
	}

	var err error
	if st.AmountMin, err = decimalAt(v, "web3_settings.amount_to_bridge.min"); err != nil {
		return Settings{}, err
	}
	if st.AmountMax, err = decimalAt(v, "web3_settings.amount_to_bridge.max"); err != nil {
		return Settings{}, err
	}

	wallets, err := readLines(l.Wallets, len(st.WalletKeys) > 0)
	if err != nil {
		return Settings{}, err
	}
	st.WalletKeys = append(st.WalletKeys, wallets...)
	if st.Destinations, err = readLines(l.Destinations, true); err != nil {
		return Settings{}, err
	}
	if st.Proxies, err = readLines(l.Proxies, false); err != nil {
		return Settings{}, err
	}

	applyEnv(&st)
	if err := st.Validate(); err != nil {
		return Settings{}, err
	}
	return st, nil
}

func decimalAt(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrInvalid, key)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
	}
	return d, nil
}

// applyEnv overrides settings from environment supporting both UPPER_CASE and lower_case keys.
func applyEnv(st *Settings) {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	}
	getFloat := func(keys []string, def float64) float64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
		return def
	}
	getBool := func(keys []string, def bool) bool {
		s := strings.ToLower(get(keys, ""))
		if s == "" {
			return def
		}
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}

	st.RPCURL = get([]string{"bsc_rpc_url", "BSC_RPC_URL", "rpc_url", "RPC_URL"}, st.RPCURL)
	st.Concurrency = getInt([]string{"concurrency", "CONCURRENCY"}, st.Concurrency)
	st.ProxyUniqueness = getBool([]string{"proxy_uniqueness", "PROXY_UNIQUENESS"}, st.ProxyUniqueness)
	st.QuoteRPS = getFloat([]string{"quote_rps", "QUOTE_RPS"}, st.QuoteRPS)
	st.ResultsDir = get([]string{"results_dir", "RESULTS_DIR"}, st.ResultsDir)
	st.JournalPath = get([]string{"journal_path", "JOURNAL_PATH"}, st.JournalPath)
	st.LogDir = get([]string{"log_dir", "LOG_DIR"}, st.LogDir)
	st.LogLevel = get([]string{"log_level", "LOG_LEVEL"}, st.LogLevel)
}
