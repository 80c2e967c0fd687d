package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/multierr"

	"github.com/ligun0805/bridge-sender/internal/proxy"
)

// Validate reports every problem at once, wrapped in ErrInvalid.
func (s Settings) Validate() error {
	var errs error
	add := func(format string, a ...any) { errs = multierr.Append(errs, fmt.Errorf(format, a...)) }

	if strings.TrimSpace(s.RPCURL) == "" {
		add("rpc url is empty")
	}
	if len(s.WalletKeys) == 0 {
		add("no wallet private keys")
	}
	seen := make(map[string]int, len(s.WalletKeys))
	for i, k := range s.WalletKeys {
		norm := normalizeKey(k)
		if _, err := gethcrypto.HexToECDSA(norm); err != nil {
			add("wallet %d: invalid private key", i+1)
			continue
		}
		if first, ok := seen[norm]; ok {
			add("wallet %d: duplicate of wallet %d", i+1, first)
			continue
		}
		seen[norm] = i + 1
	}
	if n := len(s.Destinations); n > 0 && n != len(s.WalletKeys) {
		add("target addresses: have %d, want 0 or %d (one per wallet)", n, len(s.WalletKeys))
	}
	for i, d := range s.Destinations {
		if !common.IsHexAddress(d) {
			add("target address %d: %q is not a hex address", i+1, d)
		}
	}
	if len(s.Proxies) == 0 {
		add("no proxies")
	}
	if _, err := proxy.ParseList(s.Proxies); err != nil {
		add("proxies: %v", err)
	}

	if !s.AmountMin.IsPositive() || !s.AmountMax.IsPositive() {
		add("amount_to_bridge: min and max must be positive")
	} else if s.AmountMin.GreaterThan(s.AmountMax) {
		add("amount_to_bridge: min %s > max %s", s.AmountMin, s.AmountMax)
	}
	if s.DelayMin < 0 || s.DelayMax < 0 {
		add("delay_before_start: values must be non-negative")
	} else if s.DelayMin > s.DelayMax {
		add("delay_before_start: min %d > max %d", s.DelayMin, s.DelayMax)
	}
	if s.Concurrency < 1 {
		add("concurrency must be at least 1, got %d", s.Concurrency)
	}
	if !common.IsHexAddress(s.BridgeContract) {
		add("bridge contract %q is not a hex address", s.BridgeContract)
	}
	if len(s.QuoteURLs) == 0 {
		add("no quote urls")
	}
	for _, u := range s.QuoteURLs {
		if !strings.Contains(u, "{value}") {
			add("quote url %q lacks the {value} placeholder", u)
		}
	}
	if s.QuoteRounds < 1 {
		add("quote_rounds must be at least 1")
	}
	if s.QuoteRPS < 0 {
		add("quote_rps must not be negative")
	}

	if errs == nil {
		return nil
	}
	return errors.Join(ErrInvalid, errs)
}

func normalizeKey(k string) string {
	k = strings.TrimSpace(k)
	if strings.HasPrefix(k, "0x") || strings.HasPrefix(k, "0X") {
		k = k[2:]
	}
	return strings.ToLower(k)
}
