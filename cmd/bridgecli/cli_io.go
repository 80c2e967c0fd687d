package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ligun0805/bridge-sender/internal/config"
	"github.com/ligun0805/bridge-sender/internal/proxy"
)

// askExitAndQuit prints a prompt and waits for Enter before exiting.
// This avoids instant window close on double-click runs (Windows).
var exit = os.Exit

func askExitAndQuit(code int) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Exit now? Press Enter to close...")
		_, _ = bufio.NewReader(os.Stdin).ReadBytes('\n')
	}
	exit(code)
}

// quit leaves with code, prompting first unless noPause is set.
func quit(code int, noPause bool) {
	if noPause {
		exit(code)
		return
	}
	askExitAndQuit(code)
}

func maskHex(h string) string {
	h = strings.TrimSpace(h)
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "…" + h[len(h)-4:]
}

func printConfig(w io.Writer, st config.Settings) {
	fmt.Fprintln(w, "=== CONFIG ===")
	fmt.Fprintln(w, "RPC_URL          :", st.RPCURL)
	fmt.Fprintln(w, "Bridge contract  :", st.BridgeContract)
	fmt.Fprintf(w, "Route            : %d -> %d\n", st.SourceChainID, st.DestinationChainID)
	fmt.Fprintf(w, "Amount           : %s .. %s %s\n", st.AmountMin, st.AmountMax, st.NativeSymbol)
	fmt.Fprintf(w, "Start delay      : %d .. %d s\n", st.DelayMin, st.DelayMax)
	fmt.Fprintln(w, "Concurrency      :", st.Concurrency)
	fmt.Fprintln(w, "Proxy uniqueness :", st.ProxyUniqueness)
	fmt.Fprintf(w, "Quote            : %d round(s), timeout %s, backoff %s, rps %g\n",
		st.QuoteRounds, st.QuoteTimeout, st.QuoteBackoff, st.QuoteRPS)
	for _, u := range st.QuoteURLs {
		fmt.Fprintln(w, "  url            :", u)
	}
	fmt.Fprintf(w, "Wallets          : %d\n", len(st.WalletKeys))
	for i, k := range st.WalletKeys {
		target := "self"
		if i < len(st.Destinations) {
			target = st.Destinations[i]
		}
		fmt.Fprintf(w, "  Wallet_%-3d     : %s -> %s\n", i+1, maskHex(k), target)
	}
	fmt.Fprintf(w, "Proxies          : %d\n", len(st.Proxies))
	fmt.Fprintln(w, "Results dir      :", st.ResultsDir)
	if st.JournalPath != "" {
		fmt.Fprintln(w, "Journal          :", st.JournalPath)
	}
	fmt.Fprintln(w, "==============")
}

func printProxies(w io.Writer, lines []string) error {
	eps, err := proxy.ParseList(lines)
	if err != nil {
		return err
	}
	seen := map[proxy.Endpoint]int{}
	for i, ep := range eps {
		dup := ""
		if first, ok := seen[ep]; ok {
			dup = fmt.Sprintf("  (duplicate of #%d)", first)
		} else {
			seen[ep] = i + 1
		}
		fmt.Fprintf(w, "#%-3d %s%s\n", i+1, ep, dup)
	}
	fmt.Fprintf(w, "%d endpoint(s), %d unique\n", len(eps), len(seen))
	return nil
}
