package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ligun0805/bridge-sender/internal/bridgecore"
	"github.com/ligun0805/bridge-sender/internal/config"
	"github.com/ligun0805/bridge-sender/internal/ledger"
	"github.com/ligun0805/bridge-sender/internal/logger"
	"github.com/ligun0805/bridge-sender/internal/proxy"
	"github.com/ligun0805/bridge-sender/internal/quote"
)

func runBridge(ctx context.Context, st config.Settings, out io.Writer) error {
	log, syncLog, err := logger.New(logger.Options{Dir: st.LogDir, Level: st.LogLevel})
	if err != nil {
		return err
	}
	defer syncLog()

	jobs, err := buildJobs(st)
	if err != nil {
		return err
	}
	eps, err := proxy.ParseList(st.Proxies)
	if err != nil {
		return err
	}

	results := ledger.New(st.ResultsDir)
	if err := results.Setup(); err != nil {
		return fmt.Errorf("setup results: %w", err)
	}

	runID := uuid.NewString()
	fetcher := quote.NewFetcher(quote.Config{
		URLs:              st.QuoteURLs,
		SourceChain:       st.SourceChainID,
		DestinationChain:  st.DestinationChainID,
		Timeout:           st.QuoteTimeout,
		Rounds:            st.QuoteRounds,
		Backoff:           st.QuoteBackoff,
		RequestsPerSecond: st.QuoteRPS,
	}, log)

	orch := bridgecore.NewOrchestrator(
		bridgecore.NewGate(st.Concurrency),
		proxy.NewAllocator(eps, st.ProxyUniqueness, log),
		bridgecore.NewDialer(st.RPCURL, st.RPCTimeout),
		bridgecore.NewBuilder(fetcher, common.HexToAddress(st.BridgeContract), log),
		bridgecore.NewSubmitter(st.NativeSymbol, log),
		results,
		log,
	)
	orch.RunID = runID
	orch.ExplorerURL = st.ExplorerURL
	orch.OnState = func(key string, s bridgecore.State) {
		log.Debug("worker state", zap.String("wallet", key), zap.Stringer("state", s))
	}
	if j := ledger.NewJournal(st.JournalPath); j != nil {
		defer j.Close()
		orch.Journal = j
	}

	sum, err := orch.RunAll(ctx, jobs, bridgecore.RunSettings{
		AmountMin: st.AmountMin,
		AmountMax: st.AmountMax,
		DelayMin:  st.DelayMin,
		DelayMax:  st.DelayMax,
	})
	fmt.Fprintf(out, "Done. run=%s total=%d ok=%d failed=%d => %s\n",
		runID, sum.Total, sum.Succeeded, sum.Failed, filepath.Join(st.ResultsDir, "login"))
	return err
}

func buildJobs(st config.Settings) ([]bridgecore.Job, error) {
	jobs := make([]bridgecore.Job, 0, len(st.WalletKeys))
	for i, k := range st.WalletKeys {
		cred, err := bridgecore.NewCredential(k)
		if err != nil {
			return nil, fmt.Errorf("wallet %d: %w", i+1, err)
		}
		job := bridgecore.Job{Index: i + 1, Credential: cred}
		if i < len(st.Destinations) {
			job.Destination = common.HexToAddress(st.Destinations[i])
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
