package bridgecore

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ligun0805/bridge-sender/internal/ctxwait"
	"github.com/ligun0805/bridge-sender/internal/proxy"
)

const DefaultModule = "sender"

// ResultSink receives one line per finished wallet.
type ResultSink interface {
	Export(key string, success bool, module string) error
}

// Journal receives a structured record per finished wallet.
type Journal interface {
	Append(v any) error
}

// RunSettings are the per-run sampling ranges.
type RunSettings struct {
	AmountMin decimal.Decimal
	AmountMax decimal.Decimal
	// Start delay bounds in whole seconds.
	DelayMin int
	DelayMax int
}

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Orchestrator fans out one worker per job and waits for all of them.
type Orchestrator struct {
	Gate      *Gate
	Proxies   *proxy.Allocator
	Dial      Dialer
	Builder   *Builder
	Submitter *Submitter
	Ledger    ResultSink
	Journal   Journal // optional

	Module      string
	ExplorerURL string
	RunID       string
	// OnState is called on every worker state transition.
	OnState func(key string, s State)

	rnd   *rand.Rand
	sleep func(context.Context, time.Duration) error
	log   *zap.Logger
}

func NewOrchestrator(gate *Gate, proxies *proxy.Allocator, dial Dialer, builder *Builder, submitter *Submitter, ledger ResultSink, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		Gate:        gate,
		Proxies:     proxies,
		Dial:        dial,
		Builder:     builder,
		Submitter:   submitter,
		Ledger:      ledger,
		Module:      DefaultModule,
		ExplorerURL: "https://bscscan.com",
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       ctxwait.Sleep,
		log:         log.Named("bridge"),
	}
}

// RunAll makes exactly one attempt per job. Worker failures never stop
// siblings; an error is returned only when spawning itself cannot go on
// (no jobs, or ctx ended while waiting for a proxy).
func (o *Orchestrator) RunAll(ctx context.Context, jobs []Job, s RunSettings) (Summary, error) {
	if len(jobs) == 0 {
		return Summary{}, ErrNoJobs
	}
	log := o.log
	if o.RunID != "" {
		log = log.With(zap.String("run", o.RunID))
	}
	log.Info(fmt.Sprintf("Preparing bridge tasks for %d wallets", len(jobs)),
		zap.Int("concurrency", o.Gate.Capacity()))

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		spawned   int
		spawnErr  error
	)
	for _, job := range jobs {
		amount := sampleAmount(o.rnd, s.AmountMin, s.AmountMax)
		px, err := o.Proxies.Acquire(ctx)
		if err != nil {
			spawnErr = fmt.Errorf("acquire proxy for %s: %w", job.Key(), err)
			break
		}
		t := task{job: job, amount: amount, delay: sampleDelay(o.rnd, s.DelayMin, s.DelayMax), proxy: px, log: log}

		wg.Add(1)
		spawned++
		go func() {
			defer wg.Done()
			if out := o.work(ctx, t); out.Success {
				succeeded.Add(1)
			}
		}()
	}
	if spawnErr == nil {
		log.Info(fmt.Sprintf("Prepared %d bridge tasks. Starting execution..", spawned))
	}
	wg.Wait()

	sum := Summary{Total: spawned, Succeeded: int(succeeded.Load())}
	sum.Failed = sum.Total - sum.Succeeded
	log.Info("All bridge tasks finished",
		zap.Int("total", sum.Total), zap.Int("succeeded", sum.Succeeded), zap.Int("failed", sum.Failed))
	return sum, spawnErr
}

func (o *Orchestrator) module() string {
	if o.Module == "" {
		return DefaultModule
	}
	return o.Module
}

func (o *Orchestrator) symbol() string {
	if o.Submitter != nil && o.Submitter.NativeSymbol != "" {
		return o.Submitter.NativeSymbol
	}
	return "BNB"
}
