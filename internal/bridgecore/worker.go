package bridgecore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ligun0805/bridge-sender/internal/proxy"
)

type State int

const (
	StatePending State = iota
	StateDelaying
	StateBuilding
	StateSubmitting
	StateReleasing
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDelaying:
		return "delaying"
	case StateBuilding:
		return "building"
	case StateSubmitting:
		return "submitting"
	case StateReleasing:
		return "releasing"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Job is one wallet to bridge from. Index is 1-based.
type Job struct {
	Index       int
	Credential  *Credential
	Destination common.Address
}

// Key identifies the job in the result ledger.
func (j Job) Key() string { return fmt.Sprintf("Wallet_%d", j.Index) }

// OutcomeRecord is what the journal receives for every finished worker.
type OutcomeRecord struct {
	RunID       string    `json:"run_id,omitempty"`
	Key         string    `json:"key"`
	Address     string    `json:"address"`
	Destination string    `json:"destination"`
	Amount      string    `json:"amount"`
	Proxy       string    `json:"proxy"`
	Success     bool      `json:"success"`
	Detail      string    `json:"detail"`
	TxHash      string    `json:"tx_hash,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// task binds a job to the per-run values sampled by the orchestrator.
type task struct {
	job    Job
	amount decimal.Decimal
	delay  time.Duration
	proxy  proxy.Endpoint
	log    *zap.Logger
}

// work drives one task from Pending to Done. Done is reached exactly once,
// whatever fails on the way.
func (o *Orchestrator) work(ctx context.Context, t task) (out Outcome) {
	key := t.job.Key()
	from := t.job.Credential.Address()
	dest := t.job.Destination
	if dest == (common.Address{}) {
		dest = from
	}
	log := t.log.With(zap.String("wallet", key), zap.String("target", dest.Hex()))

	var (
		chain    ChainClient
		admitted bool
	)
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Detail: fmt.Sprintf("worker panic: %v", r)}
		}
		o.setState(key, StateReleasing)
		if chain != nil {
			chain.Close()
		}
		o.Proxies.Release(t.proxy)
		o.record(log, t, dest, out)
		if admitted {
			o.Gate.Release()
		}
		o.setState(key, StateDone)
	}()

	o.setState(key, StatePending)
	if err := o.Gate.Acquire(ctx); err != nil {
		return failed(fmt.Errorf("admission: %w", err))
	}
	admitted = true

	o.setState(key, StateDelaying)
	if t.delay > 0 {
		log.Info(fmt.Sprintf("Waiting for %d seconds before starting..", int(t.delay/time.Second)))
		if err := o.sleep(ctx, t.delay); err != nil {
			return failed(fmt.Errorf("delay: %w", err))
		}
	}

	o.setState(key, StateBuilding)
	log.Info(fmt.Sprintf("Bridge %s %s..", t.amount.StringFixed(AmountPlaces), o.symbol()))
	px := t.proxy
	c, err := o.Dial(ctx, &px)
	if err != nil {
		return failed(fmt.Errorf("%w: %w", ErrBuild, err))
	}
	chain = c

	req, err := o.Builder.Build(ctx, chain, t.job.Credential, dest, ToWei(t.amount), &px)
	if err != nil {
		return failed(err)
	}

	o.setState(key, StateSubmitting)
	return o.Submitter.Submit(ctx, chain, req)
}

func (o *Orchestrator) record(log *zap.Logger, t task, dest common.Address, out Outcome) {
	amount := t.amount.StringFixed(AmountPlaces)
	if out.Success {
		log.Info(fmt.Sprintf("Successfully bridged %s %s", amount, o.symbol()),
			zap.String("tx", o.txLink(out.TxHash)))
	} else {
		log.Error(fmt.Sprintf("Failed to bridge %s %s", amount, o.symbol()),
			zap.String("error", out.Detail))
	}

	key := t.job.Key()
	if err := o.Ledger.Export(key, out.Success, o.module()); err != nil {
		log.Error("Error writing result", zap.Error(err))
	}
	if o.Journal == nil {
		return
	}
	rec := OutcomeRecord{
		RunID:       o.RunID,
		Key:         key,
		Address:     t.job.Credential.Address().Hex(),
		Destination: dest.Hex(),
		Amount:      amount,
		Proxy:       t.proxy.String(),
		Success:     out.Success,
		Detail:      out.Detail,
		TxHash:      out.TxHash,
		FinishedAt:  time.Now().UTC(),
	}
	if err := o.Journal.Append(rec); err != nil {
		log.Warn("journal append failed", zap.Error(err))
	}
}

func (o *Orchestrator) txLink(hash string) string {
	if hash == "" {
		return ""
	}
	if !strings.HasPrefix(hash, "0x") {
		hash = "0x" + hash
	}
	return strings.TrimRight(o.ExplorerURL, "/") + "/tx/" + hash
}

func (o *Orchestrator) setState(key string, s State) {
	if o.OnState != nil {
		o.OnState(key, s)
	}
}
