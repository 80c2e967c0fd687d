package bridgecore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/bridge-sender/internal/proxy"
	"github.com/ligun0805/bridge-sender/internal/quote"
)

type harness struct {
	orch    *Orchestrator
	chain   *fakeChain
	ledger  *memLedger
	proxies *proxy.Allocator
	pool    int

	mu     sync.Mutex
	states map[string][]State
	sleeps []time.Duration
}

func newHarness(t *testing.T, capacity, poolSize int, quotes CallDataSource) *harness {
	t.Helper()
	h := &harness{chain: newFakeChain(), ledger: &memLedger{}, pool: poolSize, states: map[string][]State{}}
	eps := make([]proxy.Endpoint, poolSize)
	for i := range eps {
		eps[i] = proxy.Endpoint{Scheme: "http", Host: "127.0.0.1", Port: 9000 + i}
	}
	h.proxies = proxy.NewAllocator(eps, true, nil)
	dial := func(context.Context, *proxy.Endpoint) (ChainClient, error) { return h.chain, nil }
	h.orch = NewOrchestrator(NewGate(capacity), h.proxies, dial,
		NewBuilder(quotes, common.Address{}, nil), NewSubmitter("BNB", nil), h.ledger, nil)
	h.orch.OnState = func(key string, s State) {
		h.mu.Lock()
		h.states[key] = append(h.states[key], s)
		h.mu.Unlock()
	}
	h.orch.sleep = func(_ context.Context, d time.Duration) error {
		h.mu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.mu.Unlock()
		return nil
	}
	return h
}

func jobs(t *testing.T, n int) []Job {
	out := make([]Job, n)
	for i := range out {
		out[i] = Job{Index: i + 1, Credential: newCredential(t)}
	}
	return out
}

func fixedSettings() RunSettings {
	return RunSettings{AmountMin: decimal.RequireFromString("0.001"), AmountMax: decimal.RequireFromString("0.002")}
}

func TestRunAllAllSucceed(t *testing.T) {
	h := newHarness(t, 1, 3, staticQuote([]byte{0x01}))

	sum, err := h.orch.RunAll(context.Background(), jobs(t, 3), fixedSettings())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Succeeded: 3}, sum)

	assert.ElementsMatch(t, []string{"Wallet_1", "Wallet_2", "Wallet_3"}, h.ledger.keys(true))
	assert.Empty(t, h.ledger.keys(false))
	for _, e := range h.ledger.entries {
		assert.Equal(t, DefaultModule, e.module)
	}
	assert.Equal(t, 3, h.chain.sentCount())
	hashes := map[string]bool{}
	for _, tx := range h.chain.sent {
		hashes[tx.Hash().Hex()] = true
	}
	assert.Len(t, hashes, 3)
}

func TestRunAllQuoteFailureReachesDoneOnce(t *testing.T) {
	h := newHarness(t, 1, 2, failingQuote())

	sum, err := h.orch.RunAll(context.Background(), jobs(t, 2), fixedSettings())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Failed: 2}, sum)
	assert.ElementsMatch(t, []string{"Wallet_1", "Wallet_2"}, h.ledger.keys(false))
	assert.Zero(t, h.chain.sentCount())

	for key, seen := range h.states {
		assert.Equal(t, []State{StatePending, StateDelaying, StateBuilding, StateReleasing, StateDone}, seen, key)
	}
	assert.True(t, h.orch.Gate.sem.TryAcquire(1), "gate permit must be released")
	assert.Equal(t, 2, h.proxies.Len())
	assert.Zero(t, h.proxies.InUse())
	assert.Equal(t, 2, h.chain.closed)
}

func TestRunAllFullStatePath(t *testing.T) {
	h := newHarness(t, 1, 1, staticQuote([]byte{0x01}))
	_, err := h.orch.RunAll(context.Background(), jobs(t, 1), fixedSettings())
	require.NoError(t, err)
	assert.Equal(t,
		[]State{StatePending, StateDelaying, StateBuilding, StateSubmitting, StateReleasing, StateDone},
		h.states["Wallet_1"])
}

func TestRunAllRespectsGateCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			var inFlight, peak atomic.Int32
			q := quoteFunc(func(context.Context, quote.Request) ([]byte, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(15 * time.Millisecond)
				inFlight.Add(-1)
				return []byte{0x01}, nil
			})
			h := newHarness(t, capacity, 8, q)

			sum, err := h.orch.RunAll(context.Background(), jobs(t, 8), fixedSettings())
			require.NoError(t, err)
			assert.Equal(t, 8, sum.Succeeded)
			assert.LessOrEqual(t, int(peak.Load()), capacity)
		})
	}
}

func TestRunAllZeroDelayNeverSleeps(t *testing.T) {
	h := newHarness(t, 2, 2, staticQuote([]byte{0x01}))
	_, err := h.orch.RunAll(context.Background(), jobs(t, 2), fixedSettings())
	require.NoError(t, err)
	assert.Empty(t, h.sleeps)
}

func TestRunAllSamplesDelay(t *testing.T) {
	h := newHarness(t, 1, 1, staticQuote([]byte{0x01}))
	s := fixedSettings()
	s.DelayMin, s.DelayMax = 3, 3
	_, err := h.orch.RunAll(context.Background(), jobs(t, 1), s)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second}, h.sleeps)
}

func TestRunAllSmallPoolDoesNotDeadlock(t *testing.T) {
	h := newHarness(t, 1, 1, staticQuote([]byte{0x01}))

	done := make(chan Summary, 1)
	go func() {
		sum, _ := h.orch.RunAll(context.Background(), jobs(t, 4), fixedSettings())
		done <- sum
	}()
	select {
	case sum := <-done:
		assert.Equal(t, 4, sum.Succeeded)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish with a single proxy")
	}
}

func TestRunAllCanceledWhileWaitingForProxy(t *testing.T) {
	h := newHarness(t, 1, 0, staticQuote([]byte{0x01}))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	sum, err := h.orch.RunAll(ctx, jobs(t, 2), fixedSettings())
	assert.True(t, errors.Is(err, proxy.ErrNoProxies))
	assert.Zero(t, sum.Total)
}

func TestRunAllNoJobs(t *testing.T) {
	h := newHarness(t, 1, 1, staticQuote([]byte{0x01}))
	_, err := h.orch.RunAll(context.Background(), nil, fixedSettings())
	assert.True(t, errors.Is(err, ErrNoJobs))
}

func TestRunAllWritesJournal(t *testing.T) {
	h := newHarness(t, 1, 1, staticQuote([]byte{0x01}))
	j := &memJournal{}
	h.orch.Journal = j
	h.orch.RunID = "run-1"

	_, err := h.orch.RunAll(context.Background(), jobs(t, 1), fixedSettings())
	require.NoError(t, err)
	require.Len(t, j.records, 1)
	rec, ok := j.records[0].(OutcomeRecord)
	require.True(t, ok)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "Wallet_1", rec.Key)
	assert.True(t, rec.Success)
	assert.Equal(t, rec.TxHash, rec.Detail)
	assert.Equal(t, "http://127.0.0.1:9000", rec.Proxy)
}

func TestTxLink(t *testing.T) {
	o := &Orchestrator{ExplorerURL: "https://bscscan.com/"}
	assert.Equal(t, "https://bscscan.com/tx/0xabc", o.txLink("abc"))
	assert.Equal(t, "https://bscscan.com/tx/0xabc", o.txLink("0xabc"))
	assert.Empty(t, o.txLink(""))
}
