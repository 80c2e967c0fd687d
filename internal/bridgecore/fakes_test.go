package bridgecore

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/bridge-sender/internal/quote"
)

var oneEther = big.NewInt(1_000_000_000_000_000_000)

func ether(num, den int64) *big.Int {
	v := new(big.Int).Mul(oneEther, big.NewInt(num))
	return v.Div(v, big.NewInt(den))
}

type fakeChain struct {
	mu sync.Mutex

	chainID  *big.Int
	gasPrice *big.Int
	gas      uint64
	nonce    uint64
	balance  *big.Int
	status   uint64

	estimateErr error
	sendErr     error

	estimateCalls int
	lastEstimate  ethereum.CallMsg
	sent          []*types.Transaction
	closed        int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID:  big.NewInt(56),
		gasPrice: big.NewInt(1_000_000_000),
		gas:      60_000,
		nonce:    7,
		balance:  ether(1, 1),
		status:   types.ReceiptStatusSuccessful,
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) { return f.gasPrice, nil }

func (f *fakeChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateCalls++
	f.lastEstimate = msg
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.gas, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeChain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: f.status, TxHash: hash}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeChain) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeChain) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type quoteFunc func(ctx context.Context, req quote.Request) ([]byte, error)

func (q quoteFunc) FetchCallData(ctx context.Context, req quote.Request) ([]byte, error) {
	return q(ctx, req)
}

func staticQuote(data []byte) quoteFunc {
	return func(context.Context, quote.Request) ([]byte, error) { return data, nil }
}

func failingQuote() quoteFunc {
	return func(context.Context, quote.Request) ([]byte, error) {
		return nil, &quote.ExhaustedError{Rounds: 3, Last: errors.New("no liquidity")}
	}
}

type ledgerEntry struct {
	key     string
	success bool
	module  string
}

type memLedger struct {
	mu      sync.Mutex
	entries []ledgerEntry
}

func (m *memLedger) Export(key string, success bool, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, ledgerEntry{key, success, module})
	return nil
}

func (m *memLedger) keys(success bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		if e.success == success {
			out = append(out, e.key)
		}
	}
	return out
}

type memJournal struct {
	mu      sync.Mutex
	records []any
}

func (j *memJournal) Append(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, v)
	return nil
}

func newCredential(t *testing.T) *Credential {
	t.Helper()
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	c, err := NewCredential(hexutil.Encode(crypto.FromECDSA(k)))
	require.NoError(t, err)
	return c
}
