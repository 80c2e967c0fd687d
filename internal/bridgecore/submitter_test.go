package bridgecore

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(t *testing.T, value *big.Int) *TxRequest {
	t.Helper()
	return &TxRequest{
		Credential: newCredential(t),
		ChainID:    big.NewInt(56),
		To:         DefaultBridgeContract,
		Value:      value,
		GasPrice:   big.NewInt(1_000_000_000),
		Gas:        60_000,
		Nonce:      3,
		Data:       []byte{0xca, 0xfe},
	}
}

func TestSubmitInsufficientBalanceNeverBroadcasts(t *testing.T) {
	chain := newFakeChain()
	chain.balance = ether(1, 100)
	s := NewSubmitter("BNB", nil)

	out := s.Submit(context.Background(), chain, testRequest(t, ether(5, 100)))
	assert.False(t, out.Success)
	assert.Contains(t, out.Detail, "BNB balance is not enough. Required: 0.05 BNB | Available: 0.01 BNB")
	assert.Zero(t, chain.sentCount())
}

func TestSubmitSuccess(t *testing.T) {
	chain := newFakeChain()
	s := NewSubmitter("", nil)
	req := testRequest(t, ether(1, 100))

	out := s.Submit(context.Background(), chain, req)
	require.True(t, out.Success, out.Detail)
	assert.True(t, strings.HasPrefix(out.TxHash, "0x"))
	assert.Equal(t, out.TxHash, out.Detail)

	require.Equal(t, 1, chain.sentCount())
	tx := chain.sent[0]
	assert.Equal(t, out.TxHash, tx.Hash().Hex())
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Equal(t, req.Nonce, tx.Nonce())
	assert.Equal(t, req.Gas, tx.Gas())
	assert.Equal(t, 0, tx.Value().Cmp(req.Value))
	assert.Equal(t, req.Data, tx.Data())
	assert.Equal(t, DefaultBridgeContract, *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(req.ChainID), tx)
	require.NoError(t, err)
	assert.Equal(t, req.Credential.Address(), sender)
}

func TestSubmitRevertedReceipt(t *testing.T) {
	chain := newFakeChain()
	chain.status = types.ReceiptStatusFailed
	s := NewSubmitter("BNB", nil)

	out := s.Submit(context.Background(), chain, testRequest(t, ether(1, 100)))
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.TxHash)
	assert.Equal(t, out.TxHash, out.Detail)
}

func TestSubmitBroadcastError(t *testing.T) {
	chain := newFakeChain()
	chain.sendErr = errors.New("nonce too low")
	s := NewSubmitter("BNB", nil)

	out := s.Submit(context.Background(), chain, testRequest(t, ether(1, 100)))
	assert.False(t, out.Success)
	assert.Contains(t, out.Detail, "nonce too low")
	assert.Empty(t, out.TxHash)
}

func TestSubmitReceiptWaitCanceled(t *testing.T) {
	chain := newFakeChain()
	s := NewSubmitter("BNB", nil)
	s.waitMined = func(ctx context.Context, _ bind.DeployBackend, _ *types.Transaction) (*types.Receipt, error) {
		return nil, context.Canceled
	}

	out := s.Submit(context.Background(), chain, testRequest(t, ether(1, 100)))
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.TxHash)
	assert.Contains(t, out.Detail, "wait receipt")
}
