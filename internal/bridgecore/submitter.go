package bridgecore

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Outcome is the single result of one wallet's attempt. Detail is the 0x
// transaction hash when a transaction was mined successfully, otherwise the
// error text (or the hash of a reverted transaction).
type Outcome struct {
	Success bool
	Detail  string
	TxHash  string
}

func failed(err error) Outcome { return Outcome{Detail: err.Error()} }

type Submitter struct {
	// NativeSymbol names the coin in balance errors.
	NativeSymbol string

	waitMined func(ctx context.Context, b bind.DeployBackend, tx *types.Transaction) (*types.Receipt, error)
	log       *zap.Logger
}

func NewSubmitter(nativeSymbol string, log *zap.Logger) *Submitter {
	if nativeSymbol == "" {
		nativeSymbol = "BNB"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{NativeSymbol: nativeSymbol, waitMined: bind.WaitMined, log: log.Named("submitter")}
}

// Submit checks the balance, signs, broadcasts and waits for the receipt.
// It never returns an error: every failure becomes a failed Outcome.
func (s *Submitter) Submit(ctx context.Context, chain ChainClient, req *TxRequest) Outcome {
	from := req.Credential.Address()

	balance, err := withRetry(ctx, func(ctx context.Context) (*big.Int, error) {
		return chain.BalanceAt(ctx, from, nil)
	})
	if err != nil {
		return failed(fmt.Errorf("%w: balance (%s): %w", ErrSubmit, classifyRPCError(err), err))
	}
	if balance.Cmp(req.Value) < 0 {
		return failed(fmt.Errorf("%w: %s balance is not enough. Required: %s %s | Available: %s %s",
			ErrInsufficientBalance, s.NativeSymbol,
			fmtNative(req.Value), s.NativeSymbol, fmtNative(balance), s.NativeSymbol))
	}

	tx := buildLegacyTx(req.Nonce, req.To, req.Value, req.Gas, req.GasPrice, req.Data)
	signed, err := signTx(tx, req.ChainID, req.Credential.key)
	if err != nil {
		return failed(fmt.Errorf("%w: sign: %w", ErrSubmit, err))
	}
	hash := signed.Hash().Hex()

	if err := chain.SendTransaction(ctx, signed); err != nil {
		return failed(fmt.Errorf("%w: broadcast: %w", ErrSubmit, err))
	}
	s.log.Debug("transaction sent", zap.String("from", from.Hex()), zap.String("tx", hash))

	receipt, err := s.waitMined(ctx, chain, signed)
	if err != nil {
		return Outcome{Detail: fmt.Errorf("%w: wait receipt %s: %w", ErrSubmit, hash, err).Error(), TxHash: hash}
	}
	return Outcome{
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		Detail:  hash,
		TxHash:  hash,
	}
}
