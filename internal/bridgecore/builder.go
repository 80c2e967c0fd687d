package bridgecore

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ligun0805/bridge-sender/internal/proxy"
	"github.com/ligun0805/bridge-sender/internal/quote"
)

// DefaultBridgeContract is the gas.zip deposit contract on BSC.
var DefaultBridgeContract = common.HexToAddress("0x391E7C679d29bD940d63be94AD22A25d25b5A604")

type CallDataSource interface {
	FetchCallData(ctx context.Context, req quote.Request) ([]byte, error)
}

// TxRequest is everything needed to sign one bridge transaction. It is built
// fresh for every attempt.
type TxRequest struct {
	Credential  *Credential
	Destination common.Address
	Proxy       *proxy.Endpoint

	ChainID  *big.Int
	To       common.Address
	Value    *big.Int
	GasPrice *big.Int
	Gas      uint64
	Nonce    uint64
	Data     []byte
}

type Builder struct {
	Quotes   CallDataSource
	Contract common.Address
	log      *zap.Logger
}

func NewBuilder(quotes CallDataSource, contract common.Address, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if contract == (common.Address{}) {
		contract = DefaultBridgeContract
	}
	return &Builder{Quotes: quotes, Contract: contract, log: log.Named("builder")}
}

// Build fetches call-data then queries gas price, gas limit, nonce and chain
// id. Any failure aborts with an error wrapping ErrBuild.
func (b *Builder) Build(ctx context.Context, chain ChainClient, cred *Credential, dest common.Address, amountWei *big.Int, px *proxy.Endpoint) (*TxRequest, error) {
	if amountWei == nil || amountWei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBuild)
	}
	from := cred.Address()
	if dest == (common.Address{}) {
		dest = from
	}

	data, err := b.Quotes.FetchCallData(ctx, quote.Request{From: from, To: dest, AmountWei: amountWei, Proxy: px})
	if err != nil {
		return nil, fmt.Errorf("%w: quote: %w", ErrBuild, err)
	}

	gasPrice, err := withRetry(ctx, chain.SuggestGasPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: gas price (%s): %w", ErrBuild, classifyRPCError(err), err)
	}

	contract := b.Contract
	msg := ethereum.CallMsg{From: from, To: &contract, Value: amountWei, Data: data}
	gas, err := withRetry(ctx, func(ctx context.Context) (uint64, error) { return chain.EstimateGas(ctx, msg) })
	if err != nil {
		return nil, fmt.Errorf("%w: estimate gas (%s): %w", ErrBuild, classifyRPCError(err), err)
	}

	nonce, err := withRetry(ctx, func(ctx context.Context) (uint64, error) { return chain.PendingNonceAt(ctx, from) })
	if err != nil {
		return nil, fmt.Errorf("%w: nonce (%s): %w", ErrBuild, classifyRPCError(err), err)
	}

	chainID, err := withRetry(ctx, chain.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id (%s): %w", ErrBuild, classifyRPCError(err), err)
	}

	b.log.Debug("transaction built",
		zap.String("from", from.Hex()),
		zap.String("gas_price_gwei", fmtGwei(gasPrice)),
		zap.Uint64("gas", gas),
		zap.Uint64("nonce", nonce),
		zap.String("chain_id", chainID.String()))

	return &TxRequest{
		Credential:  cred,
		Destination: dest,
		Proxy:       px,
		ChainID:     chainID,
		To:          contract,
		Value:       new(big.Int).Set(amountWei),
		GasPrice:    gasPrice,
		Gas:         gas,
		Nonce:       nonce,
		Data:        data,
	}, nil
}
