package bridgecore

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ligun0805/bridge-sender/internal/proxy"
)

// ChainClient is the slice of the node API a bridge transaction needs.
// *ethclient.Client satisfies it.
type ChainClient interface {
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// Dialer opens a chain client whose traffic goes through px (nil = direct).
type Dialer func(ctx context.Context, px *proxy.Endpoint) (ChainClient, error)

const defaultRPCTimeout = 30 * time.Second

type proxiedClient struct {
	*ethclient.Client
	transport *http.Transport
}

func (c *proxiedClient) Close() {
	c.Client.Close()
	c.transport.CloseIdleConnections()
}

// NewDialer dials rpcURL over HTTP with keep-alives and a per-call timeout.
func NewDialer(rpcURL string, timeout time.Duration) Dialer {
	if timeout <= 0 {
		timeout = defaultRPCTimeout
	}
	return func(ctx context.Context, px *proxy.Endpoint) (ChainClient, error) {
		transport := &http.Transport{
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		}
		if px != nil {
			transport.Proxy = http.ProxyURL(px.URL())
		}
		httpClient := &http.Client{Timeout: timeout, Transport: transport}
		rc, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(httpClient))
		if err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("dial rpc: %w", err)
		}
		return &proxiedClient{Client: ethclient.NewClient(rc), transport: transport}, nil
	}
}
