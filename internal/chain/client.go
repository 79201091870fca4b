package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Head is the latest block of a chain.
type Head struct {
	ChainID *big.Int
	Number  uint64
	Time    time.Time
}

// Client wraps go-ethereum RPC for chain head lookups.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Head returns the chain ID and latest header.
func (c *Client) Head(ctx context.Context) (Head, error) {
	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return Head{}, err
	}
	header, err := c.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return Head{}, err
	}
	return Head{
		ChainID: chainID,
		Number:  header.Number.Uint64(),
		Time:    time.Unix(int64(header.Time), 0).UTC(),
	}, nil
}
