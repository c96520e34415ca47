// Package chain wraps the rollup RPC endpoint: dialing, signing, submitting
// transactions and waiting for receipts.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of the JSON-RPC surface the deployers use.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// DialFunc connects to an RPC endpoint.
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

// Dial connects to an Ethereum RPC endpoint using go-ethereum's ethclient.
func Dial(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

var _ Backend = (*ethclient.Client)(nil)
