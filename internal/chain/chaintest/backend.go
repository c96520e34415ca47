// Package chaintest provides an in-memory RPC backend for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is a scripted stand-in for an RPC endpoint. Zero values answer
// with a funded account on an EIP-1559 chain whose receipts succeed.
type Backend struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	Balance      *big.Int
	Nonce        uint64
	BaseFee      *big.Int // nil selects legacy transactions when Legacy is set
	Legacy       bool
	TipCap       *big.Int
	GasPrice     *big.Int
	GasEstimate  uint64

	ChainIDErr  error
	EstimateErr error
	CallErr     error
	SendErr     error

	// CallResult is returned by CallContract.
	CallResult []byte

	// Code is returned by CodeAt. CodeAfterSend is merged into it once a
	// transaction has been accepted.
	Code          map[common.Address][]byte
	CodeAfterSend map[common.Address][]byte

	// Receipt builds the receipt for a sent transaction. Nil yields a
	// successful receipt in block 1.
	Receipt func(tx *types.Transaction) *types.Receipt

	Sent          []*types.Transaction
	Calls         []ethereum.CallMsg
	EstimateCalls int
	ReceiptCalls  int
	Closed        bool
}

// NewBackend returns a backend for chainID.
func NewBackend(chainID int64) *Backend {
	return &Backend{
		ChainIDValue: big.NewInt(chainID),
		Balance:      big.NewInt(1e18),
		BaseFee:      big.NewInt(1_000_000_000),
		TipCap:       big.NewInt(1_000_000),
		GasPrice:     big.NewInt(2_000_000_000),
		GasEstimate:  100_000,
		Code:         make(map[common.Address][]byte),
	}
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	if b.ChainIDErr != nil {
		return nil, b.ChainIDErr
	}
	return new(big.Int).Set(b.ChainIDValue), nil
}

func (b *Backend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return new(big.Int).Set(b.Balance), nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.Nonce, nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	head := &types.Header{Number: big.NewInt(1)}
	if !b.Legacy {
		head.BaseFee = b.BaseFee
	}
	return head, nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return b.GasPrice, nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return b.TipCap, nil
}

func (b *Backend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.EstimateCalls++
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return b.GasEstimate, nil
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, msg)
	if b.CallErr != nil {
		return nil, b.CallErr
	}
	return b.CallResult, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return b.SendErr
	}
	b.Sent = append(b.Sent, tx)
	for addr, code := range b.CodeAfterSend {
		b.Code[addr] = code
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ReceiptCalls++

	for _, tx := range b.Sent {
		if tx.Hash() != txHash {
			continue
		}
		if b.Receipt != nil {
			return b.Receipt(tx), nil
		}
		return &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      txHash,
			BlockNumber: big.NewInt(1),
			GasUsed:     tx.Gas() / 2,
		}, nil
	}
	return nil, ethereum.NotFound
}

func (b *Backend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Code[account], nil
}

func (b *Backend) Close() {
	b.Closed = true
}
