package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/hatsdeploy"
)

// Gas estimates get a 20% buffer.
const (
	gasBufferNumerator   = 120
	gasBufferDenominator = 100
)

// TxRequest describes a transaction before nonce, fees and gas are filled in.
// A nil To is a contract creation.
type TxRequest struct {
	To    *common.Address
	Data  []byte
	Value *big.Int
}

// TransactorOptions configures a Transactor.
type TransactorOptions struct {
	// ExpectedChainID fails NewTransactor when the endpoint reports another
	// chain. Zero disables the check.
	ExpectedChainID uint64

	// GasLimit overrides gas estimation when non-zero.
	GasLimit uint64

	Logger *slog.Logger
}

// Transactor fills, signs, submits and confirms transactions for one signer.
type Transactor struct {
	backend  Backend
	signer   *Signer
	chainID  *big.Int
	gasLimit uint64
	logger   *slog.Logger
}

// NewTransactor queries the chain ID and returns a Transactor bound to it.
func NewTransactor(ctx context.Context, backend Backend, signer *Signer, opts TransactorOptions) (*Transactor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain ID: %w", err)
	}
	if opts.ExpectedChainID != 0 && chainID.Cmp(new(big.Int).SetUint64(opts.ExpectedChainID)) != 0 {
		return nil, fmt.Errorf("%w: expected %d, got %s", hatsdeploy.ErrChainIDMismatch, opts.ExpectedChainID, chainID)
	}

	return &Transactor{
		backend:  backend,
		signer:   signer,
		chainID:  chainID,
		gasLimit: opts.GasLimit,
		logger:   logger,
	}, nil
}

// ChainID returns the chain ID reported by the endpoint.
func (t *Transactor) ChainID() *big.Int {
	return new(big.Int).Set(t.chainID)
}

// From returns the signer address.
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// Backend returns the underlying RPC backend.
func (t *Transactor) Backend() Backend {
	return t.backend
}

// Call executes req as an eth_call against the latest block.
func (t *Transactor) Call(ctx context.Context, req TxRequest) ([]byte, error) {
	return t.backend.CallContract(ctx, t.callMsg(req, 0), nil)
}

// Send builds, signs and submits req. It does not wait for inclusion.
func (t *Transactor) Send(ctx context.Context, req TxRequest) (*types.Transaction, error) {
	from := t.signer.Address()

	nonce, err := t.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasLimit, err := t.estimateGas(ctx, req)
	if err != nil {
		return nil, err
	}

	tx, err := t.buildTx(ctx, nonce, gasLimit, req)
	if err != nil {
		return nil, err
	}

	signedTx, err := t.signer.SignTx(tx, t.chainID)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	t.logger.Info("sending transaction",
		slog.String("from", from.Hex()),
		slog.String("to", toString(req.To)),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
	)

	if err := t.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	t.logger.Info("transaction submitted, waiting for confirmation",
		slog.String("tx_hash", signedTx.Hash().Hex()),
	)
	return signedTx, nil
}

// Wait blocks until tx is mined and returns its receipt. A reverted
// transaction is ErrTxReverted.
func (t *Transactor) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, t.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", hatsdeploy.ErrTxReverted, tx.Hash().Hex())
	}

	t.logger.Info("transaction confirmed",
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("block_number", blockNumber(receipt)),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

func (t *Transactor) estimateGas(ctx context.Context, req TxRequest) (uint64, error) {
	if t.gasLimit > 0 {
		return t.gasLimit, nil
	}
	gas, err := t.backend.EstimateGas(ctx, t.callMsg(req, 0))
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return gas * gasBufferNumerator / gasBufferDenominator, nil
}

// buildTx prefers an EIP-1559 transaction and falls back to a legacy one on
// chains whose head carries no base fee.
func (t *Transactor) buildTx(ctx context.Context, nonce, gasLimit uint64, req TxRequest) (*types.Transaction, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	head, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get latest header: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := t.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("get gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       req.To,
			Value:    value,
			Gas:      gasLimit,
			GasPrice: gasPrice,
			Data:     req.Data,
		}), nil
	}

	tip, err := t.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.chainID,
		Nonce:     nonce,
		To:        req.To,
		Value:     value,
		Gas:       gasLimit,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      req.Data,
	}), nil
}

func (t *Transactor) callMsg(req TxRequest, gas uint64) ethereum.CallMsg {
	return ethereum.CallMsg{
		From:  t.signer.Address(),
		To:    req.To,
		Gas:   gas,
		Value: req.Value,
		Data:  req.Data,
	}
}

func toString(addr *common.Address) string {
	if addr == nil {
		return "(create)"
	}
	return addr.Hex()
}

func blockNumber(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
