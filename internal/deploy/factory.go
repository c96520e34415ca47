// Package deploy implements the two deployment procedures: the deterministic
// factory deployment and the factory's deployModule call.
package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/hatsdeploy"
	"github.com/Bidon15/hatsdeploy/internal/artifacts"
	"github.com/Bidon15/hatsdeploy/internal/chain"
)

// Result describes a confirmed deployment.
type Result struct {
	ContractName    string         `json:"contract"`
	Address         common.Address `json:"address"`
	TxHash          common.Hash    `json:"tx_hash"`
	BlockNumber     uint64         `json:"block_number"`
	GasUsed         uint64         `json:"gas_used"`
	ConstructorArgs hexutil.Bytes  `json:"constructor_args,omitempty"`
	ArtifactPath    string         `json:"artifact_path,omitempty"`
}

// FactoryRequest is the input to FactoryDeployer.
type FactoryRequest struct {
	Params          hatsdeploy.FactoryParams
	Artifact        *artifacts.ContractArtifact
	ConstructorArgs []any
}

// Prediction is the deterministic outcome of a factory deployment, computed
// without touching the network.
type Prediction struct {
	Address         common.Address
	InitCode        []byte
	ConstructorArgs []byte
	Calldata        []byte
}

// FactoryDeployer deploys a contract through the CREATE2 deployment proxy.
type FactoryDeployer struct {
	tx     *chain.Transactor
	proxy  common.Address
	logger *slog.Logger
}

// NewFactoryDeployer creates a FactoryDeployer. A zero proxy selects
// hatsdeploy.DefaultCreate2Deployer.
func NewFactoryDeployer(tx *chain.Transactor, proxy common.Address, logger *slog.Logger) *FactoryDeployer {
	if proxy == (common.Address{}) {
		proxy = hatsdeploy.DefaultCreate2Deployer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FactoryDeployer{tx: tx, proxy: proxy, logger: logger}
}

// Predict computes where req will be deployed through proxy.
func Predict(proxy common.Address, req FactoryRequest) (*Prediction, error) {
	bytecode, err := req.Artifact.BytecodeBytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Params.ContractName, err)
	}

	contractABI, err := req.Artifact.ParsedABI()
	if err != nil {
		return nil, err
	}
	ctorArgs, err := contractABI.Pack("", req.ConstructorArgs...)
	if err != nil {
		return nil, fmt.Errorf("encode constructor args: %w", err)
	}

	initCode := InitCode(bytecode, ctorArgs)
	return &Prediction{
		Address:         Create2Address(proxy, req.Params.Salt, initCode),
		InitCode:        initCode,
		ConstructorArgs: ctorArgs,
		Calldata:        Create2Calldata(req.Params.Salt, initCode),
	}, nil
}

// Deploy submits one CREATE2 deployment and waits for it to be mined. An
// occupied target address is not skipped: the network's own failure is
// returned as is.
func (d *FactoryDeployer) Deploy(ctx context.Context, req FactoryRequest) (*Result, error) {
	name := req.Params.ContractName

	prediction, err := Predict(d.proxy, req)
	if err != nil {
		return nil, err
	}

	d.logger.Info("deploying "+name,
		slog.String("deployer", d.tx.From().Hex()),
		slog.String("create2_proxy", d.proxy.Hex()),
		slog.String("salt", req.Params.Salt.Hex()),
		slog.String("predicted_address", prediction.Address.Hex()),
	)
	d.logger.Info("constructor args", slog.String("encoded", hexutil.Encode(prediction.ConstructorArgs)))

	backend := d.tx.Backend()
	if code, err := backend.CodeAt(ctx, prediction.Address, nil); err == nil && len(code) > 0 {
		d.logger.Warn("predicted address already has code",
			slog.String("address", prediction.Address.Hex()),
		)
	}

	proxy := d.proxy
	signedTx, err := d.tx.Send(ctx, chain.TxRequest{To: &proxy, Data: prediction.Calldata})
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	receipt, err := d.tx.Wait(ctx, signedTx)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	code, err := backend.CodeAt(ctx, prediction.Address, nil)
	if err != nil {
		return nil, fmt.Errorf("get code at %s: %w", prediction.Address.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s after %s", hatsdeploy.ErrNoCodeAtAddress, prediction.Address.Hex(), signedTx.Hash().Hex())
	}

	d.logger.Info(name+" was deployed",
		slog.String("address", prediction.Address.Hex()),
		slog.String("tx_hash", signedTx.Hash().Hex()),
	)

	return &Result{
		ContractName:    name,
		Address:         prediction.Address,
		TxHash:          signedTx.Hash(),
		BlockNumber:     blockNumber(receipt),
		GasUsed:         receipt.GasUsed,
		ConstructorArgs: prediction.ConstructorArgs,
		ArtifactPath:    req.Artifact.Path,
	}, nil
}

func blockNumber(receipt *types.Receipt) uint64 {
	if receipt == nil || receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}
