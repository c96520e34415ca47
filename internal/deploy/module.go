package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/hatsdeploy"
	"github.com/Bidon15/hatsdeploy/internal/chain"
)

// DeployModuleMethod is the factory method that creates a module instance.
const DeployModuleMethod = "deployModule"

// Event arguments checked first when looking for the new module's address.
var moduleAddressArgs = []string{"instance", "module"}

// ModuleDeployer calls deployModule on an existing factory.
type ModuleDeployer struct {
	tx         *chain.Transactor
	factoryABI abi.ABI
	logger     *slog.Logger
}

// NewModuleDeployer creates a ModuleDeployer. factoryABI must define
// deployModule.
func NewModuleDeployer(tx *chain.Transactor, factoryABI abi.ABI, logger *slog.Logger) (*ModuleDeployer, error) {
	if _, ok := factoryABI.Methods[DeployModuleMethod]; !ok {
		return nil, fmt.Errorf("%w: %s", hatsdeploy.ErrMethodNotFound, DeployModuleMethod)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModuleDeployer{tx: tx, factoryABI: factoryABI, logger: logger}, nil
}

// PackDeployModule encodes deployModule(hatId, hat, initData, saltNonce).
func PackDeployModule(factoryABI abi.ABI, params hatsdeploy.ModuleParams) ([]byte, error) {
	data, err := factoryABI.Pack(DeployModuleMethod, params.HatID, params.Hats, params.InitData, params.SaltNonce)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", DeployModuleMethod, err)
	}
	return data, nil
}

// Deploy submits one deployModule transaction, waits for it to be mined and
// returns the module address.
func (d *ModuleDeployer) Deploy(ctx context.Context, params hatsdeploy.ModuleParams) (*Result, error) {
	name := params.ContractName

	data, err := PackDeployModule(d.factoryABI, params)
	if err != nil {
		return nil, err
	}

	d.logger.Info("deploying "+name,
		slog.String("factory", params.Factory.Hex()),
		slog.String("hat_id", params.HatID.String()),
		slog.String("hats", params.Hats.Hex()),
		slog.String("salt_nonce", params.SaltNonce.String()),
	)

	factory := params.Factory
	req := chain.TxRequest{To: &factory, Data: data}

	simulated := d.simulate(ctx, req)

	signedTx, err := d.tx.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	receipt, err := d.tx.Wait(ctx, signedTx)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	addr, err := d.resolveAddress(receipt, factory, simulated)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	d.logger.Info(name+" deployed",
		slog.String("address", addr.Hex()),
		slog.String("tx_hash", signedTx.Hash().Hex()),
	)

	return &Result{
		ContractName: name,
		Address:      addr,
		TxHash:       signedTx.Hash(),
		BlockNumber:  blockNumber(receipt),
		GasUsed:      receipt.GasUsed,
	}, nil
}

// simulate runs the call with eth_call to learn the returned address. A
// failed simulation is not fatal; the real transaction decides.
func (d *ModuleDeployer) simulate(ctx context.Context, req chain.TxRequest) common.Address {
	out, err := d.tx.Call(ctx, req)
	if err != nil {
		d.logger.Debug("deployModule simulation failed", slog.String("error", err.Error()))
		return common.Address{}
	}
	values, err := d.factoryABI.Unpack(DeployModuleMethod, out)
	if err != nil || len(values) == 0 {
		return common.Address{}
	}
	addr, _ := values[0].(common.Address)
	return addr
}

func (d *ModuleDeployer) resolveAddress(receipt *types.Receipt, factory, simulated common.Address) (common.Address, error) {
	if receipt.ContractAddress != (common.Address{}) {
		return receipt.ContractAddress, nil
	}
	if addr, ok := addressFromLogs(d.factoryABI, factory, receipt.Logs); ok {
		return addr, nil
	}
	if simulated != (common.Address{}) {
		return simulated, nil
	}
	return common.Address{}, fmt.Errorf("%w: %s", hatsdeploy.ErrAddressNotFound, receipt.TxHash.Hex())
}

// addressFromLogs decodes the factory's events in logs and returns the first
// address argument, preferring one named like the module instance.
func addressFromLogs(factoryABI abi.ABI, factory common.Address, logs []*types.Log) (common.Address, bool) {
	for _, lg := range logs {
		if lg == nil || lg.Address != factory || len(lg.Topics) == 0 {
			continue
		}
		event, err := factoryABI.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}

		fields := make(map[string]any)
		if err := event.Inputs.UnpackIntoMap(fields, lg.Data); err != nil {
			continue
		}
		var indexed abi.Arguments
		for _, arg := range event.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		if len(indexed) > 0 {
			if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
				continue
			}
		}

		for _, name := range moduleAddressArgs {
			if addr, ok := fields[name].(common.Address); ok && addr != (common.Address{}) {
				return addr, true
			}
		}
		for _, arg := range event.Inputs {
			if addr, ok := fields[arg.Name].(common.Address); ok && addr != (common.Address{}) {
				return addr, true
			}
		}
	}
	return common.Address{}, false
}
