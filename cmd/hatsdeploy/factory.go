package main

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Bidon15/hatsdeploy"
	"github.com/Bidon15/hatsdeploy/internal/artifacts"
	"github.com/Bidon15/hatsdeploy/internal/deploy"
)

func newFactoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "factory",
		Short: "Deploy the AllowlistEligibilityFactory to its CREATE2 address",
		Long: `Deploy the factory contract through the deterministic deployment proxy
using the configured salt and no constructor arguments.

If the address is already occupied the network's error is reported as is;
nothing is retried.`,
		Args: cobra.NoArgs,
		RunE: runFactory,
	}
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not write a deployment record")
	return cmd
}

func runFactory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.PrivateKey == "" {
		return hatsdeploy.ErrMissingCredential
	}

	paramsFile, err := loadParams()
	if err != nil {
		return err
	}
	params, err := paramsFile.Factory.Resolve()
	if err != nil {
		return err
	}

	artifact, err := artifacts.Load(cfg.ArtifactsDir, params.ContractName)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	runID := deploy.NewRunID()
	logger = logger.With(slog.String("run_id", runID))

	out := cmd.OutOrStdout()
	if !jsonOut {
		_, _ = fmt.Fprintf(out, "Deploying %s...\n", params.ContractName)
	}

	ctx, cancel := runContext(cmd, cfg.Timeout)
	defer cancel()

	tx, closeBackend, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	deployer := deploy.NewFactoryDeployer(tx, cfg.Create2Deployer, logger)
	result, err := deployer.Deploy(ctx, deploy.FactoryRequest{
		Params:   params,
		Artifact: artifact,
	})
	if err != nil {
		return err
	}

	chainID := tx.ChainID().Uint64()
	recordPath := writeRecord(cfg, runID, result, chainID, tx.From(), params.Fields(), logger)

	if jsonOut {
		return printJSON(out, deployOutput{Result: result, RunID: runID, ChainID: chainID, Record: recordPath})
	}
	_, _ = fmt.Fprintf(out, "constructor args:%s\n", hexutil.Encode(result.ConstructorArgs))
	_, _ = fmt.Fprintf(out, "%s was deployed to %s\n", result.ContractName, result.Address.Hex())
	return nil
}

// deployOutput is the --json form of a deployment.
type deployOutput struct {
	*deploy.Result
	RunID   string `json:"run_id"`
	ChainID uint64 `json:"chain_id"`
	Record  string `json:"record,omitempty"`
}

// writeRecord stores the deployment record unless --no-record is set and
// returns its path. The transaction is already mined at this point, so a
// failed write is logged with the deployed address and not returned.
func writeRecord(cfg *hatsdeploy.Config, runID string, result *deploy.Result, chainID uint64, deployer common.Address, params map[string]any, logger *slog.Logger) string {
	if noRecord {
		return ""
	}
	w := deploy.NewRecordWriter(cfg.DeploymentsDir)
	path, err := w.Write(w.NewRecord(runID, result, chainID, deployer, params))
	if err != nil {
		logger.Error("failed to write deployment record",
			slog.String("contract", result.ContractName),
			slog.String("address", result.Address.Hex()),
			slog.String("tx", result.TxHash.Hex()),
			slog.String("error", err.Error()),
		)
		return ""
	}
	logger.Info("deployment record written", slog.String("path", path))
	return path
}
