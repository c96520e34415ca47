package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/spf13/cobra"

	"github.com/Bidon15/hatsdeploy"
	"github.com/Bidon15/hatsdeploy/internal/artifacts"
	"github.com/Bidon15/hatsdeploy/internal/deploy"
)

func newModuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Deploy an AllowlistEligibility module through the factory",
		Long: `Call deployModule(hatId, hats, initData, saltNonce) on the deployed
factory, wait for the transaction to be mined and print the new module's
address.

The factory ABI is read from the factory's build artifact when present and
from the built-in copy otherwise.`,
		Args: cobra.NoArgs,
		RunE: runModule,
	}
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not write a deployment record")
	return cmd
}

func runModule(cmd *cobra.Command, args []string) error {
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
	params, err := paramsFile.Module.Resolve()
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	runID := deploy.NewRunID()
	logger = logger.With(slog.String("run_id", runID))

	factoryABI, err := loadFactoryABI(cfg.ArtifactsDir, paramsFile.Factory.Contract, logger)
	if err != nil {
		return err
	}

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

	deployer, err := deploy.NewModuleDeployer(tx, factoryABI, logger)
	if err != nil {
		return err
	}
	result, err := deployer.Deploy(ctx, params)
	if err != nil {
		return err
	}

	chainID := tx.ChainID().Uint64()
	recordPath := writeRecord(cfg, runID, result, chainID, tx.From(), params.Fields(), logger)

	if jsonOut {
		return printJSON(out, deployOutput{Result: result, RunID: runID, ChainID: chainID, Record: recordPath})
	}
	_, _ = fmt.Fprintf(out, "Allowlist eligibility deployed at %s\n", result.Address.Hex())
	return nil
}

// loadFactoryABI prefers the factory's build artifact and falls back to the
// built-in ABI when the artifact is absent.
func loadFactoryABI(dir, name string, logger *slog.Logger) (abi.ABI, error) {
	artifact, err := artifacts.Load(dir, name)
	switch {
	case err == nil:
		logger.Debug("using factory ABI from artifact", slog.String("path", artifact.Path))
		return artifact.ParsedABI()
	case errors.Is(err, hatsdeploy.ErrArtifactNotFound):
		logger.Debug("factory artifact not found, using built-in ABI", slog.String("dir", dir))
		return artifacts.FactoryABI()
	default:
		return abi.ABI{}, err
	}
}
