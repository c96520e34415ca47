package main

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Bidon15/hatsdeploy"
	"github.com/Bidon15/hatsdeploy/internal/artifacts"
	"github.com/Bidon15/hatsdeploy/internal/chain"
	"github.com/Bidon15/hatsdeploy/internal/deploy"
	"github.com/Bidon15/hatsdeploy/internal/preflight"
)

var minBalance string

// errPreflightFailed is returned when at least one check fails.
var errPreflightFailed = errors.New("preflight checks failed")

func newPreflightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Run read-only checks before deploying",
		Long: `Check that the RPC endpoint is reachable, the chain ID matches, the
deployer is funded, the CREATE2 deployer exists, the factory's predicted
address is still free and the configured factory has code.

Nothing is signed or sent.`,
		Args: cobra.NoArgs,
		RunE: runPreflight,
	}
	cmd.Flags().StringVar(&minBalance, "min-balance", "", "minimum deployer balance in wei (decimal or 0x-hex)")
	return cmd
}

func runPreflight(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	signer, err := chain.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	paramsFile, err := loadParams()
	if err != nil {
		return err
	}
	moduleParams, err := paramsFile.Module.Resolve()
	if err != nil {
		return err
	}

	req := &preflight.Request{
		RPCURL:          cfg.RPCURL,
		ChainID:         cfg.ChainID,
		Deployer:        signer.Address(),
		Create2Deployer: addressPtr(cfg.Create2Deployer),
		Factory:         addressPtr(moduleParams.Factory),
	}
	if minBalance != "" {
		minWei, err := hatsdeploy.ParseUint256(minBalance)
		if err != nil {
			return fmt.Errorf("%w: min-balance: %v", hatsdeploy.ErrInvalidParams, err)
		}
		req.MinBalanceWei = minWei
	}
	if predicted, err := predictFactory(cfg, paramsFile); err != nil {
		logger.Warn("skipping predicted address check", slog.String("error", err.Error()))
	} else {
		req.Predicted = addressPtr(predicted.Address)
	}

	ctx, cancel := runContext(cmd, cfg.Timeout)
	defer cancel()

	checker := preflight.NewChecker()
	if cfg.Timeout > 0 {
		checker = checker.WithTimeout(cfg.Timeout)
	}
	resp, err := checker.RunChecks(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		if err := printJSON(out, resp); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CHECK\tSTATUS\tMESSAGE")
		for _, c := range resp.Checks {
			status := "ok"
			if !c.Passed {
				status = "FAIL"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, status, c.Message)
		}
		_ = w.Flush()
	}

	if !resp.OK {
		return errPreflightFailed
	}
	return nil
}

func predictFactory(cfg *hatsdeploy.Config, paramsFile hatsdeploy.ParamsFile) (*deploy.Prediction, error) {
	params, err := paramsFile.Factory.Resolve()
	if err != nil {
		return nil, err
	}
	artifact, err := artifacts.Load(cfg.ArtifactsDir, params.ContractName)
	if err != nil {
		return nil, err
	}
	return deploy.Predict(cfg.Create2Deployer, deploy.FactoryRequest{Params: params, Artifact: artifact})
}
