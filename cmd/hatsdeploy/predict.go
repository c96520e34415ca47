package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Bidon15/hatsdeploy/internal/artifacts"
	"github.com/Bidon15/hatsdeploy/internal/deploy"
)

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "Print the factory's CREATE2 address without touching the network",
		Args:  cobra.NoArgs,
		RunE:  runPredict,
	}
}

type predictOutput struct {
	Contract        string `json:"contract"`
	Address         string `json:"address"`
	Create2Deployer string `json:"create2_deployer"`
	Salt            string `json:"salt"`
	InitCodeHash    string `json:"init_code_hash"`
	ConstructorArgs string `json:"constructor_args"`
	Artifact        string `json:"artifact"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	prediction, err := deploy.Predict(cfg.Create2Deployer, deploy.FactoryRequest{Params: params, Artifact: artifact})
	if err != nil {
		return err
	}

	result := predictOutput{
		Contract:        params.ContractName,
		Address:         prediction.Address.Hex(),
		Create2Deployer: cfg.Create2Deployer.Hex(),
		Salt:            params.Salt.Hex(),
		InitCodeHash:    deploy.InitCodeHash(prediction.InitCode).Hex(),
		ConstructorArgs: hexutil.Encode(prediction.ConstructorArgs),
		Artifact:        artifact.Path,
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, result)
	}
	_, _ = fmt.Fprintf(out, "%s will be deployed to %s\n", result.Contract, result.Address)
	if verbose {
		_, _ = fmt.Fprintf(out, "  create2 deployer: %s\n", result.Create2Deployer)
		_, _ = fmt.Fprintf(out, "  salt:             %s\n", result.Salt)
		_, _ = fmt.Fprintf(out, "  init code hash:   %s\n", result.InitCodeHash)
		_, _ = fmt.Fprintf(out, "  artifact:         %s\n", result.Artifact)
	}
	return nil
}
