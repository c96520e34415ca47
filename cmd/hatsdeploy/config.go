package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Bidon15/hatsdeploy"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration and deployment parameters",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
	return cmd
}

type configOutput struct {
	PrivateKey      string                `json:"private_key"`
	RPCURL          string                `json:"rpc_url"`
	ChainID         uint64                `json:"chain_id"`
	ArtifactsDir    string                `json:"artifacts_dir"`
	DeploymentsDir  string                `json:"deployments_dir"`
	Create2Deployer string                `json:"create2_deployer"`
	GasLimit        uint64                `json:"gas_limit"`
	Timeout         string                `json:"timeout"`
	ConfigFile      string                `json:"config_file,omitempty"`
	Params          hatsdeploy.ParamsFile `json:"params"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params, err := loadParams()
	if err != nil {
		return err
	}

	result := configOutput{
		PrivateKey:      maskKey(cfg.PrivateKey),
		RPCURL:          cfg.RPCURL,
		ChainID:         cfg.ChainID,
		ArtifactsDir:    cfg.ArtifactsDir,
		DeploymentsDir:  cfg.DeploymentsDir,
		Create2Deployer: cfg.Create2Deployer.Hex(),
		GasLimit:        cfg.GasLimit,
		Timeout:         cfg.Timeout.String(),
		ConfigFile:      configUsed,
		Params:          params,
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, result)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"private_key", result.PrivateKey},
		{"rpc_url", result.RPCURL},
		{"chain_id", fmt.Sprint(result.ChainID)},
		{"artifacts_dir", result.ArtifactsDir},
		{"deployments_dir", result.DeploymentsDir},
		{"create2_deployer", result.Create2Deployer},
		{"gas_limit", fmt.Sprint(result.GasLimit)},
		{"timeout", result.Timeout},
		{"factory.contract", params.Factory.Contract},
		{"factory.salt", params.Factory.Salt},
		{"module.contract", params.Module.Contract},
		{"module.factory", params.Module.Factory},
		{"module.hat_id", params.Module.HatID},
		{"module.hats", params.Module.Hats},
		{"module.init_data", params.Module.InitData},
		{"module.salt_nonce", params.Module.SaltNonce},
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	return w.Flush()
}

// maskKey hides all but the last four characters of a key.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 4:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}
