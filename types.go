// Package hatsdeploy deploys the AllowlistEligibility factory and its modules
// to an EVM rollup.
package hatsdeploy

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Contract names as they appear in the build artifacts.
const (
	FactoryContractName = "AllowlistEligibilityFactory"
	ModuleContractName  = "AllowlistEligibility"
)

// Defaults used when nothing else is configured.
//
// Before executing a real deployment, set these as appropriate for the target
// environment. The values used at deployment time are written to the
// deployment record so they can be checked in with the other artifacts.
const (
	DefaultFactorySalt = "0x0000000000000000000000000000000000000000000000000000000000004a75"

	DefaultHatID          = "1"
	DefaultHatsAddress    = "0x32Ccb7600c10B4F7e678C7cbde199d98453D0e7e"
	DefaultSaltNonce      = "1"
	DefaultFactoryAddress = "0xA29Ae9e5147F2D1211F23D323e4b2F3055E984B0"
	DefaultInitData       = "0x000000000000000000000000a3dabd368bae702199959e55560f688c213fbb3c000000000000000000000000eac5f0d4a9a45e1f9fdd0e7e2882e9f60e301156"

	DefaultRPCURL         = "http://127.0.0.1:8545"
	DefaultArtifactsDir   = "artifacts"
	DefaultDeploymentsDir = "deployments"
)

// DefaultCreate2Deployer is the canonical deterministic deployment proxy. It
// takes salt || initcode as calldata and CREATE2s the initcode.
var DefaultCreate2Deployer = common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C")

// Config holds the runtime settings shared by both deployment procedures.
type Config struct {
	PrivateKey      string
	RPCURL          string
	ChainID         uint64 // 0 skips the chain ID check
	ArtifactsDir    string
	DeploymentsDir  string
	GasLimit        uint64 // 0 estimates
	Timeout         time.Duration
	Create2Deployer common.Address
}

// Record is the JSON document written after a successful deployment.
type Record struct {
	RunID        string         `json:"run_id"`
	Contract     string         `json:"contract"`
	Address      common.Address `json:"address"`
	TxHash       common.Hash    `json:"tx_hash"`
	BlockNumber  uint64         `json:"block_number"`
	ChainID      uint64         `json:"chain_id"`
	Deployer     common.Address `json:"deployer"`
	Parameters   map[string]any `json:"parameters"`
	DeployedAt   time.Time      `json:"deployed_at"`
	GasUsed      uint64         `json:"gas_used"`
	ArtifactPath string         `json:"artifact_path,omitempty"`
}
