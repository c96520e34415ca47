// Package artifacts loads compiled contract artifacts (ABI and bytecode)
// produced by hardhat, hardhat-zksync or foundry.
package artifacts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Bidon15/hatsdeploy"
)

//go:embed abi/AllowlistEligibilityFactory.json
var factoryABI []byte

// ContractArtifact represents a compiled Solidity contract with ABI and bytecode.
type ContractArtifact struct {
	Format           string          `json:"_format,omitempty"`
	ContractName     string          `json:"contractName,omitempty"`
	SourceName       string          `json:"sourceName,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         Bytecode        `json:"bytecode"`
	DeployedBytecode Bytecode        `json:"deployedBytecode,omitempty"`

	// Path is the file the artifact was read from.
	Path string `json:"-"`
}

// Bytecode accepts both the hardhat form ("0x...") and the foundry form
// ({"object": "0x..."}).
type Bytecode struct {
	Object string `json:"object"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Object = s
		return nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bytecode: %w", err)
	}
	b.Object = obj.Object
	return nil
}

// Candidates returns the paths searched for contract name, in order: the
// hardhat layout (src/<Name>.sol/<Name>.json), the foundry layout
// (<Name>.sol/<Name>.json) and a flat <Name>.json.
func Candidates(dir, name string) []string {
	return []string{
		filepath.Join(dir, "src", name+".sol", name+".json"),
		filepath.Join(dir, name+".sol", name+".json"),
		filepath.Join(dir, name+".json"),
	}
}

// Load finds and parses the artifact for name under dir.
func Load(dir, name string) (*ContractArtifact, error) {
	for _, path := range Candidates(dir, name) {
		artifact, err := LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return artifact, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", hatsdeploy.ErrArtifactNotFound, name, dir)
}

// LoadFile parses a single artifact file.
func LoadFile(path string) (*ContractArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var artifact ContractArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	artifact.Path = path
	return &artifact, nil
}

// ParsedABI parses the artifact's ABI.
func (a *ContractArtifact) ParsedABI() (abi.ABI, error) {
	return ParseABI(a.ABI)
}

// zkSolcFormatPrefix marks artifacts compiled by hardhat-zksync
// ("hh-zksolc-artifact-1").
const zkSolcFormatPrefix = "hh-zksolc-"

// IsZkSync reports whether the artifact was compiled for zkSync EraVM.
func (a *ContractArtifact) IsZkSync() bool {
	return strings.HasPrefix(a.Format, zkSolcFormatPrefix)
}

// BytecodeBytes returns the EVM creation bytecode. zkSync artifacts are
// refused.
func (a *ContractArtifact) BytecodeBytes() ([]byte, error) {
	if a.IsZkSync() {
		return nil, fmt.Errorf("%w: %s (%s)", hatsdeploy.ErrZkSyncArtifact, a.Path, a.Format)
	}
	code := strings.TrimSpace(a.Bytecode.Object)
	if code == "" || code == "0x" {
		return nil, hatsdeploy.ErrEmptyBytecode
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	b, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return b, nil
}

// ParseABI parses a JSON ABI.
func ParseABI(raw []byte) (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse ABI: %w", err)
	}
	return parsed, nil
}

// FactoryABI returns the built-in AllowlistEligibilityFactory ABI, used when
// no build artifact is available.
func FactoryABI() (abi.ABI, error) {
	return ParseABI(factoryABI)
}
