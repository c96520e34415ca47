package hatsdeploy

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// ParamsFile is the on-disk form of the deployment parameters. Every field is
// a string so operators can paste values straight from a block explorer.
type ParamsFile struct {
	Factory FactorySpec `yaml:"factory" json:"factory"`
	Module  ModuleSpec  `yaml:"module" json:"module"`
}

// FactorySpec describes the deterministic factory deployment.
type FactorySpec struct {
	Contract string `yaml:"contract" json:"contract"`
	Salt     string `yaml:"salt" json:"salt"`
}

// ModuleSpec describes the deployModule call on an existing factory.
type ModuleSpec struct {
	Contract  string `yaml:"contract" json:"contract"`
	Factory   string `yaml:"factory" json:"factory"`
	HatID     string `yaml:"hat_id" json:"hat_id"`
	Hats      string `yaml:"hats" json:"hats"`
	InitData  string `yaml:"init_data" json:"init_data"`
	SaltNonce string `yaml:"salt_nonce" json:"salt_nonce"`
}

// FactoryParams are the resolved factory deployment parameters.
type FactoryParams struct {
	ContractName string
	Salt         common.Hash
}

// ModuleParams are the resolved deployModule arguments, in call order after
// the factory address.
type ModuleParams struct {
	ContractName string
	Factory      common.Address
	HatID        *big.Int
	Hats         common.Address
	InitData     []byte
	SaltNonce    *big.Int
}

// DefaultParamsFile returns the parameters the deployment scripts were
// written against.
func DefaultParamsFile() ParamsFile {
	return ParamsFile{
		Factory: FactorySpec{
			Contract: FactoryContractName,
			Salt:     DefaultFactorySalt,
		},
		Module: ModuleSpec{
			Contract:  ModuleContractName,
			Factory:   DefaultFactoryAddress,
			HatID:     DefaultHatID,
			Hats:      DefaultHatsAddress,
			InitData:  DefaultInitData,
			SaltNonce: DefaultSaltNonce,
		},
	}
}

// LoadParamsFile reads a YAML parameter file on top of the defaults. Keys
// absent from the file keep their default values. An empty path returns the
// defaults.
func LoadParamsFile(path string) (ParamsFile, error) {
	params := DefaultParamsFile()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ParamsFile{}, fmt.Errorf("read params file: %w", err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return ParamsFile{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidParams, path, err)
	}
	return params, nil
}

// Resolve validates the fields and converts them to typed parameters.
func (s FactorySpec) Resolve() (FactoryParams, error) {
	if strings.TrimSpace(s.Contract) == "" {
		return FactoryParams{}, fmt.Errorf("%w: factory contract name is required", ErrInvalidParams)
	}
	salt, err := ParseSalt(s.Salt)
	if err != nil {
		return FactoryParams{}, err
	}
	return FactoryParams{ContractName: s.Contract, Salt: salt}, nil
}

// Resolve validates the fields and converts them to typed parameters.
func (s ModuleSpec) Resolve() (ModuleParams, error) {
	if strings.TrimSpace(s.Contract) == "" {
		return ModuleParams{}, fmt.Errorf("%w: module contract name is required", ErrInvalidParams)
	}
	factory, err := ParseAddress("factory", s.Factory)
	if err != nil {
		return ModuleParams{}, err
	}
	hatID, err := ParseUint256(s.HatID)
	if err != nil {
		return ModuleParams{}, fmt.Errorf("%w: hat_id: %v", ErrInvalidParams, err)
	}
	hats, err := ParseAddress("hats", s.Hats)
	if err != nil {
		return ModuleParams{}, err
	}
	initData, err := hexutil.Decode(strings.TrimSpace(s.InitData))
	if err != nil {
		return ModuleParams{}, fmt.Errorf("%w: init_data: %v", ErrInvalidParams, err)
	}
	saltNonce, err := ParseUint256(s.SaltNonce)
	if err != nil {
		return ModuleParams{}, fmt.Errorf("%w: salt_nonce: %v", ErrInvalidParams, err)
	}

	return ModuleParams{
		ContractName: s.Contract,
		Factory:      factory,
		HatID:        hatID,
		Hats:         hats,
		InitData:     initData,
		SaltNonce:    saltNonce,
	}, nil
}

// Fields returns the parameters as a flat map for deployment records.
func (p FactoryParams) Fields() map[string]any {
	return map[string]any{
		"contract":         p.ContractName,
		"salt":             p.Salt.Hex(),
		"constructor_args": []any{},
	}
}

// Fields returns the parameters as a flat map for deployment records.
func (p ModuleParams) Fields() map[string]any {
	return map[string]any{
		"contract":   p.ContractName,
		"factory":    p.Factory.Hex(),
		"hat_id":     p.HatID.String(),
		"hats":       p.Hats.Hex(),
		"init_data":  hexutil.Encode(p.InitData),
		"salt_nonce": p.SaltNonce.String(),
	}
}

// ParseSalt parses a 0x-prefixed 32-byte hex salt.
func ParseSalt(v string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(v))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: salt: %v", ErrInvalidParams, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrInvalidParams, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// ParseAddress parses a hex address, naming the field in the error.
func ParseAddress(field, v string) (common.Address, error) {
	v = strings.TrimSpace(v)
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: %s: invalid address %q", ErrInvalidParams, field, v)
	}
	return common.HexToAddress(v), nil
}

// ParseUint256 parses a decimal or 0x-prefixed hex integer that must fit in
// 256 bits. Hat IDs are usually written as zero-padded hex.
func ParseUint256(v string) (*big.Int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("empty value")
	}

	var (
		n   *uint256.Int
		err error
	)
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		if len(v) == 2 {
			return nil, fmt.Errorf("missing hex digits after 0x")
		}
		digits := strings.TrimLeft(v[2:], "0")
		if digits == "" {
			return new(big.Int), nil
		}
		n, err = uint256.FromHex("0x" + digits)
	} else {
		digits := strings.TrimLeft(v, "0")
		if digits == "" {
			return new(big.Int), nil
		}
		n, err = uint256.FromDecimal(digits)
	}
	if err != nil {
		return nil, err
	}
	return n.ToBig(), nil
}
