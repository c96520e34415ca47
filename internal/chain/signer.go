package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Bidon15/hatsdeploy"
)

// Signer holds the deployer key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// ParsePrivateKey builds a Signer from a hex private key, with or without the
// 0x prefix. An empty value is ErrMissingCredential.
func ParsePrivateKey(v string) (*Signer, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, hatsdeploy.ErrMissingCredential
	}
	v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")

	key, err := crypto.HexToECDSA(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hatsdeploy.ErrInvalidCredential, err)
	}
	return NewSigner(key), nil
}

// NewSigner wraps an existing key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the deployer address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTx signs tx for chainID with the latest signer the chain supports.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
