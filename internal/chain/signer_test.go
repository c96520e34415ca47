package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/hatsdeploy"
)

// Well-known hardhat account #0.
const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestParsePrivateKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "plain hex", input: testKey},
		{name: "0x prefix", input: "0x" + testKey},
		{name: "surrounding whitespace", input: "  " + testKey + "\n"},
		{name: "empty", input: "", wantErr: hatsdeploy.ErrMissingCredential},
		{name: "whitespace only", input: "   ", wantErr: hatsdeploy.ErrMissingCredential},
		{name: "not hex", input: "zz", wantErr: hatsdeploy.ErrInvalidCredential},
		{name: "too short", input: "0x1234", wantErr: hatsdeploy.ErrInvalidCredential},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			signer, err := ParsePrivateKey(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, signer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(testAddress), signer.Address())
		})
	}
}

func TestSigner_SignTx(t *testing.T) {
	signer, err := ParsePrivateKey(testKey)
	require.NoError(t, err)

	chainID := big.NewInt(300)
	to := common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		To:        &to,
		Gas:       21000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Value:     new(big.Int),
	})

	signed, err := signer.SignTx(tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)
}
