package deploy

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/hatsdeploy"
	"github.com/Bidon15/hatsdeploy/internal/artifacts"
	"github.com/Bidon15/hatsdeploy/internal/chain"
	"github.com/Bidon15/hatsdeploy/internal/chain/chaintest"
	"github.com/Bidon15/hatsdeploy/internal/logging"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testBytecode = "0x6080604052348015600f57600080fd5b50603f80601d6000396000f3fe"

func newTransactor(t *testing.T, backend *chaintest.Backend) *chain.Transactor {
	t.Helper()
	signer, err := chain.ParsePrivateKey(testKey)
	require.NoError(t, err)
	tx, err := chain.NewTransactor(context.Background(), backend, signer, chain.TransactorOptions{Logger: logging.Discard()})
	require.NoError(t, err)
	return tx
}

func factoryRequest(t *testing.T) FactoryRequest {
	t.Helper()
	params, err := hatsdeploy.DefaultParamsFile().Factory.Resolve()
	require.NoError(t, err)
	return FactoryRequest{
		Params: params,
		Artifact: &artifacts.ContractArtifact{
			ContractName: hatsdeploy.FactoryContractName,
			ABI:          []byte("[]"),
			Bytecode:     artifacts.Bytecode{Object: testBytecode},
			Path:         "artifacts/src/AllowlistEligibilityFactory.sol/AllowlistEligibilityFactory.json",
		},
	}
}

func TestPredict(t *testing.T) {
	req := factoryRequest(t)
	proxy := hatsdeploy.DefaultCreate2Deployer

	prediction, err := Predict(proxy, req)
	require.NoError(t, err)

	code := hexutil.MustDecode(testBytecode)
	assert.Empty(t, prediction.ConstructorArgs)
	assert.Equal(t, code, prediction.InitCode)
	assert.Equal(t, crypto.CreateAddress2(proxy, req.Params.Salt, crypto.Keccak256(code)), prediction.Address)
	assert.Equal(t, append(req.Params.Salt.Bytes(), code...), prediction.Calldata)

	again, err := Predict(proxy, req)
	require.NoError(t, err)
	assert.Equal(t, prediction.Address, again.Address)
}

func TestPredict_SaltChangesAddress(t *testing.T) {
	req := factoryRequest(t)
	a, err := Predict(hatsdeploy.DefaultCreate2Deployer, req)
	require.NoError(t, err)

	req.Params.Salt = common.HexToHash("0x01")
	b, err := Predict(hatsdeploy.DefaultCreate2Deployer, req)
	require.NoError(t, err)

	assert.NotEqual(t, a.Address, b.Address)
}

func TestPredict_EmptyBytecode(t *testing.T) {
	req := factoryRequest(t)
	req.Artifact.Bytecode.Object = "0x"

	_, err := Predict(hatsdeploy.DefaultCreate2Deployer, req)
	assert.ErrorIs(t, err, hatsdeploy.ErrEmptyBytecode)
}

func TestFactoryDeployer_Deploy(t *testing.T) {
	req := factoryRequest(t)
	prediction, err := Predict(hatsdeploy.DefaultCreate2Deployer, req)
	require.NoError(t, err)

	backend := chaintest.NewBackend(300)
	backend.CodeAfterSend = map[common.Address][]byte{prediction.Address: {0x60, 0x80}}

	deployer := NewFactoryDeployer(newTransactor(t, backend), common.Address{}, logging.Discard())
	result, err := deployer.Deploy(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, backend.Sent, 1)
	sent := backend.Sent[0]
	require.NotNil(t, sent.To())
	assert.Equal(t, hatsdeploy.DefaultCreate2Deployer, *sent.To())
	assert.Equal(t, req.Params.Salt.Bytes(), sent.Data()[:common.HashLength])
	assert.Equal(t, hexutil.MustDecode(testBytecode), sent.Data()[common.HashLength:])

	assert.Equal(t, hatsdeploy.FactoryContractName, result.ContractName)
	assert.Equal(t, prediction.Address, result.Address)
	assert.Equal(t, sent.Hash(), result.TxHash)
	assert.Equal(t, uint64(1), result.BlockNumber)
	assert.Equal(t, "0x", hexutil.Encode(result.ConstructorArgs))
	assert.Equal(t, req.Artifact.Path, result.ArtifactPath)
}

func TestFactoryDeployer_AlreadyDeployed(t *testing.T) {
	req := factoryRequest(t)
	prediction, err := Predict(hatsdeploy.DefaultCreate2Deployer, req)
	require.NoError(t, err)

	backend := chaintest.NewBackend(300)
	backend.Code[prediction.Address] = []byte{0x60, 0x80}
	backend.EstimateErr = errors.New("execution reverted: contract already deployed")

	deployer := NewFactoryDeployer(newTransactor(t, backend), hatsdeploy.DefaultCreate2Deployer, logging.Discard())
	_, err = deployer.Deploy(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.EstimateErr)
	assert.Contains(t, err.Error(), "contract already deployed")

	assert.Equal(t, 1, backend.EstimateCalls)
	assert.Empty(t, backend.Sent)
}

func TestFactoryDeployer_RPCRejection(t *testing.T) {
	backend := chaintest.NewBackend(300)
	backend.SendErr = errors.New("nonce too low")

	deployer := NewFactoryDeployer(newTransactor(t, backend), common.Address{}, logging.Discard())
	_, err := deployer.Deploy(context.Background(), factoryRequest(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce too low")
}

func TestFactoryDeployer_Reverted(t *testing.T) {
	backend := chaintest.NewBackend(300)
	backend.Receipt = func(tx *types.Transaction) *types.Receipt {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: tx.Hash(), BlockNumber: big.NewInt(1)}
	}

	deployer := NewFactoryDeployer(newTransactor(t, backend), common.Address{}, logging.Discard())
	_, err := deployer.Deploy(context.Background(), factoryRequest(t))
	assert.ErrorIs(t, err, hatsdeploy.ErrTxReverted)
	assert.Len(t, backend.Sent, 1)
}

func TestFactoryDeployer_NoCodeAfterDeploy(t *testing.T) {
	backend := chaintest.NewBackend(300)

	deployer := NewFactoryDeployer(newTransactor(t, backend), common.Address{}, logging.Discard())
	_, err := deployer.Deploy(context.Background(), factoryRequest(t))
	assert.ErrorIs(t, err, hatsdeploy.ErrNoCodeAtAddress)
}
