package deploy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/hatsdeploy"
)

func TestRecordWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := NewRecordWriter(dir)
	w.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	params := moduleParams(t)
	result := &Result{
		ContractName: hatsdeploy.ModuleContractName,
		Address:      moduleAddress,
		TxHash:       common.HexToHash("0xabc"),
		BlockNumber:  42,
		GasUsed:      90_000,
	}
	deployer := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	runID := NewRunID()
	_, err := uuid.Parse(runID)
	require.NoError(t, err)
	rec := w.NewRecord(runID, result, 300, deployer, params.Fields())
	assert.Equal(t, runID, rec.RunID)

	path, err := w.Write(rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "300", "AllowlistEligibility.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got hatsdeploy.Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, moduleAddress, got.Address)
	assert.Equal(t, uint64(300), got.ChainID)
	assert.Equal(t, deployer, got.Deployer)
	assert.Equal(t, "1", got.Parameters["hat_id"])
	assert.Equal(t, common.HexToAddress(hatsdeploy.DefaultHatsAddress).Hex(), got.Parameters["hats"])
	assert.True(t, got.DeployedAt.Equal(w.now()))
}

func TestRecordWriter_Overwrites(t *testing.T) {
	w := NewRecordWriter(t.TempDir())

	first := w.NewRecord(NewRunID(), &Result{ContractName: "Factory", Address: common.HexToAddress("0x01")}, 1, common.Address{}, nil)
	second := w.NewRecord(NewRunID(), &Result{ContractName: "Factory", Address: common.HexToAddress("0x02")}, 1, common.Address{}, nil)

	_, err := w.Write(first)
	require.NoError(t, err)
	path, err := w.Write(second)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got hatsdeploy.Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, common.HexToAddress("0x02"), got.Address)
	assert.Equal(t, second.RunID, got.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRecordWriter_WriteUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "deployments")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	w := NewRecordWriter(blocker)
	_, err := w.Write(w.NewRecord(NewRunID(), &Result{ContractName: "Factory"}, 1, common.Address{}, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create deployments dir")
}
