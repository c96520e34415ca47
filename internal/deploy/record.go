package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Bidon15/hatsdeploy"
)

// RecordWriter persists deployment records under
// <dir>/<chainID>/<ContractName>.json, overwriting earlier runs.
type RecordWriter struct {
	dir string
	now func() time.Time
}

// NewRecordWriter creates a writer rooted at dir.
func NewRecordWriter(dir string) *RecordWriter {
	return &RecordWriter{dir: dir, now: time.Now}
}

// NewRunID returns a fresh identifier for one deployment run.
func NewRunID() string {
	return uuid.NewString()
}

// NewRecord builds the record for a finished deployment of run runID.
func (w *RecordWriter) NewRecord(runID string, result *Result, chainID uint64, deployer common.Address, params map[string]any) hatsdeploy.Record {
	return hatsdeploy.Record{
		RunID:        runID,
		Contract:     result.ContractName,
		Address:      result.Address,
		TxHash:       result.TxHash,
		BlockNumber:  result.BlockNumber,
		ChainID:      chainID,
		Deployer:     deployer,
		Parameters:   params,
		DeployedAt:   w.now().UTC(),
		GasUsed:      result.GasUsed,
		ArtifactPath: result.ArtifactPath,
	}
}

// Path returns where the record for contract on chainID is written.
func (w *RecordWriter) Path(chainID uint64, contract string) string {
	return filepath.Join(w.dir, strconv.FormatUint(chainID, 10), contract+".json")
}

// Write stores rec and returns the file path.
func (w *RecordWriter) Write(rec hatsdeploy.Record) (string, error) {
	path := w.Path(rec.ChainID, rec.Contract)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create deployments dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return path, nil
}
