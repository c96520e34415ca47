package preflight

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

// fakeNode answers the handful of eth_ methods the checker uses.
type fakeNode struct {
	chainID uint64
	balance *big.Int
	nonce   uint64
	code    map[common.Address]string
}

func (n *fakeNode) answer(req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "eth_chainId":
		resp.Result = "0x" + new(big.Int).SetUint64(n.chainID).Text(16)
	case "eth_getBalance":
		resp.Result = "0x" + n.balance.Text(16)
	case "eth_getTransactionCount":
		resp.Result = "0x" + new(big.Int).SetUint64(n.nonce).Text(16)
	case "eth_getCode":
		addr := common.HexToAddress(req.Params[0].(string))
		code, ok := n.code[addr]
		if !ok {
			code = "0x"
		}
		resp.Result = code
	}
	return resp
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		var batch []rpcRequest
		_ = json.Unmarshal(raw, &batch)
		out := make([]rpcResponse, 0, len(batch))
		for _, req := range batch {
			out = append(out, n.answer(req))
		}
		_ = json.NewEncoder(w).Encode(out)
		return
	}

	var req rpcRequest
	_ = json.Unmarshal(raw, &req)
	_ = json.NewEncoder(w).Encode(n.answer(req))
}

var (
	deployer  = common.HexToAddress("0x1234567890123456789012345678901234567890")
	proxy     = common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C")
	predicted = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	factory   = common.HexToAddress("0xA29Ae9e5147F2D1211F23D323e4b2F3055E984B0")
)

func TestNewChecker(t *testing.T) {
	checker := NewChecker()
	assert.NotNil(t, checker)
	assert.Equal(t, DefaultTimeout, checker.timeout)
	assert.NotNil(t, checker.dial)
}

func TestChecker_WithTimeout(t *testing.T) {
	checker := NewChecker().WithTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, checker.timeout)
}

func TestChecker_ValidateRequest(t *testing.T) {
	checker := NewChecker()

	tests := []struct {
		name    string
		req     *Request
		wantErr string
	}{
		{
			name: "valid request",
			req:  &Request{RPCURL: "http://127.0.0.1:8545", Deployer: deployer},
		},
		{
			name:    "nil request",
			wantErr: "request is required",
		},
		{
			name:    "missing rpc_url",
			req:     &Request{Deployer: deployer},
			wantErr: "rpc_url is required",
		},
		{
			name:    "missing deployer",
			req:     &Request{RPCURL: "http://127.0.0.1:8545"},
			wantErr: "deployer is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checker.validateRequest(tc.req)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestChecker_RunChecks(t *testing.T) {
	node := &fakeNode{
		chainID: 300,
		balance: big.NewInt(2e18),
		nonce:   7,
		code: map[common.Address]string{
			proxy:   "0x6000",
			factory: "0x6080",
		},
	}
	srv := httptest.NewServer(node)
	defer srv.Close()

	resp, err := NewChecker().RunChecks(context.Background(), &Request{
		RPCURL:          srv.URL,
		ChainID:         300,
		Deployer:        deployer,
		Create2Deployer: &proxy,
		Predicted:       &predicted,
		Factory:         &factory,
	})
	require.NoError(t, err)

	assert.True(t, resp.OK, "%+v", resp.Checks)
	assert.Equal(t, uint64(300), resp.ChainID)
	assert.Equal(t, uint64(7), resp.NextNonce)
	assert.Equal(t, "2.0000", resp.Balance)

	names := make([]CheckName, 0, len(resp.Checks))
	for _, c := range resp.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []CheckName{
		CheckRPCReachable,
		CheckChainIDMatch,
		CheckDeployerBalance,
		CheckCreate2Deployer,
		CheckPredictedAddressFree,
		CheckFactoryDeployed,
	}, names)
}

func TestChecker_RunChecks_Failures(t *testing.T) {
	node := &fakeNode{
		chainID: 1,
		balance: new(big.Int),
		code:    map[common.Address]string{predicted: "0x6000"},
	}
	srv := httptest.NewServer(node)
	defer srv.Close()

	resp, err := NewChecker().RunChecks(context.Background(), &Request{
		RPCURL:    srv.URL,
		ChainID:   300,
		Deployer:  deployer,
		Predicted: &predicted,
		Factory:   &factory,
	})
	require.NoError(t, err)
	assert.False(t, resp.OK)

	failed := make(map[CheckName]bool)
	for _, c := range resp.Checks {
		if !c.Passed {
			failed[c.Name] = true
		}
	}
	assert.True(t, failed[CheckChainIDMatch])
	assert.True(t, failed[CheckDeployerBalance])
	assert.True(t, failed[CheckPredictedAddressFree])
	assert.True(t, failed[CheckFactoryDeployed])
	assert.False(t, failed[CheckRPCReachable])
}

func TestChecker_RunChecks_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := NewChecker().WithTimeout(2*time.Second).RunChecks(context.Background(), &Request{
		RPCURL:   srv.URL,
		Deployer: deployer,
	})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	require.Len(t, resp.Checks, 1)
	assert.Equal(t, CheckRPCReachable, resp.Checks[0].Name)
	assert.False(t, resp.Checks[0].Passed)
}

func TestCheckBalance(t *testing.T) {
	tests := []struct {
		name    string
		balance *big.Int
		min     *big.Int
		passed  bool
	}{
		{"funded without minimum", big.NewInt(1), nil, true},
		{"empty without minimum", big.NewInt(0), nil, false},
		{"meets minimum", big.NewInt(1e18), big.NewInt(1e18), true},
		{"below minimum", big.NewInt(1e17), big.NewInt(1e18), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.passed, checkBalance(tc.balance, tc.min).Passed)
		})
	}
}

func TestWeiToETHString(t *testing.T) {
	assert.Equal(t, "0", weiToETHString(nil))
	assert.Equal(t, "1.5000", weiToETHString(big.NewInt(15e17)))
}
