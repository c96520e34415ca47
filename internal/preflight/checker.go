// Package preflight provides read-only checks run before a deployment.
package preflight

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/lmittmann/w3/w3types"
)

// DefaultTimeout is the default timeout for RPC calls.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	// CheckRPCReachable verifies the RPC endpoint answers eth_chainId.
	CheckRPCReachable CheckName = "rpc_reachable"
	// CheckChainIDMatch verifies the chain ID matches the expected value.
	CheckChainIDMatch CheckName = "chain_id_match"
	// CheckDeployerBalance verifies the deployer can pay for gas.
	CheckDeployerBalance CheckName = "deployer_balance"
	// CheckCreate2Deployer verifies the deterministic deployment proxy exists.
	CheckCreate2Deployer CheckName = "create2_deployer_present"
	// CheckPredictedAddressFree verifies nothing is deployed at the CREATE2 target yet.
	CheckPredictedAddressFree CheckName = "predicted_address_free"
	// CheckFactoryDeployed verifies the factory has code.
	CheckFactoryDeployed CheckName = "factory_deployed"
)

// CheckResult represents the result of a single pre-flight check.
type CheckResult struct {
	Name    CheckName      `json:"name"`
	Passed  bool           `json:"passed"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Request contains the parameters for pre-flight checks. Optional addresses
// left nil skip their check.
type Request struct {
	RPCURL          string          `json:"rpc_url"`
	ChainID         uint64          `json:"chain_id,omitempty"`
	Deployer        common.Address  `json:"deployer"`
	MinBalanceWei   *big.Int        `json:"min_balance_wei,omitempty"`
	Create2Deployer *common.Address `json:"create2_deployer,omitempty"`
	Predicted       *common.Address `json:"predicted_address,omitempty"`
	Factory         *common.Address `json:"factory,omitempty"`
}

// Response contains the results of all pre-flight checks.
type Response struct {
	OK        bool          `json:"ok"`
	ChainID   uint64        `json:"chain_id,omitempty"`
	Deployer  string        `json:"deployer"`
	Balance   string        `json:"balance_eth,omitempty"`
	NextNonce uint64        `json:"next_nonce"`
	Checks    []CheckResult `json:"checks"`
}

// Checker performs pre-flight validation checks.
type Checker struct {
	timeout time.Duration
	dial    func(rawurl string, opts ...w3.Option) (*w3.Client, error)
}

// NewChecker creates a new pre-flight checker.
func NewChecker() *Checker {
	return &Checker{
		timeout: DefaultTimeout,
		dial:    w3.Dial,
	}
}

// WithTimeout sets a custom timeout for RPC calls.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	c.timeout = timeout
	return c
}

// RunChecks performs all pre-flight checks. Failed checks are reported in
// the response; only an invalid request is an error.
func (c *Checker) RunChecks(ctx context.Context, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp := &Response{
		OK:       true,
		Deployer: req.Deployer.Hex(),
		Checks:   make([]CheckResult, 0, 6),
	}
	add := func(r CheckResult) {
		resp.Checks = append(resp.Checks, r)
		if !r.Passed {
			resp.OK = false
		}
	}

	client, chainID, reachable := c.checkReachable(rpcCtx, req.RPCURL)
	add(reachable)
	if !reachable.Passed {
		return resp, nil
	}
	defer client.Close()
	resp.ChainID = chainID

	add(checkChainID(chainID, req.ChainID))

	var (
		balance      *big.Int
		nonce        uint64
		proxyCode    []byte
		targetCode   []byte
		factoryCode  []byte
		calls        = []w3types.RPCCaller{eth.Balance(req.Deployer, nil).Returns(&balance), eth.Nonce(req.Deployer, nil).Returns(&nonce)}
		create2Check = req.Create2Deployer != nil
		targetCheck  = req.Predicted != nil
		factoryCheck = req.Factory != nil
	)
	if create2Check {
		calls = append(calls, eth.Code(*req.Create2Deployer, nil).Returns(&proxyCode))
	}
	if targetCheck {
		calls = append(calls, eth.Code(*req.Predicted, nil).Returns(&targetCode))
	}
	if factoryCheck {
		calls = append(calls, eth.Code(*req.Factory, nil).Returns(&factoryCode))
	}

	if err := client.CallCtx(rpcCtx, calls...); err != nil {
		add(CheckResult{
			Name:    CheckDeployerBalance,
			Message: fmt.Sprintf("Failed to query deployer state: %v", err),
			Details: map[string]any{"error": err.Error()},
		})
		return resp, nil
	}

	resp.NextNonce = nonce
	if balance == nil {
		balance = new(big.Int)
	}
	resp.Balance = weiToETHString(balance)
	add(checkBalance(balance, req.MinBalanceWei))

	if create2Check {
		add(codeCheck(CheckCreate2Deployer, *req.Create2Deployer, proxyCode, true,
			"CREATE2 deployer present at %s",
			"No CREATE2 deployer at %s"))
	}
	if targetCheck {
		add(codeCheck(CheckPredictedAddressFree, *req.Predicted, targetCode, false,
			"Predicted address %s is free",
			"Predicted address %s already has code"))
	}
	if factoryCheck {
		add(codeCheck(CheckFactoryDeployed, *req.Factory, factoryCode, true,
			"Factory deployed at %s",
			"No factory code at %s"))
	}

	return resp, nil
}

func (c *Checker) validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("request is required")
	}
	if req.RPCURL == "" {
		return fmt.Errorf("rpc_url is required")
	}
	if req.Deployer == (common.Address{}) {
		return fmt.Errorf("deployer is required")
	}
	return nil
}

func (c *Checker) checkReachable(ctx context.Context, rpcURL string) (*w3.Client, uint64, CheckResult) {
	result := CheckResult{Name: CheckRPCReachable}

	client, err := c.dial(rpcURL)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to connect to RPC: %v", err)
		result.Details = map[string]any{"error": err.Error()}
		return nil, 0, result
	}

	var chainID uint64
	if err := client.CallCtx(ctx, eth.ChainID().Returns(&chainID)); err != nil {
		client.Close()
		result.Message = fmt.Sprintf("RPC connection failed: %v", err)
		result.Details = map[string]any{"error": err.Error()}
		return nil, 0, result
	}

	result.Passed = true
	result.Message = "Connected to RPC successfully"
	return client, chainID, result
}

func checkChainID(actual, expected uint64) CheckResult {
	result := CheckResult{
		Name:    CheckChainIDMatch,
		Details: map[string]any{"chain_id": actual},
	}
	if expected == 0 {
		result.Passed = true
		result.Message = fmt.Sprintf("Chain ID %d (no expected value configured)", actual)
		return result
	}
	if actual != expected {
		result.Message = fmt.Sprintf("Chain ID mismatch: expected %d, got %d", expected, actual)
		result.Details = map[string]any{"expected": expected, "actual": actual}
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("Chain ID %d confirmed", expected)
	return result
}

func checkBalance(balance, minWei *big.Int) CheckResult {
	result := CheckResult{
		Name: CheckDeployerBalance,
		Details: map[string]any{
			"have_wei": balance.String(),
			"have_eth": weiToETHString(balance),
		},
	}

	if minWei == nil || minWei.Sign() == 0 {
		if balance.Sign() == 0 {
			result.Message = "Deployer has no funds"
			return result
		}
	} else {
		result.Details["need_wei"] = minWei.String()
		result.Details["need_eth"] = weiToETHString(minWei)
		if balance.Cmp(minWei) < 0 {
			result.Message = fmt.Sprintf("Insufficient deployer balance: have %s ETH, need %s ETH",
				weiToETHString(balance), weiToETHString(minWei))
			return result
		}
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Deployer has sufficient balance: %s ETH", weiToETHString(balance))
	return result
}

func codeCheck(name CheckName, addr common.Address, code []byte, wantCode bool, okMsg, failMsg string) CheckResult {
	result := CheckResult{
		Name:    name,
		Details: map[string]any{"address": addr.Hex(), "code_size": len(code)},
	}
	if (len(code) > 0) != wantCode {
		result.Message = fmt.Sprintf(failMsg, addr.Hex())
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf(okMsg, addr.Hex())
	return result
}

// weiToETHString converts wei to a human-readable ETH string.
func weiToETHString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	ethFloat := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	return ethFloat.Text('f', 4)
}
