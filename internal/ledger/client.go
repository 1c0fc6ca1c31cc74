package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Client talks JSON-RPC to the contract gateway. The gateway exposes
// the deployed marketplace contract's reads, event-log queries and
// transaction submission behind one HTTP endpoint.
type Client struct {
	rpcURL          string
	contractAddress string
	httpClient      *http.Client
}

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a new gateway client
func NewClient(rpcURL, contractAddress string) *Client {
	return &Client{
		rpcURL:          rpcURL,
		contractAddress: contractAddress,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// rpcCall makes a JSON-RPC call to the gateway
func (c *Client) rpcCall(ctx context.Context, method string, params []interface{}) (*RPCResponse, error) {
	request := RPCRequest{
		Jsonrpc: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("RPC error: %s (code: %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}

	return &rpcResp, nil
}

// read calls a contract view method.
func (c *Client) read(ctx context.Context, method string, args ...interface{}) (json.RawMessage, error) {
	params := append([]interface{}{c.contractAddress}, args...)
	resp, err := c.rpcCall(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// JobCount reads the contract's job counter.
func (c *Client) JobCount(ctx context.Context) (int64, error) {
	result, err := c.read(ctx, "marketplace_jobCounter")
	if err != nil {
		return 0, err
	}
	return toInt64(result), nil
}

// Job fetches one job record by id and normalizes it.
func (c *Client) Job(ctx context.Context, id int64) (Job, error) {
	result, err := c.read(ctx, "marketplace_getJob", id)
	if err != nil {
		return Job{}, err
	}
	return normalizeJob(result)
}

// BidEvents fetches the full bid log for a job, from the genesis block
// to the latest. Order is log order; deduplication happens downstream.
func (c *Client) BidEvents(ctx context.Context, jobID int64) ([]BidEvent, error) {
	result, err := c.read(ctx, "marketplace_getBidEvents", jobID, map[string]interface{}{
		"fromBlock": 0,
		"toBlock":   "latest",
	})
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(result, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse bid event list: %w", err)
	}

	events := make([]BidEvent, 0, len(raws))
	for _, raw := range raws {
		ev, err := normalizeBidEvent(raw)
		if err != nil {
			log.Printf("Skipping malformed bid event for job %d: %v", jobID, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// WorkSubmittedEvents fetches work-submission events for a job.
func (c *Client) WorkSubmittedEvents(ctx context.Context, jobID int64) ([]WorkEvent, error) {
	result, err := c.read(ctx, "marketplace_getWorkSubmittedEvents", jobID, map[string]interface{}{
		"fromBlock": 0,
		"toBlock":   "latest",
	})
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(result, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse work event list: %w", err)
	}

	events := make([]WorkEvent, 0, len(raws))
	for _, raw := range raws {
		ev, err := normalizeWorkEvent(raw)
		if err != nil {
			log.Printf("Skipping malformed work event for job %d: %v", jobID, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// User fetches the registration record for an account.
func (c *Client) User(ctx context.Context, address string) (User, error) {
	result, err := c.read(ctx, "marketplace_getUser", address)
	if err != nil {
		return User{}, err
	}
	return normalizeUser(result)
}

// Arbiter returns the platform arbiter's address.
func (c *Client) Arbiter(ctx context.Context) (string, error) {
	result, err := c.read(ctx, "marketplace_arbiter")
	if err != nil {
		return "", err
	}
	return toString(result), nil
}

// PlatformFees returns the fees collected by the contract, in minor
// units.
func (c *Client) PlatformFees(ctx context.Context) (int64, error) {
	result, err := c.read(ctx, "marketplace_platformFeesCollected")
	if err != nil {
		return 0, err
	}
	return toInt64(result), nil
}

// submit sends a mutating contract call and returns the tx hash.
func (c *Client) submit(ctx context.Context, method, from string, value int64, args ...interface{}) (string, error) {
	params := []interface{}{
		c.contractAddress,
		map[string]interface{}{"from": from, "value": value},
	}
	params = append(params, args...)

	resp, err := c.rpcCall(ctx, method, params)
	if err != nil {
		return "", err
	}

	txHash := toString(resp.Result)
	if txHash == "" {
		return "", fmt.Errorf("gateway returned no transaction hash for %s", method)
	}
	return txHash, nil
}

func (c *Client) RegisterUser(ctx context.Context, from, name string, role Role) (string, error) {
	return c.submit(ctx, "marketplace_registerUser", from, 0, name, int(role))
}

func (c *Client) PostJob(ctx context.Context, from, title, category string, maxBudget, deadline int64) (string, error) {
	return c.submit(ctx, "marketplace_postJob", from, 0, title, category, maxBudget, deadline)
}

func (c *Client) PlaceBid(ctx context.Context, from string, jobID, amount int64, proposedTime string) (string, error) {
	return c.submit(ctx, "marketplace_placeBid", from, 0, jobID, amount, proposedTime)
}

// HireFreelancer attaches the bid amount as the transaction value; the
// contract locks it in escrow.
func (c *Client) HireFreelancer(ctx context.Context, from string, jobID int64, bidIndex int, value int64) (string, error) {
	return c.submit(ctx, "marketplace_hireFreelancer", from, value, jobID, bidIndex)
}

func (c *Client) SubmitWork(ctx context.Context, from string, jobID int64) (string, error) {
	return c.submit(ctx, "marketplace_submitWork", from, jobID)
}

func (c *Client) ApproveWork(ctx context.Context, from string, jobID int64) (string, error) {
	return c.submit(ctx, "marketplace_approveWork", from, jobID)
}

func (c *Client) DisputeJob(ctx context.Context, from string, jobID int64) (string, error) {
	return c.submit(ctx, "marketplace_disputeJob", from, jobID)
}

func (c *Client) ResolveDispute(ctx context.Context, from string, jobID int64, payFreelancer bool) (string, error) {
	return c.submit(ctx, "marketplace_resolveDispute", from, jobID, payFreelancer)
}

// ConfirmTransaction polls the gateway until the transaction confirms,
// fails, or the timeout elapses.
func (c *Client) ConfirmTransaction(ctx context.Context, txHash string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		resp, err := c.rpcCall(ctx, "marketplace_getTransactionStatus", []interface{}{txHash})
		if err == nil {
			var status struct {
				Confirmed bool `json:"confirmed"`
				Failed    bool `json:"failed"`
			}
			if jsonErr := json.Unmarshal(resp.Result, &status); jsonErr == nil {
				if status.Failed {
					return false, fmt.Errorf("transaction %s failed on-chain", txHash)
				}
				if status.Confirmed {
					return true, nil
				}
			}
		} else {
			log.Printf("Transaction status check failed for %s: %v", txHash, err)
		}

		select {
		case <-ctx.Done():
			return false, fmt.Errorf("timed out waiting for transaction %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ Ledger = (*Client)(nil)
