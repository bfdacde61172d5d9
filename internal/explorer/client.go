// Package explorer implements the block-explorer transaction feed client
// (Etherscan v2 account/txlist). The feed is treated as unreliable and
// at-least-once: callers must dedup downstream.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RawTx is one transaction record as returned by the explorer. All fields are
// strings on the wire; decoding into meaning happens in the decode package.
type RawTx struct {
	BlockNumber       string `json:"blockNumber"`
	TimeStamp         string `json:"timeStamp"`
	Hash              string `json:"hash"`
	Nonce             string `json:"nonce"`
	BlockHash         string `json:"blockHash"`
	TransactionIndex  string `json:"transactionIndex"`
	From              string `json:"from"`
	To                string `json:"to"`
	Value             string `json:"value"`
	Gas               string `json:"gas"`
	GasPrice          string `json:"gasPrice"`
	IsError           string `json:"isError"`
	TxReceiptStatus   string `json:"txreceipt_status"`
	Input             string `json:"input"`
	ContractAddress   string `json:"contractAddress"`
	CumulativeGasUsed string `json:"cumulativeGasUsed"`
	GasUsed           string `json:"gasUsed"`
	Confirmations     string `json:"confirmations"`
	MethodID          string `json:"methodId"`
	FunctionName      string `json:"functionName"`
}

// Client lists transactions for one contract address.
type Client struct {
	baseURL  string
	apiKey   string
	chainID  string
	address  string
	pageSize int
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithPageSize overrides the txlist page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient returns a client with a bounded request timeout.
func NewClient(baseURL, apiKey, chainID, contractAddress string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		chainID:  chainID,
		address:  contractAddress,
		pageSize: 100,
		http:     &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type txListResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// ListTransactions returns the most recent transactions to the contract from
// fromBlock onward, newest first. An upstream "No transactions found" is a
// successful empty result, not an error.
func (c *Client) ListTransactions(ctx context.Context, fromBlock int64) ([]RawTx, error) {
	q := url.Values{}
	q.Set("chainid", c.chainID)
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", c.address)
	q.Set("startblock", fmt.Sprintf("%d", fromBlock))
	q.Set("endblock", "99999999")
	q.Set("page", "1")
	q.Set("offset", fmt.Sprintf("%d", c.pageSize))
	q.Set("sort", "desc")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build txlist request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("txlist request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("txlist request: unexpected status %s", resp.Status)
	}

	var payload txListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode txlist response: %w", err)
	}

	if payload.Status != "1" {
		// Etherscan reports an empty window as status 0 with this message
		// and a non-array result; treat it as no transactions.
		if payload.Message == "No transactions found" {
			return nil, nil
		}
		return nil, fmt.Errorf("txlist: %s", payload.Message)
	}

	var txs []RawTx
	if err := json.Unmarshal(payload.Result, &txs); err != nil {
		return nil, fmt.Errorf("decode txlist result: %w", err)
	}
	return txs, nil
}
