// Package contract reads the betting contract's public state over EVM
// JSON-RPC. Read-only: no signing, no broadcasting.
package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// readerABI covers only the views the backend consumes.
const readerABI = `[
	{"name":"status","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"totalRewardPool","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"winningTeamId","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getTeams","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"id","type":"uint256"},
		{"name":"name","type":"string"},
		{"name":"totalVotes","type":"uint256"},
		{"name":"supporterCount","type":"uint256"}
	]}]}
]`

// TeamInfo mirrors one element of the contract's getTeams() return.
type TeamInfo struct {
	Id             *big.Int
	Name           string
	TotalVotes     *big.Int
	SupporterCount *big.Int
}

// Client is a bounded-timeout eth_call wrapper around the betting contract.
type Client struct {
	eth     *ethclient.Client
	addr    common.Address
	abi     abi.ABI
	timeout time.Duration
}

// Dial connects to the JSON-RPC endpoint and prepares the call ABI.
func Dial(ctx context.Context, rpcURL, contractAddress string, timeout time.Duration) (*Client, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address: %q", contractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(readerABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		eth:     eth,
		addr:    common.HexToAddress(contractAddress),
		abi:     parsed,
		timeout: timeout,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := c.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	raw, err := c.eth.CallContract(cctx, ethereum.CallMsg{To: &c.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// Status returns the game lifecycle value (0..3).
func (c *Client) Status(ctx context.Context) (uint8, error) {
	out, err := c.call(ctx, "status")
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("status: unexpected return type %T", out[0])
	}
	return v, nil
}

// TotalPrizePool returns the accumulated pool in wei.
func (c *Client) TotalPrizePool(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "totalRewardPool")
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("totalRewardPool: unexpected return type %T", out[0])
	}
	return v, nil
}

// WinningTeamID returns the winner id; meaningful only once status is Finished.
func (c *Client) WinningTeamID(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "winningTeamId")
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("winningTeamId: unexpected return type %T", out[0])
	}
	return v, nil
}

// Teams returns the contract's team registry.
func (c *Client) Teams(ctx context.Context) ([]TeamInfo, error) {
	data, err := c.abi.Pack("getTeams")
	if err != nil {
		return nil, fmt.Errorf("pack getTeams: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	raw, err := c.eth.CallContract(cctx, ethereum.CallMsg{To: &c.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getTeams: %w", err)
	}
	var teams []TeamInfo
	if err := c.abi.UnpackIntoInterface(&teams, "getTeams", raw); err != nil {
		return nil, fmt.Errorf("unpack getTeams: %w", err)
	}
	return teams, nil
}
