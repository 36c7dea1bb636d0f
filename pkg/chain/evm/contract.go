package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20ABIJSON = `[
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const bridgeABIJSON = `[
	{"name":"lockTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"destinationChain","type":"string"},{"name":"recipient","type":"string"}],"outputs":[]},
	{"name":"mintTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"recipient","type":"string"},{"name":"amount","type":"uint256"},{"name":"sourceChain","type":"string"},{"name":"sourceTxHash","type":"string"},{"name":"lockId","type":"bytes32"}],"outputs":[]},
	{"name":"TokensLocked","type":"event","anonymous":false,"inputs":[{"name":"lockId","type":"bytes32","indexed":true},{"name":"sender","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"destinationChain","type":"string","indexed":false}]}
]`

var (
	erc20ABI  = mustParseABI(erc20ABIJSON)
	bridgeABI = mustParseABI(bridgeABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// tokensLockedTopic is the topic hash of the TokensLocked event.
var tokensLockedTopic = bridgeABI.Events["TokensLocked"].ID

// ERC20 wraps the minimal token contract surface the bridge needs.
type ERC20 struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewERC20 binds an ERC-20 token contract.
func NewERC20(address common.Address, client *ethclient.Client) *ERC20 {
	return &ERC20{
		address:  address,
		contract: bind.NewBoundContract(address, erc20ABI, client, client, client),
	}
}

// Decimals returns the token's on-chain decimal count.
func (t *ERC20) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("decimals call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Allowance returns the amount the spender may move on behalf of owner.
func (t *ERC20) Allowance(opts *bind.CallOpts, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Approve grants the spender permission to move amount tokens.
func (t *ERC20) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.contract.Transact(opts, "approve", spender, amount)
}

// BridgeContract wraps the lock/mint bridge contract.
type BridgeContract struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewBridgeContract binds a bridge contract.
func NewBridgeContract(address common.Address, client *ethclient.Client) *BridgeContract {
	return &BridgeContract{
		address:  address,
		contract: bind.NewBoundContract(address, bridgeABI, client, client, client),
	}
}

// Address returns the bridge contract address.
func (b *BridgeContract) Address() common.Address {
	return b.address
}

// LockTokens escrows tokens in the bridge contract for a destination chain.
func (b *BridgeContract) LockTokens(opts *bind.TransactOpts, token common.Address, amount *big.Int, destinationChain, recipient string) (*types.Transaction, error) {
	return b.contract.Transact(opts, "lockTokens", token, amount, destinationChain, recipient)
}

// MintTokens mints or releases tokens for a lock on another chain. The
// contract keys processed mints by lockId, so replays with the same lockId
// are rejected on-chain.
func (b *BridgeContract) MintTokens(opts *bind.TransactOpts, token common.Address, recipient string, amount *big.Int, sourceChain, sourceTxHash string, lockID [32]byte) (*types.Transaction, error) {
	return b.contract.Transact(opts, "mintTokens", token, recipient, amount, sourceChain, sourceTxHash, lockID)
}

// ParseLockID extracts the lock identifier from a TokensLocked log emitted by
// this bridge contract, or "" when the log does not match.
func (b *BridgeContract) ParseLockID(log types.Log) string {
	if log.Address != b.address || len(log.Topics) < 2 || log.Topics[0] != tokensLockedTopic {
		return ""
	}
	return log.Topics[1].Hex()
}
