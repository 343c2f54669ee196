// Package chaintest provides an in-memory contract backend for tests that exercise the chain
// gateway without a node.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend answers the RPCs a legacy transaction and a constant call need. Every other
// bind.ContractBackend method panics.
type Backend struct {
	bind.ContractBackend

	mu       sync.Mutex
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	sent     []*types.Transaction
	signer   types.Signer

	CallErr error
	SendErr error
	// SendErrAfter makes SendTransaction fail once this many transactions were accepted.
	SendErrAfter int
}

func NewBackend(chainID *big.Int) *Backend {
	return &Backend{
		balances:     make(map[common.Address]*big.Int),
		nonces:       make(map[common.Address]uint64),
		signer:       types.LatestSignerForChainID(chainID),
		SendErrAfter: -1,
	}
}

func (b *Backend) SetBalance(addr common.Address, v *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = v
}

func (b *Backend) SetNonce(addr common.Address, n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonces[addr] = n
}

// Sent returns the accepted transactions in submission order.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// CallContract answers balanceOf-shaped calls: the queried address is the last 20 bytes of the
// calldata. Calls without arguments read the zero address entry.
func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if b.CallErr != nil {
		return nil, b.CallErr
	}
	var addr common.Address
	if len(call.Data) >= 4+32 {
		addr = common.BytesToAddress(call.Data[4+12 : 4+32])
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.balances[addr]
	if v == nil {
		v = new(big.Int)
	}
	return common.LeftPadBytes(v.Bytes(), 32), nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return b.SendErr
	}
	if b.SendErrAfter >= 0 && len(b.sent) >= b.SendErrAfter {
		return errSendRejected
	}
	from, err := types.Sender(b.signer, tx)
	if err != nil {
		return err
	}
	if tx.Nonce() != b.nonces[from] {
		return errNonce
	}
	b.nonces[from]++
	b.sent = append(b.sent, tx)
	return nil
}
