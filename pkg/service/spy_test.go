package service

import (
	"context"
	"errors"
	"iter"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"bean_wallet_back/models"
	"bean_wallet_back/pkg/apperror"
	"bean_wallet_back/pkg/chain"
)

type submission struct {
	method string
	to     common.Address
	amount *big.Int
	fee    *big.Int
	nonce  uint64
}

type spyChain struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	nonce    uint64
	system   common.Address
	subs     []submission
	// failAt makes the submission with this index fail; -1 disables it.
	failAt int
}

func newSpyChain() *spyChain {
	return &spyChain{
		balances: make(map[common.Address]*big.Int),
		system:   common.HexToAddress("0xc881070f3cF39B0bEfe1738Fc78D97a90E34a959"),
		failAt:   -1,
	}
}

func (c *spyChain) submit(sub submission) (chain.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt == len(c.subs) {
		return chain.Handle{}, apperror.Wrap(apperror.Submission, errors.New("rejected"), "submit "+sub.method)
	}
	c.subs = append(c.subs, sub)
	return chain.Handle{
		Hash:  crypto.Keccak256Hash([]byte(sub.method), sub.to.Bytes(), big.NewInt(int64(len(c.subs))).Bytes()),
		Nonce: sub.nonce,
	}, nil
}

func (c *spyChain) submissions() []submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]submission(nil), c.subs...)
}

func (c *spyChain) BalanceOf(ctx context.Context, address common.Address) (*big.Int, error) {
	if v, ok := c.balances[address]; ok {
		return v, nil
	}
	return new(big.Int), nil
}

func (c *spyChain) MinFee(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (c *spyChain) PendingNonce(ctx context.Context, address common.Address) (uint64, error) {
	return c.nonce, nil
}

func (c *spyChain) Transfer(ctx context.Context, s *chain.Signer, to common.Address, amount, fee *big.Int) (chain.Handle, error) {
	method := "transfer"
	if fee.Sign() > 0 {
		method = "transferWithFee"
	}
	return c.submit(submission{method: method, to: to, amount: amount, fee: fee})
}

func (c *spyChain) TransferAt(ctx context.Context, s *chain.Signer, to common.Address, amount *big.Int, nonce uint64) (chain.Handle, error) {
	return c.submit(submission{method: "transferAt", to: to, amount: amount, nonce: nonce})
}

func (c *spyChain) MultiSend(ctx context.Context, s *chain.Signer, to []common.Address, amounts []*big.Int, fee *big.Int) (chain.Handle, error) {
	return c.submit(submission{method: "multiSend", amount: chain.AggregateAmount(amounts), fee: chain.AggregateFee(fee, len(to))})
}

func (c *spyChain) SetMinFee(ctx context.Context, fee *big.Int) (chain.Handle, error) {
	return c.submit(submission{method: "setMinFee", fee: fee})
}

func (c *spyChain) SystemAddress() common.Address { return c.system }

type fakeExplorer struct {
	records map[string]models.TransactionRecord
	history []models.TransactionRecord
	lookups int
}

func (e *fakeExplorer) Transactions(ctx context.Context, address string, limit int) iter.Seq[models.TransactionRecord] {
	return func(yield func(models.TransactionRecord) bool) {
		for i, tx := range e.history {
			if i >= limit || !yield(tx) {
				return
			}
		}
	}
}

func (e *fakeExplorer) TransactionDetail(ctx context.Context, hash string) (models.TransactionRecord, bool) {
	e.lookups++
	rec, ok := e.records[hash]
	return rec, ok
}

type memJournal struct {
	mu   sync.Mutex
	logs []models.TransferLog
	err  error
}

func (j *memJournal) RecordTransfer(ctx context.Context, log models.TransferLog) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return 0, j.err
	}
	log.ID = int64(len(j.logs) + 1)
	j.logs = append(j.logs, log)
	return log.ID, nil
}

func (j *memJournal) TransfersBySource(ctx context.Context, source string, limit int) ([]models.TransferLog, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.TransferLog
	for _, l := range j.logs {
		if l.Source == source && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

type spyAlerter struct {
	calls [][]string
}

func (a *spyAlerter) PartialTransfer(ctx context.Context, source string, submitted []string, cause error) {
	a.calls = append(a.calls, submitted)
}
