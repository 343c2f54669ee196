package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// nonceSequence hands out consecutive nonces for one signer within one request. It is seeded
// once from the pending nonce, and the next value is only available after the previous one was
// consumed by a successful submission.
type nonceSequence struct {
	next    uint64
	pending bool
}

func newNonceSequence(ctx context.Context, c Chain, address common.Address) (*nonceSequence, error) {
	n, err := c.PendingNonce(ctx, address)
	if err != nil {
		return nil, err
	}
	return &nonceSequence{next: n}, nil
}

// take returns the nonce for the next submission. ok is false while the previous nonce is
// still outstanding.
func (s *nonceSequence) take() (nonce uint64, ok bool) {
	if s.pending {
		return 0, false
	}
	s.pending = true
	return s.next, true
}

// consume records that the nonce returned by take was used by a submitted transaction.
func (s *nonceSequence) consume() {
	if s.pending {
		s.pending = false
		s.next++
	}
}
