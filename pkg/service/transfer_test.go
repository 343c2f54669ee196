package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bean_wallet_back/internal/wallet"
	"bean_wallet_back/models"
	"bean_wallet_back/pkg/apperror"
	"bean_wallet_back/pkg/config"
	"bean_wallet_back/pkg/repository"
	"bean_wallet_back/pkg/secret"
)

const receiver = "0x2b5AD5c4795c026514f8317c7a215E218DcCD6cF"

type fixture struct {
	chain    *spyChain
	explorer *fakeExplorer
	journal  *memJournal
	alerter  *spyAlerter
	codec    *secret.Codec
	svc      *TransferService
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		chain:    newSpyChain(),
		explorer: &fakeExplorer{records: map[string]models.TransactionRecord{}},
		journal:  &memJournal{},
		alerter:  &spyAlerter{},
		codec:    secret.NewCodec("test-secret"),
	}
	f.svc = NewTransferService(Deps{
		Chain:    f.chain,
		Explorer: f.explorer,
		Codec:    f.codec,
		Repos:    &repository.Repository{Journal: f.journal},
		Alerter:  f.alerter,
		Options:  opts,
	})
	return f
}

// credential returns a fresh wallet address and its encrypted key.
func (f *fixture) credential(t *testing.T) (string, models.Credential) {
	t.Helper()
	w, _, err := wallet.Generate()
	require.NoError(t, err)
	ct, err := f.codec.Encrypt(w.PrivateKey)
	require.NoError(t, err)
	return w.Address, models.Credential{Encrypted: ct}
}

func TestTransferWithoutFee(t *testing.T) {
	f := newFixture(t, Options{})
	from, cred := f.credential(t)

	res, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(100),
		TransactionFee:  models.AmountOf(0),
	})
	require.NoError(t, err)

	subs := f.chain.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "transfer", subs[0].method)
	assert.Equal(t, big.NewInt(100), subs[0].amount)
	assert.Equal(t, from, res.SourceAddress)
	assert.Equal(t, receiver, res.DestAddress)
	assert.NotEmpty(t, res.TransactionHash)
	assert.Empty(t, res.FeeTransactionHash)
	assert.Equal(t, models.StatusUnconfirmed, res.ConfirmationStatus)
	assert.Nil(t, res.Timestamp)

	require.Len(t, f.journal.logs, 1)
	assert.Equal(t, res.TransactionHash, f.journal.logs[0].TxHash)
	assert.Equal(t, "100", f.journal.logs[0].Amount)
}

func TestTransferContractFee(t *testing.T) {
	f := newFixture(t, Options{FeeMode: config.FeeModeContract})
	_, cred := f.credential(t)

	res, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(100),
		TransactionFee:  models.AmountOf(2),
	})
	require.NoError(t, err)

	subs := f.chain.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "transferWithFee", subs[0].method)
	assert.Equal(t, big.NewInt(2), subs[0].fee)
	assert.Equal(t, "2", res.Fee.String())
}

func TestTransferSplitFee(t *testing.T) {
	f := newFixture(t, Options{FeeMode: config.FeeModeSplit})
	f.chain.nonce = 5
	_, cred := f.credential(t)

	res, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(100),
		TransactionFee:  models.AmountOf(3),
	})
	require.NoError(t, err)

	subs := f.chain.submissions()
	require.Len(t, subs, 2)
	assert.Equal(t, receiver, subs[0].to.Hex())
	assert.Equal(t, uint64(5), subs[0].nonce)
	assert.Equal(t, big.NewInt(100), subs[0].amount)
	assert.Equal(t, f.chain.system, subs[1].to)
	assert.Equal(t, uint64(6), subs[1].nonce)
	assert.Equal(t, big.NewInt(3), subs[1].amount)
	assert.NotEmpty(t, res.FeeTransactionHash)
	assert.NotEqual(t, res.TransactionHash, res.FeeTransactionHash)

	require.Len(t, f.journal.logs, 1)
	require.NotNil(t, f.journal.logs[0].FeeTxHash)
	assert.Equal(t, res.FeeTransactionHash, *f.journal.logs[0].FeeTxHash)
}

func TestTransferSplitFeeLegFails(t *testing.T) {
	f := newFixture(t, Options{FeeMode: config.FeeModeSplit})
	f.chain.failAt = 1
	_, cred := f.credential(t)

	_, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(100),
		TransactionFee:  models.AmountOf(3),
	})
	require.Error(t, err)
	assert.Equal(t, apperror.Submission, apperror.KindOf(err))

	subs := f.chain.submissions()
	require.Len(t, subs, 1)
	hashes := apperror.SubmittedHashes(err)
	require.Len(t, hashes, 1)
	require.Len(t, f.alerter.calls, 1)
	assert.Equal(t, hashes, f.alerter.calls[0])
	require.Len(t, f.journal.logs, 1)
	assert.Equal(t, hashes[0], f.journal.logs[0].TxHash)
}

func TestTransferSplitWithoutFeeIsSingle(t *testing.T) {
	f := newFixture(t, Options{FeeMode: config.FeeModeSplit})
	_, cred := f.credential(t)

	_, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(1),
	})
	require.NoError(t, err)
	subs := f.chain.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "transfer", subs[0].method)
}

func TestTransferPrincipalFailsIsNotPartial(t *testing.T) {
	f := newFixture(t, Options{})
	f.chain.failAt = 0
	_, cred := f.credential(t)

	_, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(1),
	})
	require.Error(t, err)
	assert.Equal(t, apperror.Submission, apperror.KindOf(err))
	assert.Empty(t, apperror.SubmittedHashes(err))
	assert.Empty(t, f.alerter.calls)
	assert.Empty(t, f.journal.logs)
}

func TestTransferRejectedBeforeSubmission(t *testing.T) {
	f := newFixture(t, Options{})
	from, cred := f.credential(t)

	tests := []struct {
		name string
		cred models.Credential
		in   models.TransferInput
		kind apperror.Kind
	}{
		{
			name: "self transfer",
			cred: cred,
			in:   models.TransferInput{ReceiverAddress: from, Amount: models.AmountOf(1)},
			kind: apperror.BusinessRule,
		},
		{
			name: "bad receiver",
			cred: cred,
			in:   models.TransferInput{ReceiverAddress: "0x123", Amount: models.AmountOf(1)},
			kind: apperror.InvalidInput,
		},
		{
			name: "negative amount",
			cred: cred,
			in:   models.TransferInput{ReceiverAddress: receiver, Amount: models.AmountOf(-1)},
			kind: apperror.InvalidInput,
		},
		{
			name: "zero amount",
			cred: cred,
			in:   models.TransferInput{ReceiverAddress: receiver, Amount: models.AmountOf(0)},
			kind: apperror.InvalidInput,
		},
		{
			name: "missing amount",
			cred: cred,
			in:   models.TransferInput{ReceiverAddress: receiver},
			kind: apperror.InvalidInput,
		},
		{
			name: "negative fee",
			cred: cred,
			in:   models.TransferInput{ReceiverAddress: receiver, Amount: models.AmountOf(1), TransactionFee: models.AmountOf(-2)},
			kind: apperror.InvalidInput,
		},
		{
			name: "missing credential",
			in:   models.TransferInput{ReceiverAddress: receiver, Amount: models.AmountOf(1)},
			kind: apperror.InvalidCredential,
		},
		{
			name: "garbage credential",
			cred: models.Credential{Encrypted: "not-a-ciphertext"},
			in:   models.TransferInput{ReceiverAddress: receiver, Amount: models.AmountOf(1)},
			kind: apperror.InvalidCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Transfer(context.Background(), tt.cred, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
	assert.Empty(t, f.chain.submissions())
}

func TestTransferAllowZeroAmount(t *testing.T) {
	f := newFixture(t, Options{AllowZeroAmount: true})
	_, cred := f.credential(t)

	_, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(0),
	})
	require.NoError(t, err)
	assert.Len(t, f.chain.submissions(), 1)
}

func TestTransferSplitFromSystemWallet(t *testing.T) {
	f := newFixture(t, Options{FeeMode: config.FeeModeSplit})
	w, _, err := wallet.Generate()
	require.NoError(t, err)
	ct, err := f.codec.Encrypt(w.PrivateKey)
	require.NoError(t, err)
	_, f.chain.system, err = wallet.KeyFromHex(w.PrivateKey)
	require.NoError(t, err)

	_, err = f.svc.Transfer(context.Background(), models.Credential{Encrypted: ct}, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(1),
		TransactionFee:  models.AmountOf(1),
	})
	assert.Equal(t, apperror.BusinessRule, apperror.KindOf(err))
	assert.Empty(t, f.chain.submissions())
}

func TestTransferWithKeystore(t *testing.T) {
	f := newFixture(t, Options{})
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	file, err := wallet.EncryptKeystore(key, "pw", 2, 1)
	require.NoError(t, err)

	res, err := f.svc.Transfer(context.Background(), models.Credential{Keystore: file, Password: "pw"}, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(1),
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), res.SourceAddress)

	_, err = f.svc.Transfer(context.Background(), models.Credential{Keystore: file, Password: "wrong"}, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(1),
	})
	assert.Equal(t, apperror.InvalidCredential, apperror.KindOf(err))
}

func TestTransferEnrichment(t *testing.T) {
	f := newFixture(t, Options{EnrichAttempts: 3, EnrichInterval: time.Millisecond})
	_, cred := f.credential(t)

	res, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.explorer.lookups)
	assert.Equal(t, models.StatusUnconfirmed, res.ConfirmationStatus)

	// Index the next submission before it happens.
	ts := time.Unix(1700000000, 0).UTC()
	f.explorer.lookups = 0
	next := f.nextHash(t)
	f.explorer.records[next] = models.TransactionRecord{Hash: next, Timestamp: ts, Status: true}

	res, err = f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(1),
	})
	require.NoError(t, err)
	assert.Equal(t, next, res.TransactionHash)
	assert.Equal(t, 1, f.explorer.lookups)
	assert.Equal(t, models.StatusConfirmed, res.ConfirmationStatus)
	require.NotNil(t, res.Timestamp)
	assert.True(t, ts.Equal(*res.Timestamp))
	require.NotNil(t, res.TxStatus)
	assert.True(t, *res.TxStatus)
}

// nextHash predicts the hash the spy chain gives the next plain transfer to receiver.
func (f *fixture) nextHash(t *testing.T) string {
	t.Helper()
	n := len(f.chain.submissions()) + 1
	return crypto.Keccak256Hash([]byte("transfer"), common.HexToAddress(receiver).Bytes(), big.NewInt(int64(n)).Bytes()).Hex()
}

func TestTransferJournalFailureIsLogged(t *testing.T) {
	f := newFixture(t, Options{})
	f.journal.err = errors.New("db down")
	_, cred := f.credential(t)

	res, err := f.svc.Transfer(context.Background(), cred, models.TransferInput{
		ReceiverAddress: receiver,
		Amount:          models.AmountOf(1),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.TransactionHash)
}

func TestMultiSend(t *testing.T) {
	f := newFixture(t, Options{})
	from, cred := f.credential(t)
	second := "0x6813Eb9362372EEF6200f3b1dbC3f819671cBA69"

	res, err := f.svc.MultiSend(context.Background(), cred, models.MultiTransferInput{
		Recipients: []models.Recipient{
			{ReceiverAddress: receiver, Amount: models.AmountOf(10)},
			{ReceiverAddress: second, Amount: models.AmountOf(15)},
		},
		TransactionFee: models.AmountOf(1),
	})
	require.NoError(t, err)

	subs := f.chain.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "multiSend", subs[0].method)
	assert.Equal(t, from, res.SourceAddress)
	assert.Equal(t, "25", res.TotalAmount.String())
	assert.Equal(t, "2", res.TotalFee.String())
	assert.Len(t, res.Recipients, 2)
	require.Len(t, f.journal.logs, 1)
	assert.Equal(t, receiver+","+second, f.journal.logs[0].Dest)
}

func TestMultiSendValidation(t *testing.T) {
	f := newFixture(t, Options{})
	from, cred := f.credential(t)

	tests := []struct {
		name       string
		recipients []models.Recipient
		kind       apperror.Kind
	}{
		{"empty", nil, apperror.InvalidInput},
		{"self", []models.Recipient{{ReceiverAddress: receiver, Amount: models.AmountOf(1)}, {ReceiverAddress: from, Amount: models.AmountOf(1)}}, apperror.BusinessRule},
		{"bad address", []models.Recipient{{ReceiverAddress: "nope", Amount: models.AmountOf(1)}}, apperror.InvalidInput},
		{"negative", []models.Recipient{{ReceiverAddress: receiver, Amount: models.AmountOf(-5)}}, apperror.InvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.MultiSend(context.Background(), cred, models.MultiTransferInput{Recipients: tt.recipients})
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
	assert.Empty(t, f.chain.submissions())
}

func TestSetMinFee(t *testing.T) {
	f := newFixture(t, Options{})

	hash, err := f.svc.SetMinFee(context.Background(), models.AmountOf(4))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	subs := f.chain.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, big.NewInt(4), subs[0].fee)

	_, err = f.svc.SetMinFee(context.Background(), models.AmountOf(-1))
	assert.Equal(t, apperror.InvalidInput, apperror.KindOf(err))

	fee, err := f.svc.MinFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", fee.String())
}

func TestNonceSequence(t *testing.T) {
	c := newSpyChain()
	c.nonce = 9
	seq, err := newNonceSequence(context.Background(), c, c.system)
	require.NoError(t, err)

	n, ok := seq.take()
	require.True(t, ok)
	assert.Equal(t, uint64(9), n)

	_, ok = seq.take()
	assert.False(t, ok, "next nonce must wait for the outstanding one")

	seq.consume()
	n, ok = seq.take()
	require.True(t, ok)
	assert.Equal(t, uint64(10), n)
}
