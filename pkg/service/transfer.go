package service

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"bean_wallet_back/internal/wallet"
	"bean_wallet_back/models"
	"bean_wallet_back/pkg/apperror"
	"bean_wallet_back/pkg/chain"
	"bean_wallet_back/pkg/config"
	"bean_wallet_back/pkg/notify"
	"bean_wallet_back/pkg/repository"
)

const (
	kindTransfer  = "transfer"
	kindMultiSend = "multisend"
	kindSetFee    = "set_min_fee"
)

type TransferService struct {
	chain    Chain
	explorer Explorer
	codec    Codec
	repos    repository.Journal
	alerter  notify.Alerter
	opts     Options
}

func NewTransferService(deps Deps) *TransferService {
	opts := deps.Options
	if opts.FeeMode == "" {
		opts.FeeMode = config.FeeModeContract
	}
	if opts.EnrichAttempts <= 0 {
		opts.EnrichAttempts = 1
	}
	if opts.ScryptN == 0 {
		opts.ScryptN = keystore.StandardScryptN
	}
	if opts.ScryptP == 0 {
		opts.ScryptP = keystore.StandardScryptP
	}
	return &TransferService{
		chain:    deps.Chain,
		explorer: deps.Explorer,
		codec:    deps.Codec,
		repos:    deps.Repos.Journal,
		alerter:  deps.Alerter,
		opts:     opts,
	}
}

// unlock turns the caller's credential into a signer. The plaintext key never leaves this call.
// A keystore wins over a raw private key, which wins over an encrypted key.
func (s *TransferService) unlock(cred models.Credential) (*chain.Signer, error) {
	if cred.Empty() {
		return nil, apperror.New(apperror.InvalidCredential, "Encrypted key, private key or keystore is required!")
	}

	switch {
	case len(cred.Keystore) > 0:
		key, _, err := wallet.DecryptKeystore(cred.Keystore, cred.Password, s.kdfLimits())
		if err != nil {
			return nil, apperror.Wrap(apperror.InvalidCredential, err, "Invalid keystore or password!")
		}
		return chain.NewSigner(key), nil
	case cred.PrivateKey != "":
		key, _, err := wallet.KeyFromHex(cred.PrivateKey)
		if err != nil {
			// The parse error may quote the key, so it is not kept.
			return nil, apperror.New(apperror.InvalidCredential, "Invalid private key!")
		}
		return chain.NewSigner(key), nil
	}

	plain, err := s.codec.Decrypt(cred.Encrypted)
	if err != nil {
		return nil, err
	}
	key, _, err := wallet.KeyFromHex(plain)
	if err != nil {
		return nil, apperror.New(apperror.InvalidCredential, "Invalid encrypted key!")
	}
	return chain.NewSigner(key), nil
}

// kdfLimits accepts keystores no costlier to open than the ones this service issues.
func (s *TransferService) kdfLimits() wallet.KDFLimits {
	return wallet.KDFLimits{
		ScryptN: s.opts.ScryptN,
		ScryptP: s.opts.ScryptP,
		PBKDF2C: wallet.DefaultKDFLimits.PBKDF2C,
	}
}

func (s *TransferService) checkAmount(a models.Amount, field string) (*big.Int, error) {
	if !a.IsSet() {
		return nil, apperror.Newf(apperror.InvalidInput, "%s is required!", field)
	}
	v := a.Int()
	switch v.Sign() {
	case -1:
		return nil, apperror.Newf(apperror.InvalidInput, "%s must not be negative!", field)
	case 0:
		if !s.opts.AllowZeroAmount {
			return nil, apperror.Newf(apperror.InvalidInput, "%s must be positive!", field)
		}
	}
	return v, nil
}

func checkFee(a models.Amount) (*big.Int, error) {
	fee := a.Int()
	if fee.Sign() < 0 {
		return nil, apperror.New(apperror.InvalidInput, "Transaction fee must not be negative!")
	}
	return fee, nil
}

func checkRecipient(signer *chain.Signer, receiver string) (common.Address, error) {
	if !wallet.IsAddress(receiver) {
		return common.Address{}, apperror.Newf(apperror.InvalidInput, "Invalid receiver address %q!", receiver)
	}
	to := common.HexToAddress(receiver)
	if to == signer.Address {
		return common.Address{}, apperror.New(apperror.BusinessRule, "Sender and receiver must differ!")
	}
	return to, nil
}

func (s *TransferService) Transfer(ctx context.Context, cred models.Credential, in models.TransferInput) (models.TransferResult, error) {
	signer, err := s.unlock(cred)
	if err != nil {
		return models.TransferResult{}, err
	}

	to, err := checkRecipient(signer, in.ReceiverAddress)
	if err != nil {
		return models.TransferResult{}, err
	}
	amount, err := s.checkAmount(in.Amount, "Amount")
	if err != nil {
		return models.TransferResult{}, err
	}
	fee, err := checkFee(in.TransactionFee)
	if err != nil {
		return models.TransferResult{}, err
	}

	var principal, feeLeg *chain.Handle
	if s.opts.FeeMode == config.FeeModeSplit && fee.Sign() > 0 {
		principal, feeLeg, err = s.splitTransfer(ctx, signer, to, amount, fee)
	} else {
		var h chain.Handle
		h, err = s.chain.Transfer(ctx, signer, to, amount, fee)
		principal = &h
	}
	if err != nil {
		return models.TransferResult{}, err
	}

	log := logrus.WithFields(logrus.Fields{
		"source": signer.Address.Hex(),
		"dest":   to.Hex(),
		"hash":   principal.Hash.Hex(),
	})
	log.Info("transfer submitted")

	res := models.TransferResult{
		SourceAddress:      signer.Address.Hex(),
		DestAddress:        to.Hex(),
		TransactionHash:    principal.Hash.Hex(),
		ConfirmationStatus: models.StatusUnconfirmed,
		Amount:             models.NewAmount(amount),
		Fee:                models.NewAmount(fee),
	}
	entry := models.TransferLog{
		Kind:   kindTransfer,
		TxHash: res.TransactionHash,
		Source: res.SourceAddress,
		Dest:   res.DestAddress,
		Amount: amount.String(),
		Fee:    fee.String(),
	}
	if feeLeg != nil {
		res.FeeTransactionHash = feeLeg.Hash.Hex()
		entry.FeeTxHash = &res.FeeTransactionHash
	}
	s.record(ctx, entry)

	if rec, ok := s.enrich(ctx, res.TransactionHash); ok {
		res.Timestamp, res.TxStatus, res.ConfirmationStatus = timestampOf(rec), &rec.Status, statusOf(rec)
	}
	return res, nil
}

// splitTransfer sends the principal and then the fee to the system wallet as two plain
// transfers. Once the principal is on its way the request cannot be rolled back, so a fee
// failure is reported with the hash that was already submitted.
func (s *TransferService) splitTransfer(ctx context.Context, signer *chain.Signer, to common.Address, amount, fee *big.Int) (*chain.Handle, *chain.Handle, error) {
	system := s.chain.SystemAddress()
	if signer.Address == system {
		return nil, nil, apperror.New(apperror.BusinessRule, "The system wallet cannot pay a fee to itself!")
	}

	seq, err := newNonceSequence(ctx, s.chain, signer.Address)
	if err != nil {
		return nil, nil, err
	}

	nonce, _ := seq.take()
	principal, err := s.chain.TransferAt(ctx, signer, to, amount, nonce)
	if err != nil {
		return nil, nil, err
	}
	seq.consume()

	nonce, ok := seq.take()
	if !ok {
		return nil, nil, apperror.AfterSubmission(apperror.New(apperror.Unknown, "nonce sequence exhausted"), principal.Hash.Hex())
	}
	feeLeg, err := s.chain.TransferAt(ctx, signer, system, fee, nonce)
	if err != nil {
		submitted := []string{principal.Hash.Hex()}
		logrus.WithError(err).WithFields(logrus.Fields{
			"source":    signer.Address.Hex(),
			"submitted": submitted,
		}).Error("fee transfer failed after principal was submitted")
		// The alert must go out even when the caller has already hung up.
		s.alerter.PartialTransfer(context.WithoutCancel(ctx), signer.Address.Hex(), submitted, err)
		s.record(ctx, models.TransferLog{
			Kind:   kindTransfer,
			TxHash: principal.Hash.Hex(),
			Source: signer.Address.Hex(),
			Dest:   to.Hex(),
			Amount: amount.String(),
			Fee:    "0",
		})
		return nil, nil, apperror.AfterSubmission(err, submitted...)
	}
	seq.consume()

	return &principal, &feeLeg, nil
}

func (s *TransferService) MultiSend(ctx context.Context, cred models.Credential, in models.MultiTransferInput) (models.MultiTransferResult, error) {
	signer, err := s.unlock(cred)
	if err != nil {
		return models.MultiTransferResult{}, err
	}
	if len(in.Recipients) == 0 {
		return models.MultiTransferResult{}, apperror.New(apperror.InvalidInput, "At least one recipient is required!")
	}

	recipients := make([]common.Address, 0, len(in.Recipients))
	amounts := make([]*big.Int, 0, len(in.Recipients))
	normalized := make([]models.Recipient, 0, len(in.Recipients))
	for _, r := range in.Recipients {
		to, err := checkRecipient(signer, r.ReceiverAddress)
		if err != nil {
			return models.MultiTransferResult{}, err
		}
		amount, err := s.checkAmount(r.Amount, "Amount")
		if err != nil {
			return models.MultiTransferResult{}, err
		}
		recipients = append(recipients, to)
		amounts = append(amounts, amount)
		normalized = append(normalized, models.Recipient{ReceiverAddress: to.Hex(), Amount: models.NewAmount(amount)})
	}
	fee, err := checkFee(in.TransactionFee)
	if err != nil {
		return models.MultiTransferResult{}, err
	}

	h, err := s.chain.MultiSend(ctx, signer, recipients, amounts, fee)
	if err != nil {
		return models.MultiTransferResult{}, err
	}

	total, totalFee := chain.AggregateAmount(amounts), chain.AggregateFee(fee, len(recipients))
	logrus.WithFields(logrus.Fields{
		"source":     signer.Address.Hex(),
		"recipients": len(recipients),
		"hash":       h.Hash.Hex(),
	}).Info("multi-send submitted")

	res := models.MultiTransferResult{
		SourceAddress:      signer.Address.Hex(),
		Recipients:         normalized,
		TransactionHash:    h.Hash.Hex(),
		ConfirmationStatus: models.StatusUnconfirmed,
		TotalAmount:        models.NewAmount(total),
		TotalFee:           models.NewAmount(totalFee),
	}
	s.record(ctx, models.TransferLog{
		Kind:   kindMultiSend,
		TxHash: res.TransactionHash,
		Source: res.SourceAddress,
		Dest:   joinAddresses(recipients),
		Amount: total.String(),
		Fee:    totalFee.String(),
	})

	if rec, ok := s.enrich(ctx, res.TransactionHash); ok {
		res.Timestamp, res.TxStatus, res.ConfirmationStatus = timestampOf(rec), &rec.Status, statusOf(rec)
	}
	return res, nil
}

func (s *TransferService) SetMinFee(ctx context.Context, fee models.Amount) (string, error) {
	if !fee.IsSet() || fee.Int().Sign() < 0 {
		return "", apperror.New(apperror.InvalidInput, "Fee must be a non-negative integer!")
	}
	h, err := s.chain.SetMinFee(ctx, fee.Int())
	if err != nil {
		return "", err
	}
	system := s.chain.SystemAddress().Hex()
	logrus.WithFields(logrus.Fields{"fee": fee.String(), "hash": h.Hash.Hex()}).Info("minimum fee updated")
	s.record(ctx, models.TransferLog{
		Kind:   kindSetFee,
		TxHash: h.Hash.Hex(),
		Source: system,
		Dest:   system,
		Amount: "0",
		Fee:    fee.String(),
	})
	return h.Hash.Hex(), nil
}

func (s *TransferService) MinFee(ctx context.Context) (models.Amount, error) {
	fee, err := s.chain.MinFee(ctx)
	if err != nil {
		return models.Amount{}, err
	}
	return models.NewAmount(fee), nil
}

func (s *TransferService) record(ctx context.Context, entry models.TransferLog) {
	if _, err := s.repos.RecordTransfer(ctx, entry); err != nil {
		logrus.WithError(err).WithField("hash", entry.TxHash).Warn("journal: transfer not recorded")
	}
}

// enrich asks the explorer for the freshly submitted transaction, giving it a few chances to
// index it. Not finding it is not an error.
func (s *TransferService) enrich(ctx context.Context, hash string) (models.TransactionRecord, bool) {
	for attempt := 0; attempt < s.opts.EnrichAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return models.TransactionRecord{}, false
			case <-time.After(s.opts.EnrichInterval):
			}
		}
		if rec, ok := s.explorer.TransactionDetail(ctx, hash); ok {
			return rec, true
		}
	}
	return models.TransactionRecord{}, false
}

func statusOf(rec models.TransactionRecord) string {
	if rec.Status {
		return models.StatusConfirmed
	}
	return models.StatusFailed
}

func timestampOf(rec models.TransactionRecord) *time.Time {
	t := rec.Timestamp
	return &t
}

func joinAddresses(addrs []common.Address) string {
	out := make([]byte, 0, len(addrs)*43)
	for i, a := range addrs {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, a.Hex()...)
	}
	return string(out)
}
