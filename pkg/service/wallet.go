package service

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"bean_wallet_back/internal/wallet"
	"bean_wallet_back/models"
	"bean_wallet_back/pkg/apperror"
	"bean_wallet_back/pkg/repository"
	"bean_wallet_back/pkg/secret"
)

type WalletService struct {
	chain    Chain
	explorer Explorer
	codec    Codec
	repos    repository.Journal
	opts     Options
}

func NewWalletService(deps Deps) *WalletService {
	opts := deps.Options
	if opts.ScryptN == 0 {
		opts.ScryptN = keystore.StandardScryptN
	}
	if opts.ScryptP == 0 {
		opts.ScryptP = keystore.StandardScryptP
	}
	if opts.DefaultTxLimit <= 0 {
		opts.DefaultTxLimit = 20
	}
	if opts.MaxTxLimit < opts.DefaultTxLimit {
		opts.MaxTxLimit = opts.DefaultTxLimit
	}
	return &WalletService{
		chain:    deps.Chain,
		explorer: deps.Explorer,
		codec:    deps.Codec,
		repos:    deps.Repos.Journal,
		opts:     opts,
	}
}

// CreateWallet generates a key pair and returns it encrypted; nothing is stored. With a
// password a keystore file is returned as well.
func (s *WalletService) CreateWallet(ctx context.Context, password string) (models.WalletResponse, error) {
	w, key, err := wallet.Generate()
	if err != nil {
		return models.WalletResponse{}, apperror.Wrap(apperror.Unknown, err, "create wallet")
	}

	resp, err := s.issue(key, password)
	if err != nil {
		return models.WalletResponse{}, err
	}
	logrus.WithField("address", w.Address).Info("wallet created")
	return resp, nil
}

// ConnectWallet imports an existing hex private key and hands it back in the same encrypted
// forms CreateWallet issues.
func (s *WalletService) ConnectWallet(ctx context.Context, privateKey, password string) (models.WalletResponse, error) {
	key, addr, err := wallet.KeyFromHex(privateKey)
	if err != nil {
		return models.WalletResponse{}, apperror.New(apperror.InvalidCredential, "Invalid private key!")
	}

	resp, err := s.issue(key, password)
	if err != nil {
		return models.WalletResponse{}, err
	}
	logrus.WithField("address", addr.Hex()).Info("wallet connected")
	return resp, nil
}

func (s *WalletService) issue(key *ecdsa.PrivateKey, password string) (models.WalletResponse, error) {
	ciphertext, err := s.codec.Encrypt(hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		return models.WalletResponse{}, err
	}
	resp := models.WalletResponse{
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		EncryptedCredential: models.EncryptedCredential{
			Ciphertext: ciphertext,
			Algorithm:  secret.Algorithm,
		},
	}

	if password != "" {
		file, err := wallet.EncryptKeystore(key, password, s.opts.ScryptN, s.opts.ScryptP)
		if err != nil {
			return models.WalletResponse{}, apperror.Wrap(apperror.Unknown, err, "create keystore")
		}
		resp.Keystore = file
	}
	return resp, nil
}

func (s *WalletService) GetBalance(ctx context.Context, address string) (models.Balance, error) {
	if !wallet.IsAddress(address) {
		return models.Balance{}, apperror.New(apperror.InvalidInput, "Invalid address!")
	}
	addr := common.HexToAddress(address)

	bal, err := s.chain.BalanceOf(ctx, addr)
	if err != nil {
		return models.Balance{}, err
	}
	return models.Balance{Address: addr.Hex(), Balance: models.NewAmount(bal)}, nil
}

func (s *WalletService) limit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultTxLimit
	}
	return min(limit, s.opts.MaxTxLimit)
}

// GetTransactions never fails because of the explorer: an unreachable explorer yields an empty
// history.
func (s *WalletService) GetTransactions(ctx context.Context, address string, limit int) ([]models.TransactionRecord, error) {
	if !wallet.IsAddress(address) {
		return nil, apperror.New(apperror.InvalidInput, "Invalid address!")
	}

	txs := make([]models.TransactionRecord, 0, s.limit(limit))
	for tx := range s.explorer.Transactions(ctx, address, s.limit(limit)) {
		txs = append(txs, tx)
	}
	return txs, nil
}

func (s *WalletService) GetJournal(ctx context.Context, address string, limit int) ([]models.TransferLog, error) {
	if !wallet.IsAddress(address) {
		return nil, apperror.New(apperror.InvalidInput, "Invalid address!")
	}
	logs, err := s.repos.TransfersBySource(ctx, common.HexToAddress(address).Hex(), s.limit(limit))
	if err != nil {
		return nil, apperror.Wrap(apperror.Unknown, err, "read journal")
	}
	if logs == nil {
		logs = []models.TransferLog{}
	}
	return logs, nil
}
