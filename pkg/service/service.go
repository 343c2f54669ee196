package service

import (
	"context"
	"iter"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bean_wallet_back/models"
	"bean_wallet_back/pkg/chain"
	"bean_wallet_back/pkg/notify"
	"bean_wallet_back/pkg/repository"
)

// Chain is the part of the chain gateway the services use.
type Chain interface {
	BalanceOf(ctx context.Context, address common.Address) (*big.Int, error)
	MinFee(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context, address common.Address) (uint64, error)
	Transfer(ctx context.Context, s *chain.Signer, recipient common.Address, amount, fee *big.Int) (chain.Handle, error)
	TransferAt(ctx context.Context, s *chain.Signer, recipient common.Address, amount *big.Int, nonce uint64) (chain.Handle, error)
	MultiSend(ctx context.Context, s *chain.Signer, recipients []common.Address, amounts []*big.Int, perRecipientFee *big.Int) (chain.Handle, error)
	SetMinFee(ctx context.Context, fee *big.Int) (chain.Handle, error)
	SystemAddress() common.Address
}

type Explorer interface {
	Transactions(ctx context.Context, address string, limit int) iter.Seq[models.TransactionRecord]
	TransactionDetail(ctx context.Context, hash string) (models.TransactionRecord, bool)
}

type Codec interface {
	Encrypt(privateKey string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type Wallet interface {
	CreateWallet(ctx context.Context, password string) (models.WalletResponse, error)
	ConnectWallet(ctx context.Context, privateKey, password string) (models.WalletResponse, error)
	GetBalance(ctx context.Context, address string) (models.Balance, error)
	GetTransactions(ctx context.Context, address string, limit int) ([]models.TransactionRecord, error)
	GetJournal(ctx context.Context, address string, limit int) ([]models.TransferLog, error)
}

type Transfer interface {
	Transfer(ctx context.Context, cred models.Credential, in models.TransferInput) (models.TransferResult, error)
	MultiSend(ctx context.Context, cred models.Credential, in models.MultiTransferInput) (models.MultiTransferResult, error)
	SetMinFee(ctx context.Context, fee models.Amount) (string, error)
	MinFee(ctx context.Context) (models.Amount, error)
}

type Options struct {
	FeeMode         string
	AllowZeroAmount bool
	EnrichAttempts  int
	EnrichInterval  time.Duration
	DefaultTxLimit  int
	MaxTxLimit      int
	ScryptN         int
	ScryptP         int
}

type Deps struct {
	Chain    Chain
	Explorer Explorer
	Codec    Codec
	Repos    *repository.Repository
	Alerter  notify.Alerter
	Options  Options
}

type Service struct {
	Wallet
	Transfer
}

func NewService(deps Deps) *Service {
	if deps.Repos == nil {
		deps.Repos = repository.NewNoopRepository()
	}
	if deps.Alerter == nil {
		deps.Alerter = notify.Noop{}
	}
	return &Service{
		Wallet:   NewWalletService(deps),
		Transfer: NewTransferService(deps),
	}
}
