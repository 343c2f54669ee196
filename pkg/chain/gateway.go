// Package chain binds signers to the deployed Bean token contract and submits calls to it over
// JSON-RPC. Submissions return as soon as the node accepted the transaction.
package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"bean_wallet_back/internal/wallet"
	"bean_wallet_back/pkg/apperror"
)

const (
	methodBalanceOf       = "balanceOf"
	methodMinFee          = "minFee"
	methodTransfer        = "transfer"
	methodTransferWithFee = "transferWithFee"
	methodMultiSend       = "multiSend"
	methodSetMinFee       = "setMinFee"
)

var requiredMethods = []string{methodBalanceOf, methodTransfer, methodTransferWithFee, methodMultiSend}

type Config struct {
	RPCEndpoint     string
	ChainID         *big.Int
	ContractAddress common.Address
	ABI             string
	SystemKey       string
	SystemAddress   common.Address
	GasLimit        uint64
	GasPrice        *big.Int
	Timeout         time.Duration
}

// Signer is a private key ready to authorize transactions. It lives for one request.
type Signer struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Handle identifies a submitted transaction.
type Handle struct {
	Hash  common.Hash
	Nonce uint64
}

type Gateway struct {
	backend  bind.ContractBackend
	contract *bind.BoundContract
	cfg      Config
	system   *Signer
}

// Dial connects to the configured RPC endpoint and binds the token contract.
func Dial(ctx context.Context, cfg Config) (*Gateway, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, apperror.Wrap(apperror.Network, err, "dial rpc")
	}
	g, err := NewGateway(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return g, nil
}

func NewGateway(backend bind.ContractBackend, cfg Config) (*Gateway, error) {
	parsed, err := abi.JSON(strings.NewReader(cfg.ABI))
	if err != nil {
		return nil, apperror.Wrap(apperror.Configuration, err, "parse contract abi")
	}
	for _, m := range requiredMethods {
		if _, ok := parsed.Methods[m]; !ok {
			return nil, apperror.Newf(apperror.Configuration, "contract abi has no %s method", m)
		}
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, apperror.New(apperror.Configuration, "chain id is required")
	}
	if cfg.GasLimit == 0 || cfg.GasPrice == nil || cfg.GasPrice.Sign() <= 0 {
		return nil, apperror.New(apperror.Configuration, "fixed gas limit and gas price are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	g := &Gateway{
		backend:  backend,
		contract: bind.NewBoundContract(cfg.ContractAddress, parsed, backend, backend, backend),
		cfg:      cfg,
	}
	if cfg.SystemKey != "" {
		key, addr, err := wallet.KeyFromHex(cfg.SystemKey)
		if err != nil {
			return nil, apperror.Wrap(apperror.Configuration, err, "system wallet key")
		}
		g.system = &Signer{key: key, Address: addr}
		if g.cfg.SystemAddress == (common.Address{}) {
			g.cfg.SystemAddress = addr
		}
	}
	return g, nil
}

func (g *Gateway) Close() {
	if c, ok := g.backend.(interface{ Close() }); ok {
		c.Close()
	}
}

// SystemAddress is where split fees are sent.
func (g *Gateway) SystemAddress() common.Address { return g.cfg.SystemAddress }

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.cfg.Timeout)
}

func (g *Gateway) call(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	opts := &bind.CallOpts{Context: ctx}
	if g.system != nil {
		opts.From = g.system.Address
	}
	var out []interface{}
	if err := g.contract.Call(opts, &out, method, params...); err != nil {
		return nil, apperror.Wrap(apperror.Network, err, method)
	}
	if len(out) == 0 {
		return nil, apperror.Newf(apperror.Network, "%s returned nothing", method)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (g *Gateway) BalanceOf(ctx context.Context, address common.Address) (*big.Int, error) {
	return g.call(ctx, methodBalanceOf, address)
}

func (g *Gateway) MinFee(ctx context.Context) (*big.Int, error) {
	return g.call(ctx, methodMinFee)
}

func (g *Gateway) PendingNonce(ctx context.Context, address common.Address) (uint64, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	nonce, err := g.backend.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, apperror.Wrap(apperror.Network, err, "pending nonce")
	}
	return nonce, nil
}

// Transfer sends amount to recipient. A positive fee switches to transferWithFee, which moves
// the fee to the contract's system wallet in the same call.
func (g *Gateway) Transfer(ctx context.Context, s *Signer, recipient common.Address, amount, fee *big.Int) (Handle, error) {
	if err := checkTransfer(s, recipient, amount, fee); err != nil {
		return Handle{}, err
	}
	if fee == nil || fee.Sign() == 0 {
		return g.transact(ctx, s, nil, methodTransfer, recipient, amount)
	}
	return g.transact(ctx, s, nil, methodTransferWithFee, recipient, amount, fee)
}

// TransferAt sends a plain transfer under an explicit nonce.
func (g *Gateway) TransferAt(ctx context.Context, s *Signer, recipient common.Address, amount *big.Int, nonce uint64) (Handle, error) {
	if err := checkTransfer(s, recipient, amount, nil); err != nil {
		return Handle{}, err
	}
	return g.transact(ctx, s, &nonce, methodTransfer, recipient, amount)
}

// MultiSend distributes amounts to recipients in one call and charges perRecipientFee for
// each of them.
func (g *Gateway) MultiSend(ctx context.Context, s *Signer, recipients []common.Address, amounts []*big.Int, perRecipientFee *big.Int) (Handle, error) {
	if len(recipients) == 0 {
		return Handle{}, apperror.New(apperror.InvalidInput, "no recipients")
	}
	if len(recipients) != len(amounts) {
		return Handle{}, apperror.Newf(apperror.InvalidInput, "%d recipients but %d amounts", len(recipients), len(amounts))
	}
	for i, r := range recipients {
		if err := checkTransfer(s, r, amounts[i], perRecipientFee); err != nil {
			return Handle{}, err
		}
	}
	return g.transact(ctx, s, nil, methodMultiSend, recipients, amounts, AggregateFee(perRecipientFee, len(recipients)))
}

// SetMinFee updates the contract minimum fee with the system wallet.
func (g *Gateway) SetMinFee(ctx context.Context, fee *big.Int) (Handle, error) {
	if g.system == nil {
		return Handle{}, apperror.New(apperror.Configuration, "system wallet is not configured")
	}
	if fee == nil || fee.Sign() < 0 {
		return Handle{}, apperror.New(apperror.InvalidInput, "fee must be a non-negative integer")
	}
	return g.transact(ctx, g.system, nil, methodSetMinFee, fee)
}

func (g *Gateway) transact(ctx context.Context, s *Signer, nonce *uint64, method string, params ...interface{}) (Handle, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, g.cfg.ChainID)
	if err != nil {
		return Handle{}, apperror.Wrap(apperror.Configuration, err, "build transactor")
	}
	opts.Context = ctx
	opts.GasLimit = g.cfg.GasLimit
	opts.GasPrice = g.cfg.GasPrice
	if nonce != nil {
		opts.Nonce = new(big.Int).SetUint64(*nonce)
	}

	tx, err := g.contract.Transact(opts, method, params...)
	if err != nil {
		return Handle{}, apperror.Wrap(apperror.Submission, err, method)
	}
	logrus.WithFields(logrus.Fields{
		"method": method,
		"from":   s.Address.Hex(),
		"hash":   tx.Hash().Hex(),
		"nonce":  tx.Nonce(),
	}).Info("transaction submitted")
	return Handle{Hash: tx.Hash(), Nonce: tx.Nonce()}, nil
}

func checkTransfer(s *Signer, recipient common.Address, amount, fee *big.Int) error {
	if recipient == s.Address {
		return apperror.New(apperror.BusinessRule, "cannot transfer to own address")
	}
	if amount == nil || amount.Sign() < 0 {
		return apperror.New(apperror.InvalidInput, "amount must be a non-negative integer")
	}
	if fee != nil && fee.Sign() < 0 {
		return apperror.New(apperror.InvalidInput, "fee must be a non-negative integer")
	}
	return nil
}

// AggregateFee is perRecipientFee × n.
func AggregateFee(perRecipientFee *big.Int, n int) *big.Int {
	if perRecipientFee == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(perRecipientFee, big.NewInt(int64(n)))
}

// AggregateAmount is the sum of all amounts.
func AggregateAmount(amounts []*big.Int) *big.Int {
	total := new(big.Int)
	for _, a := range amounts {
		if a != nil {
			total.Add(total, a)
		}
	}
	return total
}
