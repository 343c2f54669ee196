// Package config loads the service configuration once at startup: configs/config.yaml through
// viper, overridden by environment variables, with secrets taken from the environment (.env).
package config

import (
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"bean_wallet_back/contracts"
	"bean_wallet_back/internal/wallet"
)

const (
	FeeModeContract = "contract"
	FeeModeSplit    = "split"
)

type Routes struct {
	CreateWallet []string `mapstructure:"create_wallet"`
	Connect      []string `mapstructure:"connect"`
	Balance      []string `mapstructure:"balance"`
	Transactions []string `mapstructure:"transactions"`
	Transfer     []string `mapstructure:"transfer"`
	Airdrop      []string `mapstructure:"airdrop"`
	SetFee       []string `mapstructure:"set_fee"`
	Journal      []string `mapstructure:"journal"`
}

type Config struct {
	Port string `mapstructure:"port"`
	Log  struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	API struct {
		Prefix      string   `mapstructure:"prefix"`
		CORSOrigins []string `mapstructure:"cors_origins"`
		Routes      Routes   `mapstructure:"routes"`
	} `mapstructure:"api"`
	Chain struct {
		RPCEndpoint     string        `mapstructure:"rpc_endpoint"`
		ChainID         int64         `mapstructure:"chain_id"`
		ContractAddress string        `mapstructure:"contract_address"`
		ABIPath         string        `mapstructure:"abi_path"`
		SystemAddress   string        `mapstructure:"system_address"`
		GasLimit        uint64        `mapstructure:"gas_limit"`
		GasPrice        string        `mapstructure:"gas_price"`
		Timeout         time.Duration `mapstructure:"timeout"`
	} `mapstructure:"chain"`
	Explorer struct {
		BaseURL        string        `mapstructure:"base_url"`
		Timeout        time.Duration `mapstructure:"timeout"`
		PageSize       int           `mapstructure:"page_size"`
		EnrichAttempts int           `mapstructure:"enrich_attempts"`
		EnrichInterval time.Duration `mapstructure:"enrich_interval"`
		DefaultTxLimit int           `mapstructure:"default_tx_limit"`
		MaxTxLimit     int           `mapstructure:"max_tx_limit"`
	} `mapstructure:"explorer"`
	Transfer struct {
		FeeMode         string `mapstructure:"fee_mode"`
		AllowZeroAmount bool   `mapstructure:"allow_zero_amount"`
		KeystoreScryptN int    `mapstructure:"keystore_scrypt_n"`
		KeystoreScryptP int    `mapstructure:"keystore_scrypt_p"`
	} `mapstructure:"transfer"`
	DB struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Username string `mapstructure:"username"`
		DBName   string `mapstructure:"dbname"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Alert struct {
		From string `mapstructure:"from"`
		To   string `mapstructure:"to"`
	} `mapstructure:"alert"`

	// Secrets, environment only.
	SecretKey        string `mapstructure:"-"`
	SystemWalletKey  string `mapstructure:"-"`
	DBPassword       string `mapstructure:"-"`
	AdminToken       string `mapstructure:"-"`
	MailjetAPIKey    string `mapstructure:"-"`
	MailjetSecretKey string `mapstructure:"-"`

	// Resolved values.
	ContractABI string   `mapstructure:"-"`
	GasPrice    *big.Int `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "5001")
	v.SetDefault("log.level", "info")
	v.SetDefault("api.prefix", "/api")
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.routes.create_wallet", []string{"/account", "/wallets"})
	v.SetDefault("api.routes.connect", []string{"/connection"})
	v.SetDefault("api.routes.balance", []string{"/balance/:address", "/balances/:address"})
	v.SetDefault("api.routes.transactions", []string{"/transactions/:address"})
	v.SetDefault("api.routes.transfer", []string{"/transfer", "/transactions"})
	v.SetDefault("api.routes.airdrop", []string{"/airdrop"})
	v.SetDefault("api.routes.set_fee", []string{"/fee"})
	v.SetDefault("api.routes.journal", []string{"/transfers/:address"})
	v.SetDefault("chain.rpc_endpoint", "https://rpc.testnet.tomochain.com")
	v.SetDefault("chain.chain_id", 89)
	v.SetDefault("chain.gas_limit", 200000)
	v.SetDefault("chain.gas_price", "250000000")
	v.SetDefault("chain.timeout", 30*time.Second)
	v.SetDefault("explorer.base_url", "https://scan.testnet.tomochain.com")
	v.SetDefault("explorer.timeout", 10*time.Second)
	v.SetDefault("explorer.page_size", 20)
	v.SetDefault("explorer.enrich_attempts", 1)
	v.SetDefault("explorer.enrich_interval", 2*time.Second)
	v.SetDefault("explorer.default_tx_limit", 20)
	v.SetDefault("explorer.max_tx_limit", 100)
	v.SetDefault("transfer.fee_mode", FeeModeContract)
	v.SetDefault("transfer.keystore_scrypt_n", 1<<18)
	v.SetDefault("transfer.keystore_scrypt_p", 1)
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.sslmode", "disable")
}

// Load reads config.yaml from the given directories (the first match wins) and applies
// environment overrides such as CHAIN_RPC_ENDPOINT or PORT.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	cfg.SystemWalletKey = os.Getenv("SYSTEM_WALLET_KEY")
	cfg.DBPassword = os.Getenv("DB_PASS")
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	cfg.MailjetAPIKey = os.Getenv("MAILJET_API_KEY")
	cfg.MailjetSecretKey = os.Getenv("MAILJET_SECRET_KEY")

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve() error {
	c.ContractABI = contracts.BeanABI
	if c.Chain.ABIPath != "" {
		raw, err := os.ReadFile(c.Chain.ABIPath)
		if err != nil {
			return errors.Wrap(err, "read contract abi")
		}
		c.ContractABI = string(raw)
	}

	price, ok := new(big.Int).SetString(c.Chain.GasPrice, 10)
	if !ok || price.Sign() <= 0 {
		return errors.Errorf("invalid chain.gas_price %q", c.Chain.GasPrice)
	}
	c.GasPrice = price

	if !wallet.IsAddress(c.Chain.ContractAddress) {
		return errors.Errorf("invalid chain.contract_address %q", c.Chain.ContractAddress)
	}
	if c.Chain.SystemAddress != "" && !wallet.IsAddress(c.Chain.SystemAddress) {
		return errors.Errorf("invalid chain.system_address %q", c.Chain.SystemAddress)
	}

	switch c.Transfer.FeeMode {
	case FeeModeContract, FeeModeSplit:
	default:
		return errors.Errorf("unknown transfer.fee_mode %q", c.Transfer.FeeMode)
	}
	if c.Transfer.FeeMode == FeeModeSplit && c.Chain.SystemAddress == "" && c.SystemWalletKey == "" {
		return errors.New("split fee mode needs chain.system_address or SYSTEM_WALLET_KEY")
	}
	if c.Explorer.MaxTxLimit < c.Explorer.DefaultTxLimit {
		c.Explorer.MaxTxLimit = c.Explorer.DefaultTxLimit
	}
	return nil
}

func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Chain.ContractAddress)
}

func (c *Config) SystemAddress() common.Address {
	if c.Chain.SystemAddress == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.Chain.SystemAddress)
}
