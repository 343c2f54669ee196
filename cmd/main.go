package main

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	beanwallet "bean_wallet_back"
	"bean_wallet_back/pkg/chain"
	"bean_wallet_back/pkg/config"
	"bean_wallet_back/pkg/explorer"
	"bean_wallet_back/pkg/handler"
	"bean_wallet_back/pkg/notify"
	"bean_wallet_back/pkg/repository"
	"bean_wallet_back/pkg/secret"
	"bean_wallet_back/pkg/service"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.Infoln("starting bean wallet server")
	if err := godotenv.Load(); err != nil {
		logrus.Infof("no .env loaded: %s", err)
	}

	cfg, err := config.Load("configs")
	if err != nil {
		logrus.Fatalf("config: %s", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.SecretKey == "" {
		logrus.Warn("SECRET_KEY is not set, wallet creation and transfers will fail")
	}

	ctx := context.Background()
	gateway, err := chain.Dial(ctx, chain.Config{
		RPCEndpoint:     cfg.Chain.RPCEndpoint,
		ChainID:         big.NewInt(cfg.Chain.ChainID),
		ContractAddress: cfg.ContractAddress(),
		ABI:             cfg.ContractABI,
		SystemKey:       cfg.SystemWalletKey,
		SystemAddress:   cfg.SystemAddress(),
		GasLimit:        cfg.Chain.GasLimit,
		GasPrice:        cfg.GasPrice,
		Timeout:         cfg.Chain.Timeout,
	})
	if err != nil {
		logrus.Fatalf("chain: %s", err)
	}
	defer gateway.Close()
	logrus.WithField("rpc", cfg.Chain.RPCEndpoint).Info("chain gateway connected")

	repos := repository.NewNoopRepository()
	if cfg.DB.Enabled {
		db, err := repository.NewPostgresDB(repository.Config{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			Username: cfg.DB.Username,
			Password: cfg.DBPassword,
			DBName:   cfg.DB.DBName,
			SSLMode:  cfg.DB.SSLMode,
		})
		if err != nil {
			logrus.Fatalf("database: %s", err)
		}
		defer db.Close()
		repos = repository.NewRepository(db)
		logrus.Info("transfer journal connected")
	}

	services := service.NewService(service.Deps{
		Chain: gateway,
		Explorer: explorer.New(explorer.Config{
			BaseURL:  cfg.Explorer.BaseURL,
			Timeout:  cfg.Explorer.Timeout,
			PageSize: cfg.Explorer.PageSize,
		}),
		Codec:   secret.NewCodec(cfg.SecretKey),
		Repos:   repos,
		Alerter: notify.NewAlerter(cfg.MailjetAPIKey, cfg.MailjetSecretKey, cfg.Alert.From, cfg.Alert.To),
		Options: service.Options{
			FeeMode:         cfg.Transfer.FeeMode,
			AllowZeroAmount: cfg.Transfer.AllowZeroAmount,
			EnrichAttempts:  cfg.Explorer.EnrichAttempts,
			EnrichInterval:  cfg.Explorer.EnrichInterval,
			DefaultTxLimit:  cfg.Explorer.DefaultTxLimit,
			MaxTxLimit:      cfg.Explorer.MaxTxLimit,
			ScryptN:         cfg.Transfer.KeystoreScryptN,
			ScryptP:         cfg.Transfer.KeystoreScryptP,
		},
	})
	handlers := handler.NewHandler(services, handler.Options{
		Prefix:      cfg.API.Prefix,
		CORSOrigins: cfg.API.CORSOrigins,
		Routes:      cfg.API.Routes,
		AdminToken:  cfg.AdminToken,
	})

	srv := new(beanwallet.Server)
	go func() {
		if err := srv.Run(cfg.Port, handlers.InitRoute()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server: %s", err)
		}
	}()
	logrus.WithField("port", cfg.Port).Info("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("shutdown: %s", err)
	}
}
