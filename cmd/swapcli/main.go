package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/lnswap-io/swapclient-go/auth"
	"github.com/lnswap-io/swapclient-go/btcrelay"
	"github.com/lnswap-io/swapclient-go/btcrpc"
	"github.com/lnswap-io/swapclient-go/config"
	"github.com/lnswap-io/swapclient-go/evmclient"
	"github.com/lnswap-io/swapclient-go/intermediary"
	"github.com/lnswap-io/swapclient-go/logconfig"
	"github.com/lnswap-io/swapclient-go/reporter"
	"github.com/lnswap-io/swapclient-go/storage"
	"github.com/lnswap-io/swapclient-go/swapcontract"
	"github.com/lnswap-io/swapclient-go/swapengine"
	"github.com/lnswap-io/swapclient-go/swapevents"
)

const (
	EnvConfigFilePath = "SWAPCLIENT_CONFIG"
	EnvPrivateKey     = "SWAPCLIENT_PRIVATE_KEY"
)

func main() {
	logconfig.ConfigInfoLogger()

	viper.AutomaticEnv()
	configFile := viper.GetString(EnvConfigFilePath)

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Printf("Error loading configuration: %s\n", err)
		os.Exit(1)
	}

	privKey, err := crypto.HexToECDSA(viper.GetString(EnvPrivateKey))
	if err != nil {
		fmt.Printf("Error parsing %s: %s\n", EnvPrivateKey, err)
		os.Exit(1)
	}
	signer := evmclient.NewLocalSigner(privKey)

	evm, err := evmclient.Dial(cfg.EvmRPCURL)
	if err != nil {
		logger.Fatalf("failed to connect to the evm rpc: %v", err)
	}

	btc, err := btcrpc.NewClient(cfg.BtcRPCConfig())
	if err != nil {
		logger.Fatalf("failed to connect to the bitcoin rpc: %v", err)
	}
	defer btc.Close()

	store, err := storage.NewSQLiteStore("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Fatalf("failed to open swap store: %v", err)
	}
	defer store.Close()

	relay := btcrelay.NewClient(evm, cfg.RelayConfig())
	contract := swapcontract.NewClient(evm, relay, cfg.SwapContractConfig())
	source := swapevents.NewSource(evm, &swapevents.Config{
		ContractAddress: contract.ContractAddress(),
	})

	engine := swapengine.NewEngine(&swapengine.Params{
		Store:         store,
		Contract:      contract,
		Source:        source,
		EVM:           evm,
		Signer:        signer,
		Authorizer:    intermediary.NewClient(0),
		Verifier:      auth.NewVerifier(cfg.AuthConfig(), contract),
		Confirmations: btc,
		Config:        cfg.EngineConfig(),
	})

	engine.AddListener(func(change *swapengine.StateChange) {
		logger.WithFields(logger.Fields{
			"paymentHash": change.Swap.PaymentHash.Hex(),
			"from":        change.Old.String(),
			"to":          change.New.String(),
		}).Info("swap state changed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := source.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("event source stopped: %v", err)
		}
	}()

	if err := engine.Start(ctx); err != nil {
		logger.Fatalf("engine startup failed: %v", err)
	}

	go func() {
		rep := reporter.NewHttpReporter(cfg.ReporterIP, cfg.ReporterPort, engine)
		if err := rep.Run(); err != nil {
			logger.Errorf("reporter stopped: %v", err)
		}
	}()

	if tip, err := relay.GetTip(ctx); err == nil && tip != nil {
		logger.WithFields(logger.Fields{"height": tip.Height}).Info("relay tip")
	}

	fmt.Println("swap client running... press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
