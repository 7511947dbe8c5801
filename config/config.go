package config

import (
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/lnswap-io/swapclient-go/auth"
	"github.com/lnswap-io/swapclient-go/btcrelay"
	"github.com/lnswap-io/swapclient-go/btcrpc"
	"github.com/lnswap-io/swapclient-go/swapcontract"
	"github.com/lnswap-io/swapclient-go/swapengine"
)

// AppConfig is the flat file/env configuration the per-package Config
// structs are derived from.
type AppConfig struct {
	EvmRPCURL string `mapstructure:"evm_rpc_url"`

	BtcRPCHost string `mapstructure:"btc_rpc_host"`
	BtcRPCPort string `mapstructure:"btc_rpc_port"`
	BtcRPCUser string `mapstructure:"btc_rpc_user"`
	BtcRPCPass string `mapstructure:"btc_rpc_pass"`

	RelayContract    string `mapstructure:"relay_contract"`
	RelayDeployBlock uint64 `mapstructure:"relay_deploy_block"`
	LogBlocksLimit   uint64 `mapstructure:"log_blocks_limit"`

	SwapContract string `mapstructure:"swap_contract"`

	AuthGracePeriodSec   uint64 `mapstructure:"auth_grace_period_sec"`
	ClaimGracePeriodSec  uint64 `mapstructure:"claim_grace_period_sec"`
	RefundGracePeriodSec uint64 `mapstructure:"refund_grace_period_sec"`

	MaxConcurrentRequests int   `mapstructure:"max_concurrent_requests"`
	MaxAllowedFeeDiffPPM  int64 `mapstructure:"max_allowed_fee_diff_ppm"`

	DBPath string `mapstructure:"db_path"`

	ReporterIP   string `mapstructure:"reporter_ip"`
	ReporterPort string `mapstructure:"reporter_port"`
}

// Load reads the config file (yaml) with SWAPCLIENT_* env overrides.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.SetDefault("log_blocks_limit", btcrelay.DefaultLogBlocksLimit)
	v.SetDefault("auth_grace_period_sec", 300)
	v.SetDefault("claim_grace_period_sec", 600)
	v.SetDefault("refund_grace_period_sec", 600)
	v.SetDefault("max_concurrent_requests", swapengine.DefaultMaxConcurrentRequests)
	v.SetDefault("max_allowed_fee_diff_ppm", 10_000)
	v.SetDefault("db_path", "swaps.db")
	v.SetDefault("reporter_ip", "127.0.0.1")
	v.SetDefault("reporter_port", "8080")

	v.SetEnvPrefix("SWAPCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		logger.WithFields(logger.Fields{"file": v.ConfigFileUsed()}).Info("loaded config")
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) BtcRPCConfig() *btcrpc.Config {
	return &btcrpc.Config{
		ServerAddr: c.BtcRPCHost,
		Port:       c.BtcRPCPort,
		Username:   c.BtcRPCUser,
		Pwd:        c.BtcRPCPass,
	}
}

func (c *AppConfig) RelayConfig() *btcrelay.Config {
	return &btcrelay.Config{
		ContractAddress:     ethcommon.HexToAddress(c.RelayContract),
		ContractDeployBlock: c.RelayDeployBlock,
		LogBlocksLimit:      c.LogBlocksLimit,
	}
}

func (c *AppConfig) SwapContractConfig() *swapcontract.Config {
	return &swapcontract.Config{
		ContractAddress:   ethcommon.HexToAddress(c.SwapContract),
		RefundGracePeriod: time.Duration(c.RefundGracePeriodSec) * time.Second,
		ClaimGracePeriod:  time.Duration(c.ClaimGracePeriodSec) * time.Second,
	}
}

func (c *AppConfig) AuthConfig() auth.Config {
	return auth.Config{
		AuthGracePeriod:  time.Duration(c.AuthGracePeriodSec) * time.Second,
		ClaimGracePeriod: time.Duration(c.ClaimGracePeriodSec) * time.Second,
	}
}

func (c *AppConfig) EngineConfig() *swapengine.Config {
	return &swapengine.Config{
		MaxConcurrentRequests: c.MaxConcurrentRequests,
	}
}
