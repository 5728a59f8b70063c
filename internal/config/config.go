// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

const defaultDonationContract = "0x394e2ab891c397923c4d8c65e6cc735fdc8c457d"

type Config struct {
	App      AppConfig
	Ethereum EthereumConfig
	History  HistoryConfig
	Redis    RedisConfig
	CORS     CORSConfig
}

type AppConfig struct {
	Env      string // development, production
	HTTPPort string
}

type EthereumConfig struct {
	NetworkName      string // mainnet, goerli, sepolia, polygon, mumbai
	RPCURL           string // wallet endpoint that holds the keys
	ChainID          int64
	DonationContract common.Address
	USDCAddress      common.Address
	USDCDecimals     int32

	PollInterval        time.Duration
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

type HistoryConfig struct {
	MaxRecords       uint64
	FailureThreshold int
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	StateKey     string
	StateChannel string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load(logger *zap.Logger) (*Config, error) {
	// ============================================================================
	// Ethereum Configuration
	// ============================================================================
	ethNetwork := getEnv("ETHEREUM_NETWORK", "sepolia")
	ethRPCURL := getEnv("ETHEREUM_RPC_URL", "http://127.0.0.1:8545")

	// Chain ID based on network
	var ethChainID int64
	switch ethNetwork {
	case "mainnet":
		ethChainID = 1
	case "goerli":
		ethChainID = 5
	case "sepolia":
		ethChainID = 11155111
	case "polygon":
		ethChainID = 137
	case "mumbai":
		ethChainID = 80001
	default:
		ethChainID = getEnvAsInt64("ETHEREUM_CHAIN_ID", 11155111) // Default to Sepolia
	}

	// USDC contract address based on network
	ethUSDCAddress := getEnv("ETHEREUM_USDC_ADDRESS", "")
	if ethUSDCAddress == "" {
		switch ethNetwork {
		case "goerli":
			ethUSDCAddress = "0x07865c6E87B9F70255377e024ace6630C1Eaa37F" // Goerli USDC
		case "sepolia":
			ethUSDCAddress = "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238" // Sepolia USDC
		case "polygon":
			ethUSDCAddress = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359" // Polygon native USDC
		case "mumbai":
			ethUSDCAddress = "0x9999f7Fea5938fD3b1E26A12c3f2fb024e194f97" // Mumbai USDC
		case "mainnet":
			ethUSDCAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48" // Mainnet USDC
		default:
			return nil, fmt.Errorf("ETHEREUM_USDC_ADDRESS is required for network %q", ethNetwork)
		}
	}

	donationContract := getEnv("DONATION_CONTRACT_ADDRESS", defaultDonationContract)

	if !common.IsHexAddress(donationContract) {
		return nil, fmt.Errorf("invalid DONATION_CONTRACT_ADDRESS: %q", donationContract)
	}
	if !common.IsHexAddress(ethUSDCAddress) {
		return nil, fmt.Errorf("invalid ETHEREUM_USDC_ADDRESS: %q", ethUSDCAddress)
	}

	usdcDecimals := getEnvAsInt64("USDC_DECIMALS", 6)
	if usdcDecimals < 0 || usdcDecimals > 77 {
		return nil, fmt.Errorf("invalid USDC_DECIMALS: %d", usdcDecimals)
	}

	cfg := &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			HTTPPort: getEnv("HTTP_PORT", "8080"),
		},
		Ethereum: EthereumConfig{
			NetworkName:         ethNetwork,
			RPCURL:              ethRPCURL,
			ChainID:             ethChainID,
			DonationContract:    common.HexToAddress(donationContract),
			USDCAddress:         common.HexToAddress(ethUSDCAddress),
			USDCDecimals:        int32(usdcDecimals),
			PollInterval:        getEnvAsDuration("PROVIDER_POLL_INTERVAL", 5*time.Second),
			ReceiptPollInterval: getEnvAsDuration("RECEIPT_POLL_INTERVAL", 2*time.Second),
			ReceiptTimeout:      getEnvAsDuration("RECEIPT_TIMEOUT", 3*time.Minute),
		},
		History: HistoryConfig{
			MaxRecords:       uint64(max(getEnvAsInt64("HISTORY_MAX_RECORDS", 100), 1)),
			FailureThreshold: int(max(getEnvAsInt64("HISTORY_FAILURE_THRESHOLD", 5), 1)),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           int(getEnvAsInt64("REDIS_DB", 0)),
			StateKey:     getEnv("REDIS_STATE_KEY", "wallet:state"),
			StateChannel: getEnv("REDIS_STATE_CHANNEL", "wallet:state:updates"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.App.Env),
		zap.String("network", cfg.Ethereum.NetworkName),
		zap.Int64("chain_id", cfg.Ethereum.ChainID),
		zap.String("donation_contract", cfg.Ethereum.DonationContract.Hex()),
		zap.Bool("redis_enabled", cfg.Redis.Enabled))

	return cfg, nil
}

// Network returns the donation deployment described by the config.
func (c EthereumConfig) Network() domain.Network {
	return domain.Network{
		ChainID:          c.ChainID,
		DonationContract: c.DonationContract,
		USDC:             c.USDCAddress,
		USDCDecimals:     c.USDCDecimals,
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
