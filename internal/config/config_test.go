package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "HTTP_PORT", "ETHEREUM_NETWORK", "ETHEREUM_RPC_URL", "ETHEREUM_CHAIN_ID",
		"DONATION_CONTRACT_ADDRESS", "ETHEREUM_USDC_ADDRESS", "USDC_DECIMALS",
		"PROVIDER_POLL_INTERVAL", "HISTORY_MAX_RECORDS", "HISTORY_FAILURE_THRESHOLD",
		"REDIS_ENABLED", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.HTTPPort)
	assert.Equal(t, int64(11155111), cfg.Ethereum.ChainID)
	assert.Equal(t, common.HexToAddress(defaultDonationContract), cfg.Ethereum.DonationContract)
	assert.Equal(t, common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"), cfg.Ethereum.USDCAddress)
	assert.Equal(t, int32(6), cfg.Ethereum.USDCDecimals)
	assert.Equal(t, 5*time.Second, cfg.Ethereum.PollInterval)
	assert.Equal(t, uint64(100), cfg.History.MaxRecords)
	assert.Equal(t, 5, cfg.History.FailureThreshold)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)

	network := cfg.Ethereum.Network()
	assert.Equal(t, cfg.Ethereum.ChainID, network.ChainID)
	assert.Equal(t, cfg.Ethereum.USDCAddress, network.USDC)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ETHEREUM_NETWORK", "mainnet")
	t.Setenv("ETHEREUM_USDC_ADDRESS", "")
	t.Setenv("HISTORY_MAX_RECORDS", "25")
	t.Setenv("PROVIDER_POLL_INTERVAL", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.Ethereum.ChainID)
	assert.Equal(t, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), cfg.Ethereum.USDCAddress)
	assert.Equal(t, uint64(25), cfg.History.MaxRecords)
	assert.Equal(t, 250*time.Millisecond, cfg.Ethereum.PollInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadCustomChain(t *testing.T) {
	t.Setenv("ETHEREUM_NETWORK", "anvil")
	t.Setenv("ETHEREUM_CHAIN_ID", "31337")
	t.Setenv("ETHEREUM_USDC_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(31337), cfg.Ethereum.ChainID)
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), cfg.Ethereum.USDCAddress)
}

func TestLoadCustomChainRequiresUSDCAddress(t *testing.T) {
	t.Setenv("ETHEREUM_NETWORK", "anvil")
	t.Setenv("ETHEREUM_USDC_ADDRESS", "")

	_, err := Load(zap.NewNop())
	assert.ErrorContains(t, err, "ETHEREUM_USDC_ADDRESS")
}

func TestLoadPolygonUSDC(t *testing.T) {
	tests := []struct {
		network string
		chainID int64
		usdc    string
	}{
		{"polygon", 137, "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"},
		{"mumbai", 80001, "0x9999f7Fea5938fD3b1E26A12c3f2fb024e194f97"},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			t.Setenv("ETHEREUM_NETWORK", tt.network)
			t.Setenv("ETHEREUM_USDC_ADDRESS", "")

			cfg, err := Load(zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.chainID, cfg.Ethereum.ChainID)
			assert.Equal(t, common.HexToAddress(tt.usdc), cfg.Ethereum.USDCAddress)
			assert.NotEqual(t, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), cfg.Ethereum.USDCAddress)
		})
	}
}

func TestLoadRejectsBadAddress(t *testing.T) {
	t.Setenv("DONATION_CONTRACT_ADDRESS", "not-an-address")

	_, err := Load(zap.NewNop())
	assert.Error(t, err)
}
