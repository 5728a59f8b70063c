// internal/domain/charity.go
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Charity is a beneficiary registered on the donation contract.
// ID is the contract-assigned index.
type Charity struct {
	ID                 uint64         `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	WalletAddress      common.Address `json:"walletAddress"`
	IsVerified         bool           `json:"isVerified"`
	TotalUSDCDonations *big.Int       `json:"totalUsdcDonations"`
	TotalETHDonations  *big.Int       `json:"totalEthDonations"`
}

// DonationRecord is a single on-chain donation. Amount is in the smallest
// unit of the donated asset, Timestamp in unix seconds.
type DonationRecord struct {
	ID        uint64         `json:"id"`
	Donor     common.Address `json:"donor"`
	CharityID uint64         `json:"charityId"`
	Amount    *big.Int       `json:"amount"`
	Timestamp int64          `json:"timestamp"`
	IsETH     bool           `json:"isEth"`
}

// Asset describes a donation currency.
type Asset struct {
	Symbol       string
	ContractAddr *common.Address // nil for the native coin
	Decimals     int32
	Type         AssetType
}

type AssetType string

const (
	AssetTypeNative AssetType = "native"
	AssetTypeToken  AssetType = "token"
)

// Network is a chain the donation contract is deployed on.
type Network struct {
	ChainID          int64
	Name             string
	DonationContract common.Address
	USDC             common.Address
	USDCDecimals     int32
}
