// internal/chains/ethereum/abi.go
package ethereum

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// CharityDonation contract ABI
const charityDonationABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "_usdcToken", "type": "address"},
			{"internalType": "address", "name": "_initialOwner", "type": "address"}
		],
		"stateMutability": "nonpayable",
		"type": "constructor"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "charityId", "type": "uint256"},
			{"indexed": false, "internalType": "string", "name": "name", "type": "string"},
			{"indexed": false, "internalType": "address", "name": "walletAddress", "type": "address"}
		],
		"name": "CharityAdded",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "charityId", "type": "uint256"}
		],
		"name": "CharityVerified",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "donationId", "type": "uint256"},
			{"indexed": true, "internalType": "address", "name": "donor", "type": "address"},
			{"indexed": true, "internalType": "uint256", "name": "charityId", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
			{"indexed": false, "internalType": "bool", "name": "isEth", "type": "bool"}
		],
		"name": "DonationMade",
		"type": "event"
	},
	{
		"inputs": [
			{"internalType": "string", "name": "_name", "type": "string"},
			{"internalType": "string", "name": "_description", "type": "string"},
			{"internalType": "address", "name": "_walletAddress", "type": "address"}
		],
		"name": "addCharity",
		"outputs": [{"internalType": "uint256", "name": "charityId", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "charityCount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "_charityId", "type": "uint256"}],
		"name": "donateEth",
		"outputs": [{"internalType": "uint256", "name": "donationId", "type": "uint256"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "_charityId", "type": "uint256"},
			{"internalType": "uint256", "name": "_amount", "type": "uint256"}
		],
		"name": "donateUsdc",
		"outputs": [{"internalType": "uint256", "name": "donationId", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "_charityId", "type": "uint256"}],
		"name": "getCharity",
		"outputs": [
			{"internalType": "string", "name": "name", "type": "string"},
			{"internalType": "string", "name": "description", "type": "string"},
			{"internalType": "address", "name": "walletAddress", "type": "address"},
			{"internalType": "bool", "name": "isVerified", "type": "bool"},
			{"internalType": "uint256", "name": "totalUsdcDonations", "type": "uint256"},
			{"internalType": "uint256", "name": "totalEthDonations", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "_donationId", "type": "uint256"}],
		"name": "getDonation",
		"outputs": [
			{"internalType": "address", "name": "donor", "type": "address"},
			{"internalType": "uint256", "name": "charityId", "type": "uint256"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "uint256", "name": "timestamp", "type": "uint256"},
			{"internalType": "bool", "name": "isEth", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getDonationCount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ERC-20 ABI for the calls a donor needs
const erc20ABI = `[
	{
		"constant": false,
		"inputs": [
			{"name": "_spender", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"payable": false,
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "_owner", "type": "address"},
			{"name": "_spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	}
]`

var (
	abiOnce       sync.Once
	donationABI   abi.ABI
	tokenABI      abi.ABI
	abiParseError error
)

func parseABIs() {
	donationABI, abiParseError = abi.JSON(strings.NewReader(charityDonationABI))
	if abiParseError != nil {
		abiParseError = fmt.Errorf("failed to parse donation ABI: %w", abiParseError)
		return
	}
	tokenABI, abiParseError = abi.JSON(strings.NewReader(erc20ABI))
	if abiParseError != nil {
		abiParseError = fmt.Errorf("failed to parse ERC-20 ABI: %w", abiParseError)
	}
}

// DonationABI returns the parsed CharityDonation ABI.
func DonationABI() (abi.ABI, error) {
	abiOnce.Do(parseABIs)
	return donationABI, abiParseError
}

// TokenABI returns the parsed ERC-20 ABI.
func TokenABI() (abi.ABI, error) {
	abiOnce.Do(parseABIs)
	return tokenABI, abiParseError
}
