package handler

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/amount"
	"github.com/ombima56/TranspaCharity/internal/chains"
	"github.com/ombima56/TranspaCharity/internal/domain"
	"github.com/ombima56/TranspaCharity/internal/usecase"
)

const (
	defaultUSDCDecimals = 6
	etherDecimals       = 18
)

type DonationHandler struct {
	uc     *usecase.DonationUsecase
	logger *zap.Logger
}

func NewDonationHandler(uc *usecase.DonationUsecase, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{uc: uc, logger: logger}
}

// WalletView is the wallet state as the UI renders it.
type WalletView struct {
	IsConnected  bool                 `json:"isConnected"`
	Account      *common.Address      `json:"account"`
	ChainID      *int64               `json:"chainId"`
	Error        string               `json:"error,omitempty"`
	ShortAccount string               `json:"shortAccount,omitempty"`
	NetworkName  string               `json:"networkName,omitempty"`
	Status       domain.SessionStatus `json:"status"`
}

func NewWalletView(state domain.WalletState, status domain.SessionStatus) WalletView {
	view := WalletView{
		IsConnected: state.IsConnected,
		Account:     state.Account,
		ChainID:     state.ChainID,
		Error:       state.Error,
		Status:      status,
	}
	if state.Account != nil {
		view.ShortAccount = domain.ShortAddress(*state.Account)
	}
	if state.ChainID != nil {
		view.NetworkName = chains.NetworkName(*state.ChainID)
	}
	return view
}

type charityView struct {
	domain.Charity
	ShortWallet string `json:"shortWallet"`
	TotalUSDC   string `json:"totalUsdc"`
	TotalETH    string `json:"totalEth"`
}

type networkView struct {
	ChainID          int64          `json:"chainId"`
	Name             string         `json:"name"`
	DonationContract common.Address `json:"donationContract"`
	USDC             common.Address `json:"usdc"`
	USDCDecimals     int32          `json:"usdcDecimals"`
}

type donateRequest struct {
	CharityID *uint64 `json:"charityId"`
	Amount    string  `json:"amount"`
	AmountWei string  `json:"amountWei"`
}

// GET /wallet/state
func (h *DonationHandler) GetState(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, NewWalletView(h.uc.GetState(), h.uc.Status()))
}

// POST /wallet/initialize
func (h *DonationHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	state, err := h.uc.Initialize(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, NewWalletView(state, h.uc.Status()))
}

// POST /wallet/connect
func (h *DonationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	state, err := h.uc.ConnectWallet(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, NewWalletView(state, h.uc.Status()))
}

// POST /wallet/disconnect
func (h *DonationHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	state := h.uc.DisconnectWallet()
	JSON(w, http.StatusOK, NewWalletView(state, h.uc.Status()))
}

// GET /network
func (h *DonationHandler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := h.uc.Network()
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, networkView{
		ChainID:          network.ChainID,
		Name:             network.Name,
		DonationContract: network.DonationContract,
		USDC:             network.USDC,
		USDCDecimals:     network.USDCDecimals,
	})
}

// GET /charities
func (h *DonationHandler) GetCharities(w http.ResponseWriter, r *http.Request) {
	charities, err := h.uc.GetCharities(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	decimals := int32(defaultUSDCDecimals)
	if network, err := h.uc.Network(); err == nil && network.USDCDecimals > 0 {
		decimals = network.USDCDecimals
	}

	views := make([]charityView, 0, len(charities))
	for _, c := range charities {
		views = append(views, charityView{
			Charity:     c,
			ShortWallet: domain.ShortAddress(c.WalletAddress),
			TotalUSDC:   amount.FromSmallestUnit(c.TotalUSDCDonations, decimals),
			TotalETH:    amount.FromSmallestUnit(c.TotalETHDonations, etherDecimals),
		})
	}
	JSON(w, http.StatusOK, views)
}

// GET /donations
func (h *DonationHandler) GetDonations(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.uc.GetDonations(r.Context()))
}

// POST /donations/usdc
func (h *DonationHandler) DonateUSDC(w http.ResponseWriter, r *http.Request) {
	var req donateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.CharityID == nil || req.Amount == "" {
		Error(w, http.StatusBadRequest, "charityId and amount are required")
		return
	}

	res, err := h.uc.DonateUSDCAmount(r.Context(), *req.CharityID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// POST /donations/eth
func (h *DonationHandler) DonateETH(w http.ResponseWriter, r *http.Request) {
	var req donateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.CharityID == nil || (req.Amount == "" && req.AmountWei == "") {
		Error(w, http.StatusBadRequest, "charityId and amount or amountWei are required")
		return
	}

	var (
		res *usecase.DonationResult
		err error
	)
	if req.AmountWei != "" {
		wei, ok := new(big.Int).SetString(req.AmountWei, 10)
		if !ok {
			Error(w, http.StatusBadRequest, "amountWei must be a base 10 integer")
			return
		}
		res, err = h.uc.DonateETH(r.Context(), *req.CharityID, wei)
	} else {
		res, err = h.uc.DonateETHAmount(r.Context(), *req.CharityID, req.Amount)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *DonationHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP statuses.
func (h *DonationHandler) writeError(w http.ResponseWriter, err error) {
	var txErr *domain.TxError
	switch {
	case errors.As(err, &txErr):
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrUserRejected) {
			status = http.StatusForbidden
		}
		ErrorWithData(w, status, err.Error(), map[string]interface{}{
			"phase":            txErr.Phase,
			"allowanceGranted": txErr.AllowanceGranted,
		})
	case errors.Is(err, domain.ErrUserRejected):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		Error(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrNotInitialized):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidCharity):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrContractUnreachable):
		Error(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("Request failed", zap.Error(err))
		Error(w, http.StatusInternalServerError, err.Error())
	}
}
