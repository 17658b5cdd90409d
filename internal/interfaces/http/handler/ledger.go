package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	accountapp "fraud-ledger/internal/application/account"
	"fraud-ledger/internal/application/dto"
	txapp "fraud-ledger/internal/application/transaction"
)

// LedgerHandler handles account and transaction HTTP requests
type LedgerHandler struct {
	accounts     *accountapp.UseCase
	submit       *txapp.SubmitTransactionUseCase
	transactions *txapp.QueryUseCase
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(
	accounts *accountapp.UseCase,
	submit *txapp.SubmitTransactionUseCase,
	transactions *txapp.QueryUseCase,
) *LedgerHandler {
	return &LedgerHandler{
		accounts:     accounts,
		submit:       submit,
		transactions: transactions,
	}
}

// CreateAccount handles POST /api/v1/accounts
func (h *LedgerHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), &req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// GetAccount handles GET /api/v1/accounts/{accountID}
func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "accountID"), 10)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// SubmitTransaction handles POST /api/v1/accounts/{accountID}/transactions
func (h *LedgerHandler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	req.AccountID = chi.URLParam(r, "accountID")

	txn, err := h.submit.Execute(r.Context(), &req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// RecordLogin handles POST /api/v1/accounts/{accountID}/logins
func (h *LedgerHandler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordLoginRequest
	if !decode(w, r, &req) {
		return
	}
	req.AccountID = chi.URLParam(r, "accountID")

	evt, err := h.accounts.RecordLogin(r.Context(), &req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, evt)
}

// ChangeDevice handles POST /api/v1/accounts/{accountID}/devices
func (h *LedgerHandler) ChangeDevice(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangeDeviceRequest
	if !decode(w, r, &req) {
		return
	}
	req.AccountID = chi.URLParam(r, "accountID")

	evt, err := h.accounts.ChangeDevice(r.Context(), &req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, evt)
}

// ChangeLocation handles POST /api/v1/accounts/{accountID}/locations
func (h *LedgerHandler) ChangeLocation(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangeLocationRequest
	if !decode(w, r, &req) {
		return
	}
	req.AccountID = chi.URLParam(r, "accountID")

	evt, err := h.accounts.ChangeLocation(r.Context(), &req)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, evt)
}

// GetTransaction handles GET /api/v1/transactions/{transactionID}
func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.transactions.GetTransaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, txn)
}

// ListFlagged handles GET /api/v1/transactions/flagged
func (h *LedgerHandler) ListFlagged(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 50, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flagged, err := h.transactions.ListFlagged(r.Context(), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, flagged)
}
