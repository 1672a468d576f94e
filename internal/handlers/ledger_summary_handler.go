package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	mW "github.com/tabsplit/backend/internal/middleware"
	"github.com/tabsplit/backend/internal/models"
	"github.com/tabsplit/backend/internal/services"
)

type LedgerSummarizer interface {
	GetLedgerSummary(ctx context.Context, callerAccountID string) ([]models.SumView, error)
	GetLedgerSummaryByContact(ctx context.Context, callerAccountID, contactID string) ([]models.SumView, error)
	GetLedgerSummaryByContacts(ctx context.Context, callerAccountID string) ([]models.ContactSumView, error)
}

type LedgerSummaryHandler struct {
	service   LedgerSummarizer
	validator *services.ValidationHelper
}

func NewLedgerSummaryHandler(service LedgerSummarizer) *LedgerSummaryHandler {
	return &LedgerSummaryHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GetLedgerSummary returns the caller's totals per currency
// @Summary Ledger Summary
// @Description Sum the caller's debts per currency across all contacts. Zero totals are included.
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{sums=[]models.SumView}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /ledger/summary [get]
func (h *LedgerSummaryHandler) GetLedgerSummary(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mW.AccountIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	sums, err := h.service.GetLedgerSummary(r.Context(), accountID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to load ledger summary", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sums": sums,
	})
}

// GetLedgerSummaryByContacts returns the caller's totals for every contact
// @Summary Ledger Summary By Contacts
// @Description Sum the caller's debts per contact and currency in one read
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{contacts=[]models.ContactSumView}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /ledger/summary/contacts [get]
func (h *LedgerSummaryHandler) GetLedgerSummaryByContacts(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mW.AccountIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	contacts, err := h.service.GetLedgerSummaryByContacts(r.Context(), accountID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to load ledger summary", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"contacts": contacts,
	})
}

// GetLedgerSummaryByContact returns the caller's totals with one contact
// @Summary Ledger Summary By Contact
// @Description Sum the caller's debts with one contact per currency. A settled currency shows a zero sum.
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param contactId path string true "Contact ID"
// @Success 200 {object} object{contactId=string,sums=[]models.SumView}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /ledger/summary/contacts/{contactId} [get]
func (h *LedgerSummaryHandler) GetLedgerSummaryByContact(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mW.AccountIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	path := struct {
		ContactID string `validate:"required,uuid"`
	}{ContactID: chi.URLParam(r, "contactId")}
	if err := h.validator.ValidateStruct(&path); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sums, err := h.service.GetLedgerSummaryByContact(r.Context(), accountID, path.ContactID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to load ledger summary", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"contactId": path.ContactID,
		"sums":      sums,
	})
}
