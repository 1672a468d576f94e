package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	mW "github.com/tabsplit/backend/internal/middleware"
	"github.com/tabsplit/backend/internal/models"
	"github.com/tabsplit/backend/internal/services"
)

// DebtSyncer is the part of services.DebtSyncService the handler drives.
type DebtSyncer interface {
	AcceptIntention(ctx context.Context, callerAccountID, debtID string) (*services.AcceptResult, error)
	AcceptAllIntentions(ctx context.Context, callerAccountID string) ([]models.AcceptedDebt, error)
	ProposeIntention(ctx context.Context, callerAccountID, debtID string) (time.Time, error)
	GetIntentions(ctx context.Context, callerAccountID string) ([]services.Intention, error)
}

type DebtSyncHandler struct {
	service   DebtSyncer
	validator *services.ValidationHelper
}

func NewDebtSyncHandler(service DebtSyncer) *DebtSyncHandler {
	return &DebtSyncHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type debtPath struct {
	DebtID string `validate:"required,uuid"`
}

// AcceptIntention accepts the counterparty's proposal for one debt
// @Summary Accept Debt Proposal
// @Description Make the caller's row for a shared debt mirror the counterparty's locked proposal
// @Tags Debts
// @Produce json
// @Security BearerAuth
// @Param debtId path string true "Debt ID"
// @Success 200 {object} object{success=bool,debtId=string,createdAt=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /debts/{debtId}/accept [post]
func (h *DebtSyncHandler) AcceptIntention(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mW.AccountIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	path := debtPath{DebtID: chi.URLParam(r, "debtId")}
	if err := h.validator.ValidateStruct(&path); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.AcceptIntention(r.Context(), accountID, path.DebtID)
	if err != nil {
		services.SendSyncError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"debtId":    path.DebtID,
		"createdAt": result.CreatedAt,
	})
}

// AcceptAllIntentions accepts every eligible proposal across all connections
// @Summary Accept All Debt Proposals
// @Description Settle every debt a connected counterparty has proposed and the caller may accept
// @Tags Debts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,accepted=[]models.AcceptedDebt}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /debts/accept-all [post]
func (h *DebtSyncHandler) AcceptAllIntentions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mW.AccountIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accepted, err := h.service.AcceptAllIntentions(r.Context(), accountID)
	if err != nil {
		services.SendSyncError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"accepted": accepted,
	})
}

// ProposeIntention locks the caller's row so the counterparty can accept it
// @Summary Propose Debt
// @Description Lock the caller's row at the current time, publishing its payload as a proposal
// @Tags Debts
// @Produce json
// @Security BearerAuth
// @Param debtId path string true "Debt ID"
// @Success 200 {object} object{success=bool,debtId=string,lockedAt=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /debts/{debtId}/propose [post]
func (h *DebtSyncHandler) ProposeIntention(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mW.AccountIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	path := debtPath{DebtID: chi.URLParam(r, "debtId")}
	if err := h.validator.ValidateStruct(&path); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	lockedAt, err := h.service.ProposeIntention(r.Context(), accountID, path.DebtID)
	if err != nil {
		services.SendSyncError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"debtId":   path.DebtID,
		"lockedAt": lockedAt,
	})
}

// GetIntentions lists the proposals waiting for the caller
// @Summary List Debt Proposals
// @Description List counterparty proposals the caller may accept
// @Tags Debts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{intentions=[]services.Intention}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /debts/intentions [get]
func (h *DebtSyncHandler) GetIntentions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := mW.AccountIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	intentions, err := h.service.GetIntentions(r.Context(), accountID)
	if err != nil {
		services.SendSyncError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"intentions": intentions,
	})
}
