package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/tabsplit/backend/internal/models"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error     string                `json:"error"`               // Error message
	Reason    Reason                `json:"reason,omitempty"`    // Machine-readable cause
	DebtID    string                `json:"debtId,omitempty"`    // Debt the error is about
	Details   map[string]string     `json:"details,omitempty"`   // Validation details
	Committed []models.AcceptedDebt `json:"committed,omitempty"` // Debts stored before a bulk accept failed
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	errorResp := ErrorResponse{Error: message}

	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	writeError(w, statusCode, errorResp)
}

// SendSyncError maps an error from the sync core to its HTTP status.
// Unknown errors are storage failures and are not echoed to the client.
func SendSyncError(w http.ResponseWriter, err error) {
	var syncErr *SyncError
	var phaseErr *PhaseError

	switch {
	case errors.As(err, &syncErr):
		writeError(w, syncStatus(syncErr.Kind), ErrorResponse{
			Error:  syncErr.Message,
			Reason: syncErr.Reason,
			DebtID: syncErr.DebtID,
		})
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, ErrorResponse{Error: "Too many accept requests"})
	case errors.As(err, &phaseErr):
		log.Printf("[DEBT_SYNC] %v", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{
			Error:     fmt.Sprintf("Failed to accept debts (%s phase)", phaseErr.Phase),
			Committed: phaseErr.Committed,
		})
	default:
		log.Printf("[DEBT_SYNC] Storage failure: %v", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

func syncStatus(kind error) int {
	switch kind {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden, ErrAlreadySynced:
		return http.StatusForbidden
	case ErrNothingToAccept:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
