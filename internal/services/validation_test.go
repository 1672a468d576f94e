package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabsplit/backend/internal/models"
)

type TestStruct struct {
	DebtID   string `validate:"required,uuid"`
	Currency string `validate:"required,len=3"`
	Limit    int    `validate:"required,gte=1"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := TestStruct{
			DebtID:   "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
			Currency: "USD",
			Limit:    25,
		}

		err := vh.ValidateStruct(&valid)
		assert.NoError(t, err)
	})

	t.Run("invalid struct - missing required fields", func(t *testing.T) {
		invalid := TestStruct{
			Currency: "US", // Too short
			// DebtID missing
			Limit: -1,
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3) // DebtID, Currency, Limit errors
	})

	t.Run("invalid debt id format", func(t *testing.T) {
		invalid := TestStruct{
			DebtID:   "not-a-uuid",
			Currency: "USD",
			Limit:    25,
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "DebtID", validationErrors[0].Field())
		assert.Equal(t, "uuid", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		invalid := TestStruct{
			DebtID:   "invalid",
			Currency: "DOLLARS",
			Limit:    0,
		}

		validationErr := vh.ValidateStruct(&invalid)
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.NotNil(t, response.Details)
		assert.Contains(t, response.Details, "DebtID")
		assert.Contains(t, response.Details, "Currency")
		assert.Contains(t, response.Details, "Limit")
	})

	t.Run("bad request error", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Invalid request", response.Error)
	})

	t.Run("unauthorized error", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Unauthorized access", http.StatusUnauthorized, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Unauthorized access", response.Error)
	})
}

func TestNewValidationHelper(t *testing.T) {
	vh := NewValidationHelper()
	assert.NotNil(t, vh)
	assert.NotNil(t, vh.validator)
}

func TestErrorResponse_Structure(t *testing.T) {
	t.Run("error response structure", func(t *testing.T) {
		errorResp := ErrorResponse{
			Error: "Test error",
			Details: map[string]string{
				"field1": "validation error 1",
				"field2": "validation error 2",
			},
		}

		jsonData, err := json.Marshal(errorResp)
		assert.NoError(t, err)

		var unmarshaled ErrorResponse
		err = json.Unmarshal(jsonData, &unmarshaled)
		assert.NoError(t, err)
		assert.Equal(t, "Test error", unmarshaled.Error)
		assert.Equal(t, "validation error 1", unmarshaled.Details["field1"])
		assert.Equal(t, "validation error 2", unmarshaled.Details["field2"])
	})

	t.Run("error response without details", func(t *testing.T) {
		errorResp := ErrorResponse{
			Error: "Simple error",
		}

		jsonData, err := json.Marshal(errorResp)
		assert.NoError(t, err)

		var unmarshaled ErrorResponse
		err = json.Unmarshal(jsonData, &unmarshaled)
		assert.NoError(t, err)
		assert.Equal(t, "Simple error", unmarshaled.Error)
		assert.Nil(t, unmarshaled.Details)
	})
}

func TestSendSyncError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason Reason
		wantError  string
	}{
		{
			name:       "no counterparty",
			err:        notFound("D1", ReasonNoCounterparty, "no counterparty proposal for this debt"),
			wantStatus: http.StatusNotFound,
			wantReason: ReasonNoCounterparty,
			wantError:  "no counterparty proposal for this debt",
		},
		{
			name:       "forbidden",
			err:        forbidden("D1", ReasonCounterpartyShouldAccept, "your proposal is newer"),
			wantStatus: http.StatusForbidden,
			wantReason: ReasonCounterpartyShouldAccept,
			wantError:  "your proposal is newer",
		},
		{
			name:       "already synced",
			err:        alreadySynced("D1", "debt is already in sync"),
			wantStatus: http.StatusForbidden,
			wantReason: ReasonAlreadySynced,
			wantError:  "debt is already in sync",
		},
		{
			name:       "nothing to accept",
			err:        &SyncError{Kind: ErrNothingToAccept, Reason: ReasonNothingEligible, Message: "no debts to accept"},
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonNothingEligible,
			wantError:  "no debts to accept",
		},
		{
			name:       "rate limited",
			err:        ErrRateLimited,
			wantStatus: http.StatusTooManyRequests,
			wantError:  "Too many accept requests",
		},
		{
			name:       "create phase failed",
			err:        &PhaseError{Phase: "create", Err: errors.New("insert failed")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to accept debts (create phase)",
		},
		{
			name:       "storage failure is not echoed",
			err:        fmt.Errorf("storage failure: %w", errors.New("pq: password authentication failed")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			SendSyncError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response ErrorResponse
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.wantError, response.Error)
			assert.Equal(t, tt.wantReason, response.Reason)
		})
	}

	t.Run("create phase failure lists committed updates", func(t *testing.T) {
		updatedAt := time.Date(2026, 7, 2, 8, 0, 0, 0, time.UTC)
		w := httptest.NewRecorder()

		SendSyncError(w, &PhaseError{
			Phase:     "create",
			Committed: []models.AcceptedDebt{{ID: "D1", CreatedAt: updatedAt}, {ID: "D2", CreatedAt: updatedAt}},
			Err:       errors.New("insert failed"),
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Committed, 2)
		assert.Equal(t, "D1", response.Committed[0].ID)
		assert.Equal(t, "D2", response.Committed[1].ID)
		assert.True(t, updatedAt.Equal(response.Committed[0].CreatedAt))
	})

	t.Run("update phase failure commits nothing", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendSyncError(w, &PhaseError{Phase: "update", Err: errors.New("conflict")})

		assert.NotContains(t, w.Body.String(), "committed")
	})
}
