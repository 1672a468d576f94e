package audit

import (
	"encoding/json"
	"log"
	"time"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	DebtID    string    `json:"debt_id,omitempty"`
	AccountID string    `json:"account_id"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type AuditLogger struct {
	logger *log.Logger
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{logger: log.Default()}
}

// NewAuditLoggerTo writes events to a dedicated logger.
func NewAuditLoggerTo(logger *log.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAccept records one settled id. Branch is "insert" or "update".
func (a *AuditLogger) LogAccept(debtID, accountID, counterpartyID, branch string, lockedAt time.Time) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "ACCEPT",
		DebtID:    debtID,
		AccountID: accountID,
		Status:    "SUCCESS",
		Details: map[string]string{
			"counterparty_account": counterpartyID,
			"branch":               branch,
			"locked_at":            lockedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

func (a *AuditLogger) LogBulkAccept(accountID string, updated, created int, status string) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "ACCEPT_ALL",
		AccountID: accountID,
		Status:    status,
		Details: map[string]int{
			"updated": updated,
			"created": created,
		},
	})
}

func (a *AuditLogger) LogPropose(debtID, accountID string, lockedAt time.Time) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "PROPOSE",
		DebtID:    debtID,
		AccountID: accountID,
		Status:    "SUCCESS",
		Details:   map[string]string{"locked_at": lockedAt.UTC().Format(time.RFC3339Nano)},
	})
}

func (a *AuditLogger) LogError(debtID, accountID string, err error) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		DebtID:    debtID,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	a.logger.Printf("AUDIT: %s", string(data))
}
