package models

import "time"

type Account struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Contact is a person reference owned by one account. ConnectedAccountID is set
// when the contact is linked to another account.
type Contact struct {
	ID                 string    `json:"id" db:"id"`
	OwnerAccountID     string    `json:"ownerAccountId" db:"owner_account_id"`
	ConnectedAccountID *string   `json:"connectedAccountId,omitempty" db:"connected_account_id"`
	Name               string    `json:"name" db:"name"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
}
