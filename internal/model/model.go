// Package model defines domain entities shared by the server and the client core.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"

	"costtracker/internal/money"
)

// Session is the live authenticated identity driving which namespace is active.
type Session struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
}

// CostItemFields are the caller-supplied fields of a cost item; the id is
// always store-assigned.
type CostItemFields struct {
	Name string      `json:"name"`
	Cost money.Cents `json:"cost_cents"`
}

// CostItem is a project expense under the "items" collection.
type CostItem struct {
	ID uuid.UUID `json:"id"`
	CostItemFields
}

// RecordID returns the store-assigned identifier.
func (i CostItem) RecordID() uuid.UUID { return i.ID }

// OtherCostFields are the caller-supplied fields of a miscellaneous cost.
type OtherCostFields struct {
	Description string      `json:"description"`
	Amount      money.Cents `json:"amount_cents"`
}

// OtherCost is a miscellaneous expense under the "otherCosts" collection.
type OtherCost struct {
	ID uuid.UUID `json:"id"`
	OtherCostFields
}

// RecordID returns the store-assigned identifier.
func (c OtherCost) RecordID() uuid.UUID { return c.ID }

// Totals is the derived cost summary. Recomputed from the projections on
// every read, never cached.
type Totals struct {
	Items      money.Cents
	OtherCosts money.Cents
	Grand      money.Cents
}

// User represents an account stored on the server. Passwords are stored as
// Argon2id hashes with a per-user salt.
type User struct {
	ID          uuid.UUID // PK
	Email       string    // unique
	DisplayName string
	PwdHash     []byte
	SaltAuth    []byte
	CreatedAt   time.Time
}

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Document is a raw record of the per-user document store: an opaque JSON
// object plus its store-assigned id.
type Document struct {
	ID  uuid.UUID
	Doc json.RawMessage
}
