package models

import "time"

// ReminderRecord tracks an op-bridge withdrawal until it is claimed.
type ReminderRecord struct {
	ChainID     string    `json:"chain_id"`
	TxHash      string    `json:"tx_hash"`
	Recipient   string    `json:"recipient"`
	ClaimableAt time.Time `json:"claimable_at"`
	Amount      string    `json:"amount"`
	Denom       string    `json:"denom"`
	Dismissed   bool      `json:"dismissed,omitempty"`
}

// Key identifies a record across updates.
func (r ReminderRecord) Key() string {
	return r.ChainID + ":" + r.TxHash
}

// Actionable reports whether the record should be shown to the connected address at now.
func (r ReminderRecord) Actionable(connected string, now time.Time) bool {
	if r.Dismissed || r.Recipient != connected {
		return false
	}
	return !now.Before(r.ClaimableAt)
}
