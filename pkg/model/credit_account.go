package model

import "time"

// CreditAccount backs the billing gate. The dispatch engine only ever asks
// a yes/no question of it; balance bookkeeping lives elsewhere.
type CreditAccount struct {
	ActorID   string    `gorm:"primary_key" json:"actor_id"`
	Credits   int       `gorm:"default:0" json:"credits"`
	Suspended bool      `gorm:"default:false" json:"suspended"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
