package gating

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/flashflow/flashflow/pkg/model"
)

// CreditGate answers the yes/no "may this actor take or advance work"
// question from the billing store. Unknown actors are allowed: gating only
// blocks accounts the billing system has explicitly flagged.
type CreditGate struct {
	db *gorm.DB
}

func NewCreditGate(db *gorm.DB) *CreditGate {
	return &CreditGate{db: db}
}

func (g *CreditGate) CanAct(ctx context.Context, actorID string, isAdmin bool) (bool, error) {
	if isAdmin {
		return true, nil
	}

	var account model.CreditAccount
	err := g.db.WithContext(ctx).First(&account, "actor_id = ?", actorID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, err
	}

	if account.Suspended {
		return false, nil
	}
	return account.Credits > 0, nil
}
