package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClassDirectory reads class definitions owned by the class-management system
type ClassDirectory interface {
	// GetClass returns a class by ID, or ErrClassNotFound
	GetClass(ctx context.Context, id uuid.UUID) (*Class, error)

	// GetClasses returns the classes for the given IDs keyed by ID.
	// Missing IDs are simply absent from the map.
	GetClasses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Class, error)
}

// StudentDirectory answers whether a student exists
type StudentDirectory interface {
	StudentExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// CardRegistry reads cards issued by the card-issuance collaborator
type CardRegistry interface {
	// GetActiveCard returns the card valid at the given time for the pair, or nil
	GetActiveCard(ctx context.Context, studentID, classID uuid.UUID, at time.Time) (*Card, error)
}

// PromoCodeRepository looks up promo codes
type PromoCodeRepository interface {
	// FindByCode returns the promo code, or nil if it does not exist
	FindByCode(ctx context.Context, code string) (*PromoCode, error)
}
