// Package profile maps wallet profiles onto the document store. One document
// per wallet in the "users" collection, keyed by the lowercased address.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradegate/internal/auth/models"
	"tradegate/internal/docstore"
	"tradegate/pkg/platform/sentinel"
)

// Collection holds one document per wallet.
const Collection = "users"

const (
	fieldAddress              = "address"
	fieldEmail                = "email"
	fieldTradingLevel         = "tradingLevel"
	fieldAccountType          = "accountType"
	fieldIsOnboardingComplete = "isOnboardingComplete"
	fieldCreatedAt            = "createdAt"
	fieldLastSeen             = "lastSeen"
)

// Store is the profile repository.
type Store struct {
	docs       docstore.Store
	collection string
}

func New(docs docstore.Store) *Store {
	return &Store{docs: docs, collection: Collection}
}

// Find loads the profile for address. Absent profiles return
// sentinel.ErrNotFound.
func (s *Store) Find(ctx context.Context, address string) (*models.Profile, error) {
	address = strings.ToLower(address)
	doc, err := s.docs.Get(ctx, s.collection, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile %s: %w", address, err)
	}
	return fromDocument(address, doc), nil
}

// Create writes a new profile document.
func (s *Store) Create(ctx context.Context, p *models.Profile) error {
	if err := s.docs.Set(ctx, s.collection, p.Address, toDocument(p), docstore.SetOptions{}); err != nil {
		return fmt.Errorf("create profile %s: %w", p.Address, err)
	}
	return nil
}

// Touch records a visit without touching any other field.
func (s *Store) Touch(ctx context.Context, address string, lastSeen time.Time) error {
	fields := docstore.Document{fieldLastSeen: lastSeen.UnixMilli()}
	if err := s.docs.Set(ctx, s.collection, address, fields, docstore.SetOptions{Merge: true}); err != nil {
		return fmt.Errorf("touch profile %s: %w", address, err)
	}
	return nil
}

// CompleteOnboarding persists every onboarding field in one merge write so
// the completion flag is never stored without its level and account type.
func (s *Store) CompleteOnboarding(ctx context.Context, p *models.Profile) error {
	fields := docstore.Document{
		fieldTradingLevel:         p.TradingLevel.String(),
		fieldAccountType:          p.AccountType.String(),
		fieldIsOnboardingComplete: p.IsOnboardingComplete,
		fieldLastSeen:             p.LastSeen.UnixMilli(),
		fieldCreatedAt:            p.CreatedAt.UnixMilli(),
	}
	if err := s.docs.Set(ctx, s.collection, p.Address, fields, docstore.SetOptions{Merge: true}); err != nil {
		return fmt.Errorf("complete onboarding %s: %w", p.Address, err)
	}
	return nil
}

func toDocument(p *models.Profile) docstore.Document {
	doc := docstore.Document{
		fieldAddress:              p.Address,
		fieldIsOnboardingComplete: p.IsOnboardingComplete,
		fieldCreatedAt:            p.CreatedAt.UnixMilli(),
		fieldLastSeen:             p.LastSeen.UnixMilli(),
	}
	if p.Email != "" {
		doc[fieldEmail] = p.Email
	}
	if p.TradingLevel != "" {
		doc[fieldTradingLevel] = p.TradingLevel.String()
	}
	if p.AccountType != "" {
		doc[fieldAccountType] = p.AccountType.String()
	}
	return doc
}

func fromDocument(address string, doc docstore.Document) *models.Profile {
	p := &models.Profile{
		Address:              address,
		Email:                doc.String(fieldEmail),
		TradingLevel:         models.TradingLevel(doc.String(fieldTradingLevel)),
		AccountType:          models.AccountType(doc.String(fieldAccountType)),
		IsOnboardingComplete: doc.Bool(fieldIsOnboardingComplete),
	}
	if a := doc.String(fieldAddress); a != "" {
		p.Address = strings.ToLower(a)
	}
	if ms, ok := doc.Int64(fieldCreatedAt); ok {
		p.CreatedAt = time.UnixMilli(ms)
	}
	if ms, ok := doc.Int64(fieldLastSeen); ok {
		p.LastSeen = time.UnixMilli(ms)
	}
	return p
}
