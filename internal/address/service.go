package address

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

// SaveRequest carries a new or edited shipping address.
type SaveRequest struct {
	Title      string  `json:"title" validate:"required,max=60"`
	FullName   string  `json:"full_name" validate:"required,max=120"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      *string `json:"state,omitempty" validate:"omitempty,max=100"`
	PostalCode string  `json:"postal_code" validate:"required,max=20"`
	Country    string  `json:"country" validate:"required,len=2"`
	IsDefault  bool    `json:"is_default"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the behavior needed by the address controller.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, req SaveRequest) (*models.Address, error)
	Update(ctx context.Context, userID, addressID uuid.UUID, req SaveRequest) (*models.Address, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) error
}

type service struct {
	repo     Repository
	txRunner txRunner
}

// ServiceParams bundles the dependencies for the address service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
}

// NewService constructs an address service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "address repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		txRunner: params.TransactionRunner,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	addrs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	return addrs, nil
}

func (s *service) Get(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	return s.findOwned(ctx, s.repo, userID, addressID)
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req SaveRequest) (*models.Address, error) {
	addr := s.fromRequest(userID, req)
	addr.ID = uuid.New()

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if addr.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
			}
		}
		if _, err := repo.Create(ctx, addr); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *service) Update(ctx context.Context, userID, addressID uuid.UUID, req SaveRequest) (*models.Address, error) {
	var updated *models.Address
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := s.findOwned(ctx, repo, userID, addressID)
		if err != nil {
			return err
		}

		next := s.fromRequest(userID, req)
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt

		if next.IsDefault && !existing.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
			}
		}

		updates := map[string]any{
			"title":       next.Title,
			"full_name":   next.FullName,
			"phone":       next.Phone,
			"line1":       next.Line1,
			"line2":       next.Line2,
			"city":        next.City,
			"state":       next.State,
			"postal_code": next.PostalCode,
			"country":     next.Country,
			"is_default":  next.IsDefault,
		}
		if err := repo.Update(ctx, addressID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update address")
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	if _, err := s.findOwned(ctx, s.repo, userID, addressID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, addressID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete address")
	}
	return nil
}

func (s *service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.findOwned(ctx, repo, userID, addressID); err != nil {
			return err
		}
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
		}
		if err := repo.Update(ctx, addressID, map[string]any{"is_default": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set default address")
		}
		return nil
	})
}

func (s *service) findOwned(ctx context.Context, repo Repository, userID, addressID uuid.UUID) (*models.Address, error) {
	addr, err := repo.FindByID(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup address")
	}
	return addr, nil
}

func (s *service) fromRequest(userID uuid.UUID, req SaveRequest) *models.Address {
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	return &models.Address{
		UserID:     userID,
		Title:      strings.TrimSpace(req.Title),
		FullName:   strings.TrimSpace(req.FullName),
		Phone:      req.Phone,
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      req.Line2,
		City:       strings.TrimSpace(req.City),
		State:      req.State,
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    country,
		IsDefault:  req.IsDefault,
	}
}
