package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/veloshop/storefront-backend/pkg/config"
	"github.com/veloshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/veloshop/storefront-backend/pkg/errors"
)

// Well-known setting keys. Unset keys fall back to the configured defaults.
const (
	KeyFreeShippingThresholdCents = "free_shipping_threshold_cents"
	KeyShippingFlatFeeCents       = "shipping_flat_fee_cents"
	KeyCurrency                   = "currency"
)

const cacheTTL = time.Minute

// Shipping is the resolved shipping policy used by checkout.
type Shipping struct {
	FreeThresholdCents int
	FlatFeeCents       int
	Currency           string
}

// Service reads and writes store-wide settings. Reads are cached briefly in
// process; admin writes drop the cache.
type Service interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]models.Setting, error)
	Shipping(ctx context.Context) (Shipping, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Find(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := r.db.WithContext(ctx).First(&setting, "key = ?", key).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *Repository) Upsert(ctx context.Context, key, value string) error {
	existing, err := r.Find(ctx, key)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return r.db.WithContext(ctx).Create(&models.Setting{Key: key, Value: value}).Error
	}
	existing.Value = value
	return r.db.WithContext(ctx).
		Model(&models.Setting{}).
		Where("key = ?", key).
		Update("value", value).Error
}

func (r *Repository) List(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error
	return settings, err
}

type service struct {
	repo     *Repository
	defaults config.ShippingConfig

	mu    sync.Mutex
	cache cachedShipping
}

type cachedShipping struct {
	value   Shipping
	loaded  time.Time
	present bool
}

// ServiceParams bundles the settings service dependencies.
type ServiceParams struct {
	Repo     *Repository
	Defaults config.ShippingConfig
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settings repository required")
	}
	return &service{repo: params.Repo, defaults: params.Defaults}, nil
}

func (s *service) Get(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.Find(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "setting not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load setting")
	}
	return setting.Value, nil
}

func (s *service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting key required")
	}
	switch key {
	case KeyFreeShippingThresholdCents, KeyShippingFlatFeeCents:
		cents, err := strconv.Atoi(value)
		if err != nil || cents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "setting requires a non-negative integer")
		}
	case KeyCurrency:
		if len(strings.TrimSpace(value)) != 3 {
			return pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code")
		}
		value = strings.ToUpper(strings.TrimSpace(value))
	}

	if err := s.repo.Upsert(ctx, key, value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save setting")
	}
	s.mu.Lock()
	s.cache = cachedShipping{}
	s.mu.Unlock()
	return nil
}

func (s *service) List(ctx context.Context) ([]models.Setting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list settings")
	}
	return settings, nil
}

// Shipping resolves the shipping policy, preferring stored settings over the
// configured defaults.
func (s *service) Shipping(ctx context.Context) (Shipping, error) {
	s.mu.Lock()
	if s.cache.present && time.Since(s.cache.loaded) < cacheTTL {
		cached := s.cache.value
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	resolved := Shipping{
		FreeThresholdCents: s.defaults.FreeThresholdCents,
		FlatFeeCents:       s.defaults.FlatFeeCents,
		Currency:           s.defaults.Currency,
	}

	if raw, err := s.lookup(ctx, KeyFreeShippingThresholdCents); err != nil {
		return Shipping{}, err
	} else if raw != "" {
		if cents, err := strconv.Atoi(raw); err == nil {
			resolved.FreeThresholdCents = cents
		}
	}
	if raw, err := s.lookup(ctx, KeyShippingFlatFeeCents); err != nil {
		return Shipping{}, err
	} else if raw != "" {
		if cents, err := strconv.Atoi(raw); err == nil {
			resolved.FlatFeeCents = cents
		}
	}
	if raw, err := s.lookup(ctx, KeyCurrency); err != nil {
		return Shipping{}, err
	} else if raw != "" {
		resolved.Currency = raw
	}

	s.mu.Lock()
	s.cache = cachedShipping{value: resolved, loaded: time.Now(), present: true}
	s.mu.Unlock()
	return resolved, nil
}

func (s *service) lookup(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.Find(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load setting")
	}
	return setting.Value, nil
}
