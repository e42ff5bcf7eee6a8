package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"printpos/internal/domain"
	"printpos/internal/store"
)

var validate = validator.New()

// GetProfile returns the stored shop profile, or the defaults when none has
// been saved yet.
func (s *Service) GetProfile(ctx context.Context) (domain.ShopProfile, error) {
	profile, err := s.ledger.GetProfile(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.DefaultShopProfile(), nil
		}
		return domain.ShopProfile{}, err
	}
	return *profile, nil
}

// SaveProfile replaces the profile wholesale.
func (s *Service) SaveProfile(ctx context.Context, profile domain.ShopProfile) (domain.ShopProfile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Address = strings.TrimSpace(profile.Address)
	profile.Phone = strings.TrimSpace(profile.Phone)
	profile.Email = strings.TrimSpace(profile.Email)
	profile.Website = strings.TrimSpace(profile.Website)
	profile.FooterNote = strings.TrimSpace(profile.FooterNote)

	if profile.Name == "" {
		return domain.ShopProfile{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if profile.Email != "" {
		if err := validate.Var(profile.Email, "email"); err != nil {
			return domain.ShopProfile{}, fmt.Errorf("%w: email %q", ErrInvalidProfile, profile.Email)
		}
	}
	if len(profile.Logo) >= domain.MaxLogoBytes {
		return domain.ShopProfile{}, fmt.Errorf("%w: logo exceeds %d bytes", ErrInvalidProfile, domain.MaxLogoBytes)
	}
	if profile.Logo != "" && !strings.HasPrefix(profile.Logo, "data:image/") {
		return domain.ShopProfile{}, fmt.Errorf("%w: logo must be an image data url", ErrInvalidProfile)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.PutProfile(ctx, profile); err != nil {
		return domain.ShopProfile{}, err
	}
	s.logger.Info("shop profile saved", "name", profile.Name, "has_logo", profile.Logo != "")
	return profile, nil
}
