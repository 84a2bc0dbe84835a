package service

import (
	"context"
	"fmt"

	"marketplace-service/config"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// Bootstrap creates the schema, seeds the category taxonomy and creates the default administrator
// when no administrator exists. It is safe to run on every start.
func Bootstrap(ctx context.Context, s *store.Store, cfg config.BootstrapConfig) error {
	ctx, span := util.StartSpan(ctx, "Bootstrap")
	defer span.End()

	logger := util.GetLogger()

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	for _, name := range models.DefaultCategories {
		if err := s.EnsureCategory(ctx, name, ""); err != nil {
			return err
		}
	}

	admins, err := s.CountUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if admins > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := &models.User{
		Name:         cfg.AdminName,
		Email:        normalizeEmail(cfg.AdminEmail),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := s.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}

	logger.Info("Default admin created", zap.String("email", admin.Email))
	return nil
}
