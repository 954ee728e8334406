// Package bootstrap seeds optional startup state for dev and e2e setups.
package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/loopchat/chatd/internal/config"
	"github.com/loopchat/chatd/internal/domain"
	"github.com/loopchat/chatd/internal/service"
)

// EnsureAdmin creates a default workspace and admin user at startup when
// all three of ADMIN_EMAIL, ADMIN_PASSWORD, and DEFAULT_WORKSPACE are set.
// The signup path handles workspace creation and owner assignment, so the
// seeded admin owns the default workspace.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, auth *service.AuthService, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, auth, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, auth *service.AuthService, logger *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" || cfg.DefaultWorkspace == "" {
		return nil
	}

	if _, found, err := auth.FindUserByEmail(ctx, cfg.AdminEmail); err != nil {
		return err
	} else if found {
		return nil
	}

	_, user, err := auth.Signup(ctx, domain.CreateUserInput{
		Fullname:  "Admin",
		Email:     cfg.AdminEmail,
		Workspace: cfg.DefaultWorkspace,
		Password:  cfg.AdminPassword,
	})
	if err != nil {
		// A concurrent replica may have seeded the same admin first.
		if domain.IsEmailExists(err) {
			return nil
		}
		return err
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", user.Email),
			zap.Int64("user_id", user.ID),
			zap.Int64("ws_id", user.WorkspaceID),
		)
	}
	return nil
}
