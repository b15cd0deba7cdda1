package notify

import (
	"context"
	"fmt"
	"log/slog"

	"chefmate/internal/billing"
)

// MenuLinker is the slice of the bot client the switcher needs.
type MenuLinker interface {
	LinkMenu(ctx context.Context, userID, menuID string) error
}

// Switcher maps entitlement menu variants to configured rich-menu ids and
// applies them through the bot API.
type Switcher struct {
	linker        MenuLinker
	premiumMenuID string
	regularMenuID string
	logger        *slog.Logger
}

func NewSwitcher(linker MenuLinker, premiumMenuID, regularMenuID string, logger *slog.Logger) *Switcher {
	return &Switcher{
		linker:        linker,
		premiumMenuID: premiumMenuID,
		regularMenuID: regularMenuID,
		logger:        logger,
	}
}

func (s *Switcher) SwitchMenu(ctx context.Context, userID string, variant billing.MenuVariant) error {
	var menuID string
	switch variant {
	case billing.MenuPremium:
		menuID = s.premiumMenuID
	case billing.MenuRegular:
		menuID = s.regularMenuID
	default:
		return fmt.Errorf("unknown menu variant %q", variant)
	}
	if menuID == "" {
		// Menus not configured for this environment; skip quietly.
		s.logger.DebugContext(ctx, "menu switch skipped, no menu id configured", "variant", string(variant))
		return nil
	}
	return s.linker.LinkMenu(ctx, userID, menuID)
}

// NoopSwitcher discards menu switches. Used when messaging is not configured.
type NoopSwitcher struct{}

func (NoopSwitcher) SwitchMenu(context.Context, string, billing.MenuVariant) error { return nil }
