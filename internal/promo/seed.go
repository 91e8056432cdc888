package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML shape of a promo seed file:
//
//	codes:
//	  - code: WELCOME30
//	    free_days: 30
//	    max_uses: 5
type SeedFile struct {
	Codes []SeedCode `yaml:"codes"`
}

// SeedCode is one standing promo code shipped with a deployment.
type SeedCode struct {
	Code     string `yaml:"code"`
	FreeDays int    `yaml:"free_days"`
	MaxUses  int    `yaml:"max_uses"`
}

// Seed loads a YAML seed file and registers every code that does not exist
// yet. Codes already present are left untouched, so seeding is idempotent
// across restarts. A missing file is not an error when path is empty.
func (l *Ledger) Seed(ctx context.Context, path string, now time.Time) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read promo seed file %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("failed to parse promo seed file %s: %w", path, err)
	}

	for _, sc := range seed.Codes {
		if sc.Code == "" {
			return fmt.Errorf("promo seed file %s: entry without code", path)
		}
		_, err := l.Create(ctx, CreateParams{
			Code:     sc.Code,
			FreeDays: sc.FreeDays,
			MaxUses:  sc.MaxUses,
		}, now)
		if errors.Is(err, ErrCodeAlreadyExists) {
			l.log.DebugContext(ctx, "promo seed code already exists",
				slog.String("code", NormalizeCode(sc.Code)))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed promo code %s: %w", sc.Code, err)
		}
	}

	return nil
}
