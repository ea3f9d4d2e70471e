package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
)

// Keys are derived from the one root secret.
type Keys struct {
	Signer *jwtx.CookieSigner
	Sealer *cryptox.Sealer
}

// InitKeys derives the cookie signing and token sealing keys. In dev a
// missing secret is replaced by a random one, which signs everybody out on
// restart and makes persisted tokens unreadable.
func InitKeys(cfg Config, logger *slog.Logger) (*Keys, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		if cfg.Env != "dev" {
			return nil, fmt.Errorf("SESSION_SECRET is required when ENV=%s", cfg.Env)
		}
		secret = []byte(cryptox.MustGenerateToken(cryptox.TokenSize256))
		logger.Warn("SESSION_SECRET not set, using an ephemeral secret")
	}

	signKey, err := cryptox.DeriveKey(secret, cryptox.PurposeCookieSigning, 32)
	if err != nil {
		return nil, fmt.Errorf("derive cookie key: %w", err)
	}
	sealKey, err := cryptox.DeriveKey(secret, cryptox.PurposeTokenSealing, 32)
	if err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}

	signer, err := jwtx.NewCookieSigner(signKey, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	sealer, err := cryptox.NewSealer(sealKey)
	if err != nil {
		return nil, err
	}

	return &Keys{Signer: signer, Sealer: sealer}, nil
}
