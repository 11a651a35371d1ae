package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/spendsmart/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/spendsmart/internal/cryptox"
)

// keySealSalt holds the Argon2 salt for the token sealer. It is not part of
// the session and survives Clear.
const keySealSalt = "seal_salt"

// NewPassphraseSealer returns a Sealer keyed by secret. The salt is created on
// first use and kept in the local database so the key is stable across runs.
func NewPassphraseSealer(ctx context.Context, db *sql.DB, secret string) (Sealer, error) {
	repo := metadata.NewSQLiteRepository(db)

	salt, err := repo.Get(ctx, keySealSalt)
	if err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		salt = cryptox.NewSalt()
		if err := repo.Set(ctx, keySealSalt, salt); err != nil {
			return nil, err
		}
	}

	s, err := cryptox.NewPassphraseSealer(secret, salt)
	if err != nil {
		return nil, fmt.Errorf("build token sealer: %w", err)
	}
	return s, nil
}
