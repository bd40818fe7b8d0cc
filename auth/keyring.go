package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jghoshh/wellspring/models"
	"github.com/zalando/go-keyring"
)

const KeyringService = "Wellspring"

// KeyringSessionStore keeps the current session as a signed token in the OS keyring
// rather than in the data blob. An expired or tampered token reads as no session.
type KeyringSessionStore struct {
	signer *TokenSigner
	key    string
}

func NewKeyringSessionStore(signer *TokenSigner, key string) *KeyringSessionStore {
	if key == "" {
		key = "session"
	}
	return &KeyringSessionStore{signer: signer, key: key}
}

func (k *KeyringSessionStore) LoadSession(_ context.Context) (*models.Session, error) {
	token, err := keyring.Get(KeyringService, k.key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access keyring: %w", err)
	}

	email, err := k.signer.Parse(token)
	if err != nil {
		return nil, nil
	}
	return &models.Session{Email: email}, nil
}

func (k *KeyringSessionStore) SaveSession(_ context.Context, session models.Session) error {
	token, err := k.signer.Sign(session.Email)
	if err != nil {
		return err
	}
	if err := keyring.Set(KeyringService, k.key, token); err != nil {
		return fmt.Errorf("failed to store session in keyring: %w", err)
	}
	return nil
}

func (k *KeyringSessionStore) ClearSession(_ context.Context) error {
	err := keyring.Delete(KeyringService, k.key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to clear keyring session: %w", err)
	}
	return nil
}
