package domain

import "time"

// Identity is one way a user proves who they are. A user may hold several,
// at most one per provider.
type Identity struct {
	ID           string
	UserID       string
	Provider     Provider
	ProviderID   string
	PasswordHash string // empty unless Provider is local
	CreatedAt    time.Time
}

type Provider string

const (
	ProviderLocal        Provider = "local"
	ProviderPasswordless Provider = "passwordless"
	ProviderFederated    Provider = "federated"
)
