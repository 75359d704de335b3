package ports

import (
	"context"

	"github.com/hoodx/roulettebot/internal/domain"
)

// CredentialProvider mints fresh session credentials from the casino
// platform. Each call produces a brand-new pair; there is no refresh.
type CredentialProvider interface {
	Mint(ctx context.Context, src domain.SourceCredential) (domain.Credentials, error)
}
