package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// UserIDFromToken extracts the subject claim from an access token without
// verifying the signature. The server is the only party that verifies
// tokens; the client just needs a stable identity to key the local store.
func UserIDFromToken(accessToken string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, &jwt.RegisteredClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject claim", shared.ErrInvalidToken)
	}
	return sub, nil
}
