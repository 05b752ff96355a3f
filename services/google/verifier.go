package googlesvc

import (
	"context"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/user"
)

type idTokenVerifier struct {
	clientID string
	verifier googleAuthIDTokenVerifier.Verifier
}

var _ user.GoogleVerifier = (*idTokenVerifier)(nil)

// NewVerifier returns nil when no Google client id is configured, which disables Google sign-in.
func NewVerifier(conf *core.Config) user.GoogleVerifier {
	if conf.Google.ClientID == "" {
		return nil
	}
	return &idTokenVerifier{
		clientID: conf.Google.ClientID,
		verifier: googleAuthIDTokenVerifier.Verifier{},
	}
}

// Verify checks the token signature, expiry and audience, then decodes its claims.
func (v *idTokenVerifier) Verify(ctx context.Context, idToken string) (user.GoogleIdentity, error) {
	if err := ctx.Err(); err != nil {
		return user.GoogleIdentity{}, err
	}
	if err := v.verifier.VerifyIDToken(idToken, []string{v.clientID}); err != nil {
		return user.GoogleIdentity{}, errors.Wrap(err, "verifying google id token")
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return user.GoogleIdentity{}, errors.Wrap(err, "decoding google id token")
	}
	if claimSet.Sub == "" {
		return user.GoogleIdentity{}, errors.New("google id token has no subject")
	}
	return user.GoogleIdentity{
		Subject:       claimSet.Sub,
		Email:         claimSet.Email,
		EmailVerified: claimSet.EmailVerified,
		Name:          claimSet.Name,
	}, nil
}
