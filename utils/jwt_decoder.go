package utils

import (
	"errors"
	"fmt"
	"time"

	"streamcast/models"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrMissingJob       = errors.New("token carries no job")
	ErrNoSecret         = errors.New("no signing secret configured")
)

// VerifyConfig holds verification configuration
type VerifyConfig struct {
	Secret         []byte
	ExpectedIssuer string        // optional
	ClockSkew      time.Duration // optional
}

// VerifyJobToken checks an HS256 job token and returns its claims. The
// embedded job must name both a job id and a source.
func VerifyJobToken(tokenString string, cfg VerifyConfig) (*models.JobToken, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}

	tok, err := jwt.ParseSigned(tokenString, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &models.JobToken{}
	if err := tok.Claims(cfg.Secret, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	now := time.Now().Unix()
	skew := int64(cfg.ClockSkew.Seconds())
	if claims.ExpiresAt > 0 && claims.ExpiresAt < now-skew {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt > 0 && claims.IssuedAt > now+skew {
		return nil, ErrTokenNotYetValid
	}
	if cfg.ExpectedIssuer != "" && claims.Issuer != cfg.ExpectedIssuer {
		return nil, fmt.Errorf("%w: expected '%s', got '%s'", ErrInvalidIssuer, cfg.ExpectedIssuer, claims.Issuer)
	}
	if claims.Job.JobID == "" || claims.Job.SourceURL == "" {
		return nil, ErrMissingJob
	}
	return claims, nil
}

// CreateJobToken signs claims with HS256. Used by tooling and tests that
// play the role of the upload service.
func CreateJobToken(claims *models.JobToken, secret []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims cannot be nil")
	}
	if len(secret) == 0 {
		return "", ErrNoSecret
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}
	return token, nil
}
