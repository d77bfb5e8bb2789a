package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nimburion/movieship/pkg/observability/logger"
)

// Claims are the token claims movieship reads.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
}

// SubjectExtractor resolves the claims of a bearer token.
type SubjectExtractor interface {
	Claims(ctx context.Context, token string) (*Claims, error)
}

// Subject resolves the subject of token with e.
func Subject(ctx context.Context, e SubjectExtractor, token string) (string, error) {
	claims, err := e.Claims(ctx, token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Config selects and configures the extractor built by NewSubjectExtractor.
type Config struct {
	// HMACSecret enables signature verification when set.
	HMACSecret string
	// Issuer and Audience, when set, are required to match on verified tokens.
	Issuer   string
	Audience string
}

// NewSubjectExtractor returns an HMACValidator when cfg carries a secret and an
// UnverifiedExtractor otherwise.
func NewSubjectExtractor(cfg Config, log logger.Logger) SubjectExtractor {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.HMACSecret == "" {
		log.Warn("token signatures are not verified; configure auth.hmac_secret to enable verification")
		return &UnverifiedExtractor{}
	}
	return &HMACValidator{
		secret:   []byte(cfg.HMACSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   log,
	}
}

// UnverifiedExtractor reads claims without checking the signature or the expiry.
type UnverifiedExtractor struct{}

func (UnverifiedExtractor) Claims(_ context.Context, token string) (*Claims, error) {
	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mapClaims); err != nil {
		return nil, unauthorized("malformed token: %v", err)
	}
	return claimsFrom(mapClaims)
}

// HMACValidator verifies HS256/HS384/HS512 signatures, expiry and, when configured, issuer and audience.
type HMACValidator struct {
	secret   []byte
	issuer   string
	audience string
	logger   logger.Logger
}

func (v *HMACValidator) Claims(ctx context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	mapClaims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, mapClaims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		v.logger.WithContext(ctx).Debug("token rejected", "error", err)
		return nil, unauthorized("token validation failed: %v", err)
	}
	return claimsFrom(mapClaims)
}

func claimsFrom(mapClaims jwt.MapClaims) (*Claims, error) {
	sub, _ := mapClaims.GetSubject()
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return nil, unauthorized("token has no subject")
	}

	claims := &Claims{Subject: sub}
	claims.Issuer, _ = mapClaims.GetIssuer()
	if aud, err := mapClaims.GetAudience(); err == nil {
		claims.Audience = aud
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}
