package utils // package utils provides helper functions for token creation and hashing

import (
    "errors" // sentinel errors for token validation outcomes
    "time"   // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
    "github.com/google/uuid"       // jti values so otherwise-identical tokens differ
)

// Token validation errors.  Expired and invalid are distinguished so the
// Auth Gateway can tell clients whether a refresh attempt is worthwhile:
// an expired access token is refreshable, a malformed one is not.
var (
    ErrTokenExpired = errors.New("token expired")
    ErrTokenInvalid = errors.New("token invalid")
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short‑lived, stateless and never persisted server-side:
// validity is fully determined by signature and expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived JWT used to obtain new access tokens.
// It carries a "type":"refresh" claim and is signed with a secret distinct
// from the access-token secret, so leaking one key does not compromise the
// other and an access token can never be replayed as a refresh token.
type RefreshToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // UTC expiration time
}

// TokenPair bundles the two credentials minted together on login,
// registration and refresh.
type TokenPair struct {
    Access  AccessToken
    Refresh RefreshToken
}

// TokenIssuer mints and validates both token kinds.  It is constructed once
// from configuration and shared by the auth handlers and middleware.
type TokenIssuer struct {
    accessSecret  []byte
    refreshSecret []byte
    accessTTL     time.Duration
    refreshTTL    time.Duration
}

// NewTokenIssuer builds an issuer with the configured secrets and lifetimes
// (access TTL in minutes, refresh TTL in days).
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTLMin, refreshTTLDays int) TokenIssuer {
    return TokenIssuer{
        accessSecret:  []byte(accessSecret),
        refreshSecret: []byte(refreshSecret),
        accessTTL:     time.Duration(accessTTLMin) * time.Minute,
        refreshTTL:    time.Duration(refreshTTLDays) * 24 * time.Hour,
    }
}

// RefreshTTL exposes the refresh lifetime so the registry entry can be set
// with exactly the same expiry as the token it guards.
func (i TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssuePair mints a new access/refresh pair for a user.  The access token
// carries the subject and role; the refresh token carries the subject and
// the type discriminator.  Every token gets a unique jti so tokens minted
// within the same second still differ.
func (i TokenIssuer) IssuePair(userID uint64, role string) (TokenPair, error) {
    now := time.Now().UTC()
    accessExp := now.Add(i.accessTTL)
    refreshExp := now.Add(i.refreshTTL)

    access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "jti":  uuid.NewString(),
        "iat":  now.Unix(),
        "exp":  accessExp.Unix(),
    })
    signedAccess, err := access.SignedString(i.accessSecret)
    if err != nil {
        return TokenPair{}, err
    }

    refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub":  userID,
        "type": "refresh",
        "jti":  uuid.NewString(),
        "iat":  now.Unix(),
        "exp":  refreshExp.Unix(),
    })
    signedRefresh, err := refresh.SignedString(i.refreshSecret)
    if err != nil {
        return TokenPair{}, err
    }

    return TokenPair{
        Access:  AccessToken{Token: signedAccess, Exp: accessExp},
        Refresh: RefreshToken{Token: signedRefresh, Exp: refreshExp},
    }, nil
}

// ParseAccess validates an access token and returns its subject and role.
// Expiry is reported as ErrTokenExpired; every other failure (bad signature,
// wrong algorithm, malformed claims) collapses to ErrTokenInvalid.
func (i TokenIssuer) ParseAccess(token string) (userID uint64, role string, err error) {
    claims, err := i.parse(token, i.accessSecret)
    if err != nil {
        return 0, "", err
    }
    sub, ok := claims["sub"].(float64)
    if !ok {
        return 0, "", ErrTokenInvalid
    }
    role, _ = claims["role"].(string)
    return uint64(sub), role, nil
}

// ParseRefresh validates a refresh token and returns its subject.  The type
// discriminator is checked fail-closed: a token without "type":"refresh" is
// rejected even when its signature and expiry are otherwise valid.
func (i TokenIssuer) ParseRefresh(token string) (userID uint64, err error) {
    claims, err := i.parse(token, i.refreshSecret)
    if err != nil {
        return 0, err
    }
    if typ, _ := claims["type"].(string); typ != "refresh" {
        return 0, ErrTokenInvalid
    }
    sub, ok := claims["sub"].(float64)
    if !ok {
        return 0, ErrTokenInvalid
    }
    return uint64(sub), nil
}

func (i TokenIssuer) parse(token string, secret []byte) (jwt.MapClaims, error) {
    tok, err := jwt.Parse(token,
        func(t *jwt.Token) (interface{}, error) { return secret, nil },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
    )
    switch {
    case err == nil && tok.Valid:
        claims, ok := tok.Claims.(jwt.MapClaims)
        if !ok {
            return nil, ErrTokenInvalid
        }
        return claims, nil
    case errors.Is(err, jwt.ErrTokenExpired):
        return nil, ErrTokenExpired
    default:
        return nil, ErrTokenInvalid
    }
}
