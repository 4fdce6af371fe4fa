// Package services implements the operations the API layer delegates to:
// credential handling, authentication, and permission checks over the
// account store.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/filegate/filegate/pkg/accounts"
	"github.com/filegate/filegate/pkg/logging"
	"github.com/filegate/filegate/pkg/perm"
	"github.com/filegate/filegate/pkg/storage"
)

// Errors returned by the account service
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMalformedSRP       = errors.New("malformed salt or verifier")
	ErrEmptyPassword      = errors.New("password must not be empty")
	ErrNoSession          = errors.New("no authenticated session")
)

const tokenIssuer = "filegate"

// Claims is the JWT payload carried by a session token.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// AccountService ties the account store, the permission resolver and the
// credential codec together for the API layer.
type AccountService struct {
	store     storage.AccountStore
	resolver  *perm.Resolver
	logger    logging.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAccountService creates a new account service.
func NewAccountService(store storage.AccountStore, resolver *perm.Resolver, logger logging.Logger, jwtSecret []byte, tokenTTL time.Duration) *AccountService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AccountService{
		store:     store,
		resolver:  resolver,
		logger:    logger,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Store exposes the underlying account store to the API layer.
func (s *AccountService) Store() storage.AccountStore {
	return s.store
}

// Resolver exposes the permission resolver to the API layer.
func (s *AccountService) Resolver() *perm.Resolver {
	return s.resolver
}

// Authenticate verifies a plaintext password against the account's legacy
// hash and returns the username on success. Accounts already migrated to the
// challenge-response scheme cannot log in this way; their exchange happens in
// the transport layer, which only reads the stored verifier.
func (s *AccountService) Authenticate(username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	account, err := s.store.Get(username)
	if err != nil {
		// Same failure as a wrong password, so probing for usernames
		// yields nothing.
		return "", ErrInvalidCredentials
	}

	switch account.Credential.Kind() {
	case accounts.CredentialLegacyHash:
		if bcrypt.CompareHashAndPassword([]byte(account.Credential.LegacyHash), []byte(password)) != nil {
			return "", ErrInvalidCredentials
		}
		return account.Username, nil
	case accounts.CredentialChallengeResponse:
		return "", fmt.Errorf("%w: account requires challenge-response login", ErrInvalidCredentials)
	default:
		return "", ErrInvalidCredentials
	}
}

// IsAdmin reports whether the username may enter the admin interface.
func (s *AccountService) IsAdmin(username string) bool {
	account, err := s.store.Get(username)
	if err != nil {
		return false
	}
	return s.resolver.CanLoginAdmin(account)
}

// GenerateJWT issues an HS256 session token for the username.
func (s *AccountService) GenerateJWT(username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: s.IsAdmin(username),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken verifies a session token and returns the username it was
// issued for.
func (s *AccountService) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// ChangePassword sets a new legacy-hashed password on the account. This is
// the administrative variant: no proof of the current credential is required.
// Any stale challenge-response pair is cleared.
func (s *AccountService) ChangePassword(username, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}
	if _, err := s.store.Get(username); err != nil {
		return err
	}

	// Hashing is the expensive part; it happens outside the store's
	// critical section and only then touches the one record.
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.store.SetCredential(username, accounts.Credential{LegacyHash: string(hash)}); err != nil {
		return err
	}
	s.logger.Info("password changed", "username", username)
	return nil
}

// ChangeSRP stores a client-computed salt/verifier pair on the account after
// structural validation. No derivation happens server-side; the plaintext
// password never reached us. Any stale legacy hash is cleared.
func (s *AccountService) ChangeSRP(username, salt, verifier string) error {
	if err := validateSRP(salt, verifier); err != nil {
		return err
	}
	if err := s.store.SetCredential(username, accounts.Credential{Salt: salt, Verifier: verifier}); err != nil {
		return err
	}
	s.logger.Info("srp verifier changed", "username", username)
	return nil
}

// ChangeOwnPassword is the self-service variant of ChangePassword, applied to
// the identity the request context is authenticated as. Proof of the current
// credential is the transport layer's concern and has already happened by the
// time a context carries a username.
func (s *AccountService) ChangeOwnPassword(ctx context.Context, newPassword string) error {
	username, ok := perm.UsernameFromContext(ctx)
	if !ok {
		return ErrNoSession
	}
	return s.ChangePassword(username, newPassword)
}

// ChangeOwnSRP is the self-service variant of ChangeSRP.
func (s *AccountService) ChangeOwnSRP(ctx context.Context, salt, verifier string) error {
	username, ok := perm.UsernameFromContext(ctx)
	if !ok {
		return ErrNoSession
	}
	return s.ChangeSRP(username, salt, verifier)
}

// validateSRP checks that both halves of the pair are present and valid hex.
func validateSRP(salt, verifier string) error {
	if salt == "" || verifier == "" {
		return ErrMalformedSRP
	}
	if _, err := hex.DecodeString(salt); err != nil {
		return fmt.Errorf("%w: salt is not valid hex", ErrMalformedSRP)
	}
	if _, err := hex.DecodeString(verifier); err != nil {
		return fmt.Errorf("%w: verifier is not valid hex", ErrMalformedSRP)
	}
	return nil
}
