package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"printpos/internal/domain"
)

const (
	tokenIssuer  = "printpos"
	tokenSubject = "operator"
)

var (
	ErrInvalidCredentials = errors.New("invalid passcode")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthManager guards the API behind the single shop passcode. The passcode is
// only ever held as a bcrypt hash.
type AuthManager struct {
	secret       []byte
	tokenTTL     time.Duration
	passcodeHash string
	now          func() time.Time
}

// NewAuthManager prefers an explicit bcrypt hash and falls back to hashing the
// plain passcode.
func NewAuthManager(secret string, tokenTTL time.Duration, passcode string, passcodeHash string) (*AuthManager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	hash := strings.TrimSpace(passcodeHash)
	switch {
	case hash != "":
		if !isPasswordHash(hash) {
			return nil, errors.New("passcode hash is not a bcrypt hash")
		}
	case strings.TrimSpace(passcode) != "":
		hashed, err := HashPasscode(passcode)
		if err != nil {
			return nil, err
		}
		hash = hashed
	default:
		return nil, errors.New("passcode or passcode hash is required")
	}

	return &AuthManager{
		secret:       []byte(secret),
		tokenTTL:     tokenTTL,
		passcodeHash: hash,
		now:          time.Now,
	}, nil
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	if !verifyPassword(a.passcodeHash, req.Passcode) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (string, error) {
	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (a *AuthManager) sign(expiresAt time.Time) (string, error) {
	claims := jwtlib.RegisteredClaims{
		Subject:   tokenSubject,
		IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
		ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		Issuer:    tokenIssuer,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// HashPasscode returns the bcrypt hash stored in auth.passcodeHash.
func HashPasscode(passcode string) (string, error) {
	if strings.TrimSpace(passcode) == "" {
		return "", errors.New("passcode must not be blank")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
