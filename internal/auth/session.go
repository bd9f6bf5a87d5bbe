package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	// SessionCookieName is the name of the session cookie set on login.
	SessionCookieName = "pepper_session"
	// SessionTTL is how long a session lives, in the cookie and in Redis.
	SessionTTL = 24 * time.Hour
)

// SessionClaims are the claims carried in the session cookie. The JTI is the
// ID of the server-side session record in Redis.
type SessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// SessionService signs and parses session cookie values.
type SessionService struct {
	secret []byte
}

// NewSessionService creates a session service with the given signing secret.
func NewSessionService(secret string) *SessionService {
	return &SessionService{secret: []byte(secret)}
}

// Issue creates a signed session token for the user. The returned session ID
// must be written to the session store for the token to be usable.
func (s *SessionService) Issue(userID uuid.UUID) (token string, sessionID string, err error) {
	sessionID = uuid.New().String()
	now := time.Now()
	claims := &SessionClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = tokenObj.SignedString(s.secret)
	return token, sessionID, err
}

// Parse validates a session token and returns its claims.
func (s *SessionService) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, errors.New("invalid session token")
	}

	return claims, nil
}
