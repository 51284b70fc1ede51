package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/recruai/interview-sync/internal/models"
)

var (
	ErrSecretRequired = errors.New("auth: jwt secret required")
	ErrSubjectMissing = errors.New("auth: token subject is required")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrMissingToken   = errors.New("auth: missing bearer token")
)

const principalKey = "auth.principal"

// Claims are the JWT claims issued by the recruitment backend.
type Claims struct {
	Role string `json:"role,omitempty"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the caller behind a verified token. Token is kept so requests to
// the backend can be made on the caller's behalf.
type Principal struct {
	UserID models.ID
	Role   models.UserRole
	Name   string
	Token  string
}

type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// IssueToken signs a token for user. The backend normally issues tokens; this is
// used by tooling and tests.
func (s *Service) IssueToken(user models.User) (string, time.Time, error) {
	if user.ID.IsZero() {
		return "", time.Time{}, ErrSubjectMissing
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := Claims{
		Role: string(user.Role),
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *Service) VerifyToken(token string) (*Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrSubjectMissing
	}

	return &Principal{
		UserID: models.ID(claims.Subject),
		Role:   models.ParseUserRole(claims.Role),
		Name:   claims.Name,
		Token:  token,
	}, nil
}

// Middleware rejects requests without a valid bearer token. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted as well.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			abort(c, ErrMissingToken)
			return
		}

		principal, err := s.VerifyToken(token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// FromContext returns the principal stored by Middleware.
func FromContext(c *gin.Context) (*Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*Principal)
	return principal, ok
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"details": err.Error(),
	})
}
