package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"conference_core/internal/config"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

// Claims - полезная нагрузка токена доступа. Токены выпускает внешний
// сервис авторизации, здесь они только проверяются.
type Claims struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	TechnicalAdmin bool   `json:"technical_admin"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	cfg config.JWTConfig
	log logger.Logger
}

func NewAuthMiddleware(cfg config.JWTConfig, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		cfg: cfg,
		log: log,
	}
}

// RequireAuth пускает только запросы с валидным Bearer-токеном.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.claimsFromRequest(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		m.setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth разбирает токен, если он есть. Запросы без токена
// проходят анонимно, запросы с испорченным токеном отклоняются.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.claimsFromRequest(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		if claims != nil {
			m.setIdentity(c, claims)
		}
		c.Next()
	}
}

func (m *AuthMiddleware) setIdentity(c *gin.Context, claims *Claims) {
	if userID, err := uuid.Parse(claims.UserID); err == nil {
		c.Set("user_id", userID)
	}
	c.Set("display_name", claims.DisplayName)
	c.Set("is_admin", claims.TechnicalAdmin)
}

// claimsFromRequest достаёт и проверяет токен. (nil, nil) - токена нет.
func (m *AuthMiddleware) claimsFromRequest(c *gin.Context) (*Claims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// на WebSocket-рукопожатии браузер не ставит заголовки,
		// токен приходит в query
		if token := c.Query("token"); token != "" {
			return m.parseToken(token)
		}
		return nil, nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.ErrInvalidToken
	}
	return m.parseToken(parts[1])
}

func (m *AuthMiddleware) parseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(m.cfg.Secret), nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}
	if !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
