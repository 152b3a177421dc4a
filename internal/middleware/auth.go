package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"inventory-service/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// RoleAdmin rol con acceso a las operaciones de mantenimiento del ledger
const RoleAdmin = "admin"

const (
	userIDKey   = "user_id"
	tenantIDKey = "tenant_id"
	roleKey     = "role"
	tokenCookie = "token"
)

var ErrMissingToken = errors.New("missing token")

// Claims contenido del JWT
type Claims struct {
	UserID   int64  `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator emite y valida tokens HS256
type Authenticator struct {
	secret   []byte
	expiry   time.Duration
	disabled bool
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthenticator(cfg config.JWTConfig, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		secret:   []byte(cfg.Secret),
		expiry:   time.Duration(cfg.ExpiryHours) * time.Hour,
		disabled: cfg.Disabled,
		logger:   logger,
		now:      time.Now,
	}
}

// IssueToken firma un token para el usuario
func (a *Authenticator) IssueToken(userID int64, tenantID, role string) (string, error) {
	now := a.now()
	claims := Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken valida firma, algoritmo y expiración
func (a *Authenticator) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware exige un token válido en "Authorization: Bearer" o en la cookie "token".
// Con AUTH_DISABLED deja pasar todo sin identidad.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.disabled {
			c.Next()
			return
		}

		raw := tokenFromRequest(c)
		if raw == "" {
			a.reject(c, ErrMissingToken)
			return
		}
		claims, err := a.ParseToken(raw)
		if err != nil {
			a.reject(c, err)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(tenantIDKey, claims.TenantID)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequireRole restringe la ruta a los roles dados. Va después de Middleware.
// Con AUTH_DISABLED no restringe.
func (a *Authenticator) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.disabled || slices.Contains(roles, Role(c)) {
			c.Next()
			return
		}

		a.logger.Warn("Request sin permisos suficientes",
			zap.String("path", c.Request.URL.Path),
			zap.String("role", Role(c)),
			zap.Strings("required", roles),
			zap.String("request_id", RequestID(c)))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "❌ Permisos insuficientes",
			"error":   fmt.Sprintf("role %q not allowed", Role(c)),
		})
	}
}

func (a *Authenticator) reject(c *gin.Context, err error) {
	a.logger.Warn("Request sin autenticación válida",
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", RequestID(c)),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": "❌ No autorizado",
		"error":   err.Error(),
	})
}

func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(tokenCookie); err == nil {
		return cookie
	}
	return ""
}

// UserID usuario autenticado, nil si no hay
func UserID(c *gin.Context) *int64 {
	v, ok := c.Get(userIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(int64)
	if !ok || id == 0 {
		return nil
	}
	return &id
}

// TenantID tenant del token, "" si no hay
func TenantID(c *gin.Context) string {
	return c.GetString(tenantIDKey)
}

// Role rol del token, "" si no hay
func Role(c *gin.Context) string {
	return c.GetString(roleKey)
}
