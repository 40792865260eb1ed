package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arnavshah/assignment-engine-go/pkg/config"
	"github.com/arnavshah/assignment-engine-go/pkg/database"
)

var jwtAlgorithm = jwt.SigningMethodHS256

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidKeyFormat = errors.New("invalid key format")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator signs admin tokens and congregation API keys
type Authenticator struct {
	jwtSecret    []byte
	expiration   time.Duration
	masterSecret []byte
	bcryptCost   int
}

// New creates an Authenticator from the JWT and API key secrets in cfg
func New(cfg *config.Config) *Authenticator {
	expiration := cfg.JWT.Expiration
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &Authenticator{
		jwtSecret:    []byte(cfg.JWT.Secret),
		expiration:   expiration,
		masterSecret: []byte(cfg.APIMasterSecret),
		bcryptCost:   14,
	}
}

// WithBcryptCost overrides the hashing cost
func (a *Authenticator) WithBcryptCost(cost int) *Authenticator {
	a.bcryptCost = cost
	return a
}

// HashPassword hashes a password using bcrypt
func (a *Authenticator) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for a user
func (a *Authenticator) CreateToken(username string) (string, error) {
	expirationTime := time.Now().Add(a.expiration)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.jwtSecret)
}

// VerifyToken verifies a JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, ErrInvalidToken
		}
		return a.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// EnsureAdminExists creates the configured admin account when no admin exists yet
func (a *Authenticator) EnsureAdminExists(ctx context.Context, db *gorm.DB, admin config.AdminConfig, logger *zap.Logger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := admin.Username
	if username == "" {
		username = "admin"
	}
	password := admin.Password
	if password == "" {
		password = "admin123"
	}

	hash, err := a.HashPassword(password)
	if err != nil {
		return err
	}

	user := database.MasterUser{
		Username:     username,
		PasswordHash: hash,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return err
	}
	if logger != nil {
		logger.Info("default admin user created", zap.String("username", username))
	}
	return nil
}

// GenerateHMACKey creates a signed API key for a congregation using HMAC-SHA256
func (a *Authenticator) GenerateHMACKey(congregation string) string {
	return congregation + "." + a.sign(congregation)
}

// VerifyHMACKey validates an HMAC-signed API key and returns its congregation
func (a *Authenticator) VerifyHMACKey(key string) (string, error) {
	congregation, providedSignature, ok := strings.Cut(key, ".")
	if !ok || congregation == "" || strings.Contains(providedSignature, ".") {
		return "", ErrInvalidKeyFormat
	}

	// Use constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(providedSignature), []byte(a.sign(congregation))) {
		return "", ErrInvalidSignature
	}

	return congregation, nil
}

func (a *Authenticator) sign(congregation string) string {
	h := hmac.New(sha256.New, a.masterSecret)
	h.Write([]byte(congregation))
	return hex.EncodeToString(h.Sum(nil))
}

// KeyPreview shortens a key for display
func KeyPreview(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
