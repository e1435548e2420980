package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	accessTokenTTL   = 24 * time.Hour
	refreshTokenTTL  = 30 * 24 * time.Hour
	refreshKeyPrefix = "refresh:"
)

var ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

// JWTService выпускает access-токены (HS256, проверяются jwtauth)
// и refresh-токены, которые живут в Redis.
type JWTService struct {
	secretKey []byte
	redis     *redis.Client
	now       func() time.Time
}

func NewJWTService(secretKey string, redisClient *redis.Client) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		redis:     redisClient,
		now:       time.Now,
	}
}

func (s *JWTService) GenerateToken(ctx context.Context, userID int, username, role string) (string, string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":  strconv.Itoa(userID),
		"username": username,
		"role":     role,
		"exp":      now.Add(accessTokenTTL).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}

	refreshToken := uuid.NewString()
	if err := s.redis.Set(ctx, refreshKeyPrefix+refreshToken, userID, refreshTokenTTL).Err(); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

// ValidateRefreshToken возвращает владельца токена. Токен одноразовый.
func (s *JWTService) ValidateRefreshToken(ctx context.Context, refreshToken string) (int, error) {
	userID, err := s.redis.GetDel(ctx, refreshKeyPrefix+refreshToken).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidRefreshToken
	}
	if err != nil {
		return 0, fmt.Errorf("read refresh token: %w", err)
	}
	return userID, nil
}

func (s *JWTService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return s.redis.Del(ctx, refreshKeyPrefix+refreshToken).Err()
}

// ParseToken проверяет подпись и срок действия access-токена.
func (s *JWTService) ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}
