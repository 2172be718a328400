package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const jwtExpDays = 365

// UserService handles registration, tokens and profiles
type UserService struct {
	store       repository.Store
	jwtSecret   string
	adminEmails map[string]bool
}

// NewUserService creates a new user service. Users registering with one of adminEmails
// are flagged as admins.
func NewUserService(store repository.Store, jwtSecret string, adminEmails []string) *UserService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &UserService{
		store:       store,
		jwtSecret:   jwtSecret,
		adminEmails: admins,
	}
}

// RegisterInput is the signup payload
type RegisterInput struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// UpdateProfileInput is a partial profile edit
type UpdateProfileInput struct {
	DisplayName *string  `json:"display_name" validate:"omitnil,min=1,max=100"`
	SessionRate *float64 `json:"session_rate" validate:"omitnil,gte=20,lte=500"`
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// Register creates a user and returns it with a signed token
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	userID := uuid.New().String()
	token, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &models.User{
		ID:          userID,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		IsAdmin:     s.adminEmails[in.Email],
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	user.Token = token

	log.Info().Str("user_id", userID).Bool("admin", user.IsAdmin).Msg("User registered")
	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

// UpdateProfile changes a user's display name or default session rate
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		if user, err = tx.Users().GetForUpdate(ctx, userID); err != nil {
			return err
		}
		if in.DisplayName != nil {
			user.DisplayName = strings.TrimSpace(*in.DisplayName)
		}
		if in.SessionRate != nil {
			rate := *in.SessionRate
			user.SessionRate = &rate
		}
		return tx.Users().Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
