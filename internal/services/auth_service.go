package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"lavka/internal/apperrors"
	"lavka/internal/models"
	"lavka/internal/repositories"
	"lavka/pkg/rabbitmq"
)

// ErrInvalidCredentials is returned on any signin failure so callers
// cannot probe which emails are registered.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailNotVerified is returned when a user signs in before
// confirming their email.
var ErrEmailNotVerified = errors.New("email is not verified")

// AuthService handles accounts, email verification and JWT issuance.
type AuthService struct {
	userRepo   repositories.UserRepository
	mqClient   *rabbitmq.Client
	jwtSecret  []byte
	tokenDurat time.Duration
}

// NewAuthService creates a new AuthService. mqClient may be nil, in
// which case confirmation codes are generated but not enqueued for
// delivery.
func NewAuthService(userRepo repositories.UserRepository, mqClient *rabbitmq.Client, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		mqClient:   mqClient,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
	}
}

// Register creates an inactive user with a hashed password and sends
// an email confirmation code.
func (s *AuthService) Register(user *models.User, rawPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	user.EmailConfirmed = false
	user.IsActive = false

	if err := s.userRepo.Create(user); err != nil {
		return err
	}

	return s.issueConfirmationCode(user, "Email confirmation code")
}

// VerifyEmail activates a user whose one-time code matches.
func (s *AuthService) VerifyEmail(email, codeValue string) error {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return err
	}
	if user.EmailConfirmed {
		return apperrors.NewValidation("email", "this email is already verified")
	}

	if err := s.checkConfirmationCode(user, codeValue); err != nil {
		return err
	}

	user.EmailConfirmed = true
	user.IsActive = true
	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	return s.userRepo.DeleteConfirmationCode(user.ID)
}

// Login authenticates a verified user and returns a signed JWT.
func (s *AuthService) Login(email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if !user.IsActive || !user.EmailConfirmed {
		return "", ErrEmailNotVerified
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.tokenDurat).Unix(),
		"iat":     time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// GetUser returns a user by id.
func (s *AuthService) GetUser(userID uint) (*models.User, error) {
	return s.userRepo.GetByID(userID)
}

// UserUpdate carries the optional fields of a profile update.
type UserUpdate struct {
	FirstName  *string `json:"first_name" validate:"omitempty,max=30"`
	LastName   *string `json:"last_name" validate:"omitempty,max=30"`
	Patronymic *string `json:"patronymic" validate:"omitempty,max=30"`
	Company    *string `json:"company" validate:"omitempty,max=50"`
	Position   *string `json:"position" validate:"omitempty,max=50"`
	Password   *string `json:"password" validate:"omitempty,min=8"`
}

// UpdateProfile applies a partial update to the user's profile,
// rehashing the password when one is supplied.
func (s *AuthService) UpdateProfile(userID uint, update UserUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.Patronymic != nil {
		user.Patronymic = *update.Patronymic
	}
	if update.Company != nil {
		user.Company = *update.Company
	}
	if update.Position != nil {
		user.Position = *update.Position
	}
	if update.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// RequestPasswordReset sends a password-change confirmation code to
// an existing user.
func (s *AuthService) RequestPasswordReset(email string) error {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return err
	}
	return s.issueConfirmationCode(user, "Password change confirmation code")
}

// ResetPassword changes a user's password after checking the
// confirmation code.
func (s *AuthService) ResetPassword(email, codeValue, newPassword string) error {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return err
	}

	if err := s.checkConfirmationCode(user, codeValue); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)

	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	return s.userRepo.DeleteConfirmationCode(user.ID)
}

func (s *AuthService) checkConfirmationCode(user *models.User, codeValue string) error {
	code, err := s.userRepo.GetConfirmationCode(user.ID)
	if err != nil {
		return err
	}
	if code.Value != codeValue {
		return apperrors.NewValidation("confirmation_code", "this code is invalid")
	}
	return nil
}

// issueConfirmationCode replaces the user's live code and enqueues
// its delivery.
func (s *AuthService) issueConfirmationCode(user *models.User, subject string) error {
	code := &models.ConfirmationCode{
		UserID: user.ID,
		Value:  generateConfirmationCode(),
	}
	if err := s.userRepo.ReplaceConfirmationCode(code); err != nil {
		return err
	}

	if s.mqClient == nil {
		log.Println("RabbitMQ client is not initialized. Skipping confirmation email.")
		return nil
	}

	job := rabbitmq.EmailJob{
		To:      user.Email,
		Subject: subject,
		Body:    code.Value,
	}
	if err := s.mqClient.PublishEmail(job); err != nil {
		log.Printf("Warning: failed to enqueue confirmation email for %s: %v", user.Email, err)
		return nil
	}
	return s.userRepo.MarkConfirmationCodeSent(code.ID, time.Now())
}

// generateConfirmationCode produces a random numeric one-time code.
func generateConfirmationCode() string {
	digits := make([]byte, models.ConfirmationCodeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand failure means the process has no entropy
			// source at all; there is no meaningful fallback.
			panic(fmt.Sprintf("confirmation code generation: %v", err))
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits)
}
