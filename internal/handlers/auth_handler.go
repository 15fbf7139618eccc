package handlers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lavka/internal/middleware"
	"lavka/internal/models"
	"lavka/internal/services"
)

// AuthHandler handles HTTP requests for accounts and verification.
type AuthHandler struct {
	service  *services.AuthService
	validate *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *services.AuthService) *AuthHandler {
	return &AuthHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the public account routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/signup", h.HandleSignup)
	router.Post("/verify_email", h.HandleVerifyEmail)
	router.Post("/signin", h.HandleSignin)
	router.Post("/forgot_password/confirmation_code", h.HandleForgotPasswordCode)
	router.Patch("/forgot_password", h.HandleForgotPassword)
}

// RegisterProtectedRoutes registers account routes that require auth.
func (h *AuthHandler) RegisterProtectedRoutes(router fiber.Router) {
	router.Patch("/user", h.HandleUpdateUser)
}

type signupRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	FirstName  string `json:"first_name" validate:"required,max=30"`
	LastName   string `json:"last_name" validate:"required,max=30"`
	Patronymic string `json:"patronymic" validate:"max=30"`
	Company    string `json:"company" validate:"max=50"`
	Position   string `json:"position" validate:"max=50"`
}

// HandleSignup creates an inactive account and sends a confirmation
// code to the given email.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	user := &models.User{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Patronymic: req.Patronymic,
		Company:    req.Company,
		Position:   req.Position,
	}
	if err := h.service.Register(user, req.Password); err != nil {
		log.Printf("Error registering user: %v", err)
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully. A confirmation code was sent to the email.",
		"user":    user,
	})
}

type verifyEmailRequest struct {
	Email            string `json:"email" validate:"required,email"`
	ConfirmationCode string `json:"confirmation_code" validate:"required,len=10"`
}

// HandleVerifyEmail activates an account with a matching code.
func (h *AuthHandler) HandleVerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	if err := h.service.VerifyEmail(req.Email, req.ConfirmationCode); err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"result": "Email " + req.Email + " verified.",
	})
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleSignin authenticates a user and returns a JWT.
func (h *AuthHandler) HandleSignin(c *fiber.Ctx) error {
	var req signinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	token, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrEmailNotVerified) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": err.Error(),
			})
		}
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"token": token})
}

// HandleUpdateUser applies a partial profile update for the caller.
func (h *AuthHandler) HandleUpdateUser(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var req services.UserUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	user, err := h.service.UpdateProfile(userID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(user)
}

type forgotPasswordCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleForgotPasswordCode sends a password-change confirmation code.
func (h *AuthHandler) HandleForgotPasswordCode(c *fiber.Ctx) error {
	var req forgotPasswordCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	if err := h.service.RequestPasswordReset(req.Email); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"result": "Password change confirmation code sent to " + req.Email + ".",
	})
}

type forgotPasswordRequest struct {
	Email            string `json:"email" validate:"required,email"`
	ConfirmationCode string `json:"confirmation_code" validate:"required,len=10"`
	Password         string `json:"password" validate:"required,min=8"`
}

// HandleForgotPassword changes a password using a confirmation code.
func (h *AuthHandler) HandleForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	if err := h.service.ResetPassword(req.Email, req.ConfirmationCode, req.Password); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"result": "Password changed."})
}
