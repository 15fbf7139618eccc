package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lavka/internal/apperrors"
)

// writeError translates service-layer errors into HTTP responses.
// Placement failures keep their nested keying (cart line id, then
// stock position id, then rule name) because clients parse it to
// highlight the offending cart item.
func writeError(c *fiber.Ctx, err error) error {
	var (
		placement  *apperrors.PlacementError
		validation *apperrors.ValidationError
		notFound   *apperrors.NotFoundError
		conflict   *apperrors.ConflictError
		forbidden  *apperrors.ForbiddenError
		fatal      *apperrors.FatalError
	)

	switch {
	case errors.As(err, &placement):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": fiber.Map{
				fmt.Sprint(placement.CartLineID): fiber.Map{
					fmt.Sprint(placement.StockPositionID): fiber.Map{
						string(placement.Rule): placement.Message,
					},
				},
			},
		})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": validation.Fields,
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"errors": fiber.Map{notFound.Resource: []string{notFound.Error()}},
		})
	case errors.As(err, &conflict):
		// Stale client view of uniqueness constraints; reported as a
		// correctable request problem.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": fiber.Map{"conflict": []string{conflict.Message}},
		})
	case errors.As(err, &forbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"errors": fiber.Map{"permission": []string{forbidden.Message}},
		})
	case errors.As(err, &fatal):
		log.Printf("FATAL: %v", fatal)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error; the operation may have left inconsistent state",
		})
	default:
		log.Printf("Unhandled error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}
}

// writeValidationErrors converts validator output on a request DTO
// into the field-level 400 response.
func writeValidationErrors(c *fiber.Ctx, err error) error {
	verr := &apperrors.ValidationError{}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range fieldErrs {
			verr.Add(fieldErr.Namespace(), fmt.Sprintf("failed %q validation", fieldErr.Tag()))
		}
	} else {
		verr.Add("body", err.Error())
	}
	return writeError(c, verr)
}
