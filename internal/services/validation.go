package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ledgeraddr", func(fl validator.FieldLevel) bool {
		return addressPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("rarity", func(fl validator.FieldLevel) bool {
		return models.Rarity(fl.Field().Uint()).Valid()
	})
	return v
}

// Validate checks a request struct against its validate tags. Failures are
// apperrors.ErrValidation.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ErrValidation.MsgErr("invalid request", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperrors.ErrValidation.MsgErr(strings.Join(msgs, "; "), err)
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "ledgeraddr":
		return fmt.Sprintf("%s must be 0x followed by 64 hex digits", field)
	case "rarity":
		return fmt.Sprintf("%s must be between %d and %d", field, models.RarityCommon, models.RarityEpic)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uri":
		return fmt.Sprintf("%s must be a valid URI", field)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
