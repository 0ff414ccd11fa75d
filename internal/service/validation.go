package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/internal/scoring"
)

// NewValidator returns a validator with the domain tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	registerDomainValidations(v)
	return v
}

func registerDomainValidations(v *validator.Validate) {
	_ = v.RegisterValidation("activity_category", func(fl validator.FieldLevel) bool {
		return scoring.IsKnown(models.ActivityCategory(fl.Field().String()))
	})
	_ = v.RegisterValidation("activity_status", func(fl validator.FieldLevel) bool {
		switch models.ActivityStatus(fl.Field().String()) {
		case models.StatusDone, models.StatusNotDone:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("parent_relation", func(fl validator.FieldLevel) bool {
		switch models.ParentRelation(fl.Field().String()) {
		case models.RelationMother, models.RelationFather, models.RelationSibling, models.RelationOther:
			return true
		}
		return false
	})
}

func ensureValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return NewValidator()
	}
	registerDomainValidations(v)
	return v
}
