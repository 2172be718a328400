package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gnarhub-backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// Bounds shared by sessions, requests and counter-offers
const (
	RateMin    = 20
	RateMax    = 500
	MessageMax = 1000
	NotesMax   = 500

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, ok := normalizeTime(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(dateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("terrain", func(fl validator.FieldLevel) bool {
		return models.TerrainTag(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("mountain", func(fl validator.FieldLevel) bool {
		_, ok := models.MountainByID(fl.Field().String())
		return ok
	})
	return v
}

// validateStruct runs the struct tags and converts the first failure into a ValidationError
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewValidationError("", "invalid input: %v", err)
	}

	fe := fieldErrs[0]
	return models.NewValidationError(fe.Field(), "%s", describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "hhmm":
		return "must be a time in HH:MM format"
	case "ymd":
		return "must be a date in YYYY-MM-DD format"
	case "terrain":
		return "must be one of park, all-mountain, groomers"
	case "mountain":
		return "unknown mountain"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}

// normalizeTime parses HH:MM (single-digit hours allowed) and returns the two-digit form
func normalizeTime(s string) (string, bool) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(timeLayout), true
}

// timeWindow normalizes start and end and checks that end is after start
func timeWindow(start, end string) (string, string, error) {
	s, ok := normalizeTime(start)
	if !ok {
		return "", "", models.NewValidationError("start_time", "must be a time in HH:MM format")
	}
	e, ok := normalizeTime(end)
	if !ok {
		return "", "", models.NewValidationError("end_time", "must be a time in HH:MM format")
	}
	// two-digit HH:MM strings order the same way the times do
	if e <= s {
		return "", "", models.NewValidationError("end_time", "must be after start_time")
	}
	return s, e, nil
}

func today() string {
	return time.Now().Format(dateLayout)
}

// uniqueTags drops duplicates while keeping the caller's order
func uniqueTags(tags []models.TerrainTag) []models.TerrainTag {
	seen := make(map[models.TerrainTag]bool, len(tags))
	out := make([]models.TerrainTag, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
