package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"staybook/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BookingRequest is the input shared by creation and date/accommodation edits.
type BookingRequest struct {
	AccommodationID int64     `validate:"required,gt=0"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required,gtefield=CheckIn"`
}

// dateRange validates the request and returns its normalized day range.
func (r BookingRequest) dateRange() (domain.DateRange, error) {
	r.CheckIn, r.CheckOut = domain.Day(r.CheckIn), domain.Day(r.CheckOut)
	if err := validateStruct(r); err != nil {
		return domain.DateRange{}, err
	}
	return domain.NewDateRange(r.CheckIn, r.CheckOut)
}

type AccommodationInput struct {
	Type         domain.AccommodationType `validate:"required,oneof=HOUSE APARTMENT CONDO VACATION_HOME"`
	Location     string                   `validate:"required,max=255"`
	Size         string                   `validate:"max=64"`
	Amenities    []string                 `validate:"dive,required,max=64"`
	DailyRate    domain.Money             `validate:"gt=0"`
	Availability int                      `validate:"gte=1"`
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}
