package sale

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNoDraft       = errors.New("no sale draft open")
	ErrUnknownTable  = errors.New("unknown table")
	ErrTableOccupied = errors.New("table occupied, choose another")
	ErrUnknownSale   = errors.New("sale not loaded")
	// ErrSaleNotPending is returned, without calling the backend, for a mutation of a
	// sale whose last known status is not PENDING.
	ErrSaleNotPending = errors.New("sale is not pending")
)

// ValidationError is input rejected before any call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", strings.ToLower(e.Field), e.Message)
}

func fromValidator(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "min":
		return &ValidationError{Field: fe.Field(), Message: "is required"}
	case "gt":
		return &ValidationError{Field: fe.Field(), Message: "must be positive"}
	case "unique":
		return &ValidationError{Field: fe.Field(), Message: "repeats a product"}
	default:
		return &ValidationError{Field: fe.Field(), Message: fmt.Sprintf("failed %q", fe.Tag())}
	}
}
