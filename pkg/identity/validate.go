package identity

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Validate checks the login payload.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&c.Password,
			validation.Required,
		),
	)
}

// Validate checks the registration payload for presence only. Length and
// strength rules belong to the identity service, whose messages reach the
// caller untouched.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type validatable interface {
	Validate() error
}

// checkRequest runs v.Validate when client-side validation is enabled and
// converts the result into a KindValidation failure.
func (c *Client) checkRequest(v validatable) error {
	if !c.ValidateRequests {
		return nil
	}

	err := v.Validate()
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return &Failure{Kind: KindValidation, Message: "invalid request", Err: err}
	}

	fields := make(map[string][]string, len(errs))
	for field, fe := range errs {
		if fe == nil {
			continue
		}
		fields[field] = append(fields[field], fe.Error())
	}
	return &Failure{
		Kind:    KindValidation,
		Message: "The given data was invalid.",
		Fields:  fields,
	}
}
