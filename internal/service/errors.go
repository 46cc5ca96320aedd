package service

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNoCredentials      = errors.New("location has no refresh token")
	ErrReauthRequired     = errors.New("location must be reconnected")
	ErrLocationMissing    = errors.New("post location does not exist")
	ErrNoExternalLocation = errors.New("location has no Google Business Profile id")
	ErrInvalidStatus      = errors.New("post status does not allow this operation")
	ErrForbidden          = errors.New("forbidden")
	ErrQueue              = errors.New("failed to queue post")
	ErrValidation         = errors.New("validation failed")
)

// IsConfigError reports errors a publish can never recover from without the
// user reconnecting or fixing the location.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrLocationMissing) ||
		errors.Is(err, ErrNoExternalLocation) ||
		errors.Is(err, ErrNoCredentials) ||
		errors.Is(err, ErrReauthRequired)
}
