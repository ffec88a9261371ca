package auth

// User-facing messages pushed to Client.Errors.
const (
	msgCredentialsRequired = "login and password are required"
	msgPasswordTooShort    = "password must be at least %d characters"
	msgFieldRequired       = "field '%s' is required"
	msgLoginExists         = "login already exists"
	msgInvalidCredentials  = "login or password incorrect"
	msgTooManyAttempts     = "too many failed attempts, try again later"
	msgHookRejected        = "authentication rejected by pre-authentication hook"
	msgUserNotFound        = "user not found"
	msgNoUpdatableFields   = "no updatable fields supplied"
	msgDuplicateField      = "field '%s' is supplied more than once"
	msgTokensDisabled      = "login tokens are not enabled"
	msgInvalidToken        = "invalid or expired token"
)
