package constant

const (
	DefaultTokenType = "Bearer"

	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"

	// Fiber locals keys.
	LocalsPrincipal = "principal"
	LocalsRequestID = "requestid"

	TokenPurposeAccess  = "access"
	TokenPurposeRefresh = "refresh"

	DefaultBcryptCost             = 12
	DefaultMaxActiveRefreshTokens = 5
)
