package common

const (
	// AuthorizationHeaderName is the HTTP header and gRPC metadata key that
	// carries the bearer token.
	AuthorizationHeaderName = "authorization"

	// BearerScheme is the only accepted authorization scheme.
	BearerScheme = "Bearer"

	// LocalProviderName is stored in claims issued by the local provider.
	LocalProviderName = "local"
)
