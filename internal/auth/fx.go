package auth

import "go.uber.org/fx"

// Module provides the OAuth2 token client.
var Module = fx.Module("auth",
	fx.Provide(NewClient),
)
