package core

import "context"

// Authenticator decides whether a bearer token may call the /v1 routes.
// It returns an *types.AppError with an auth_ code on rejection.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) error
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}
