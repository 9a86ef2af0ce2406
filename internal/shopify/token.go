package shopify

import (
	"context"
	"errors"
)

var ErrNoAccessToken = errors.New("no admin access token")

// TokenSource yields the Admin API access token for a shop domain.
type TokenSource interface {
	AccessToken(ctx context.Context, shopDomain string) (string, error)
}

// StaticToken is a custom-app token provisioned through the environment.
type StaticToken string

func (t StaticToken) AccessToken(_ context.Context, _ string) (string, error) {
	if t == "" {
		return "", ErrNoAccessToken
	}
	return string(t), nil
}
