// Package identity verifies tokens issued by an external identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Identity is the verified subject of an identity provider token.
type Identity struct {
	UID   string
	Email string
}

// Verifier checks an identity provider token.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

var ErrEmptyToken = errors.New("identity: empty token")

// tokenVerifier is the part of *auth.Client the Firebase verifier needs.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Firebase verifies Firebase ID tokens.
type Firebase struct {
	client tokenVerifier
}

var _ Verifier = (*Firebase)(nil)

// NewFirebase builds a verifier.  serviceAccountJSON may be empty, in which
// case application default credentials are used.
func NewFirebase(ctx context.Context, projectID, serviceAccountJSON string) (*Firebase, error) {
	var opts []option.ClientOption
	if serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &Firebase{client: client}, nil
}

func (f *Firebase) Verify(ctx context.Context, idToken string) (Identity, error) {
	if idToken == "" {
		return Identity{}, ErrEmptyToken
	}
	tok, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	id := Identity{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	return id, nil
}

// Static is a Verifier backed by a fixed token table.  It is used in tests
// and local development.
type Static map[string]Identity

func (s Static) Verify(_ context.Context, idToken string) (Identity, error) {
	if idToken == "" {
		return Identity{}, ErrEmptyToken
	}
	id, ok := s[idToken]
	if !ok {
		return Identity{}, errors.New("identity: unknown token")
	}
	return id, nil
}
