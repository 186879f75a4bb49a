package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/todoapp/auth-service/internal/config"
	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
)

// GoogleProvider implements Provider for Google sign-in. The stable account
// key is the id_token "sub" claim.
type GoogleProvider struct {
	config *oauth2.Config
}

func NewGoogleProvider(cfg config.OAuthProviderConfig) *GoogleProvider {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint:     google.Endpoint,
	}
	if len(oauthConfig.Scopes) == 0 {
		oauthConfig.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.AuthURL != "" && cfg.TokenURL != "" {
		oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	}
	return &GoogleProvider{config: oauthConfig}
}

func (p *GoogleProvider) Kind() models.IdentityKind {
	return models.IdentityGoogle
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) ExchangeProfile(ctx context.Context, code string) (*models.ProviderIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: google code exchange failed: %v", domainErrors.ErrUnavailable, err)
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%w: google response carries no id_token", domainErrors.ErrInvalidToken)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeIDTokenClaims(idToken, &claims); err != nil {
		return nil, err
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("%w: google id_token missing subject", domainErrors.ErrInvalidToken)
	}

	return &models.ProviderIdentity{
		Provider: models.IdentityGoogle,
		Subject:  claims.Sub,
		Email:    claims.Email,
		FullName: claims.Name,
	}, nil
}

var _ Provider = (*GoogleProvider)(nil)
