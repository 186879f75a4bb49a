package oauth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/todoapp/auth-service/internal/config"
	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
)

// MicrosoftProvider implements Provider for Microsoft sign-in. Accounts are
// keyed by the (tid, oid) claim pair: the oid alone is only unique within a
// tenant.
type MicrosoftProvider struct {
	config *oauth2.Config
}

func NewMicrosoftProvider(cfg config.OAuthProviderConfig) *MicrosoftProvider {
	tenant := cfg.TenantID
	if tenant == "" {
		tenant = "common"
	}
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
	}
	if len(oauthConfig.Scopes) == 0 {
		oauthConfig.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.AuthURL != "" && cfg.TokenURL != "" {
		oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	}
	return &MicrosoftProvider{config: oauthConfig}
}

func (p *MicrosoftProvider) Kind() models.IdentityKind {
	return models.IdentityMicrosoft
}

func (p *MicrosoftProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *MicrosoftProvider) ExchangeProfile(ctx context.Context, code string) (*models.ProviderIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: microsoft code exchange failed: %v", domainErrors.ErrUnavailable, err)
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%w: microsoft response carries no id_token", domainErrors.ErrInvalidToken)
	}

	var claims struct {
		OID               string `json:"oid"`
		TID               string `json:"tid"`
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
		Name              string `json:"name"`
	}
	if err := decodeIDTokenClaims(idToken, &claims); err != nil {
		return nil, err
	}

	objectID, err := uuid.Parse(claims.OID)
	if err != nil {
		return nil, fmt.Errorf("%w: microsoft id_token missing object id", domainErrors.ErrInvalidToken)
	}
	tenantID, err := uuid.Parse(claims.TID)
	if err != nil {
		return nil, fmt.Errorf("%w: microsoft id_token missing tenant id", domainErrors.ErrInvalidToken)
	}

	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}

	return &models.ProviderIdentity{
		Provider: models.IdentityMicrosoft,
		Subject:  fmt.Sprintf("%s:%s", tenantID, objectID),
		TenantID: &tenantID,
		ObjectID: &objectID,
		Email:    email,
		FullName: claims.Name,
	}, nil
}

var _ Provider = (*MicrosoftProvider)(nil)
