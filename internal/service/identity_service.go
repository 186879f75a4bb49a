package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
	"github.com/todoapp/auth-service/internal/events/kafka"
)

// IdentityService manages the linked-identity slots of the user aggregate:
// OAuth find-or-create, linking, unlinking and whole-account merges.
type IdentityService struct {
	users  repository.UserRepository
	audit  *AuditService
	events kafka.Publisher
	logger *zap.Logger
}

func NewIdentityService(
	users repository.UserRepository,
	audit *AuditService,
	events kafka.Publisher,
	logger *zap.Logger,
) *IdentityService {
	return &IdentityService{users: users, audit: audit, events: events, logger: logger}
}

// FindOrCreateFromProvider resolves a provider profile to a user: an
// existing user when the provider key is already linked, otherwise a fresh
// account. Provider-asserted emails count as verified, so new OAuth users
// skip the verification flow. A changed provider email is written back so
// the computed primary email stays current.
func (s *IdentityService) FindOrCreateFromProvider(ctx context.Context, identity *models.ProviderIdentity, meta ClientMeta) (*models.User, bool, error) {
	user, err := s.lookupByProviderKey(ctx, identity)
	if err != nil && !errors.Is(err, domainErrors.ErrUserNotFound) {
		return nil, false, err
	}

	if user != nil {
		if s.refreshProviderEmail(user, identity) {
			if err := s.users.Update(ctx, user); err != nil {
				return nil, false, err
			}
			s.audit.Record(&user.ID, models.AuditOAuthEmailUpdated,
				map[string]any{"provider": identity.Provider, "email": identity.Email}, meta.IP, meta.UserAgent)
		}
		return user, false, nil
	}

	now := time.Now()
	user = &models.User{
		ID:              uuid.New(),
		FullName:        identity.FullName,
		Role:            models.RoleGuest,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	applyProviderIdentity(user, identity)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, err
	}

	s.audit.Record(&user.ID, models.AuditOAuthRegister,
		map[string]any{"provider": identity.Provider, "email": identity.Email}, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventUserRegistered, user.ID.String(),
		map[string]any{"user_id": user.ID, "provider": identity.Provider})

	return user, true, nil
}

// LinkIdentity attaches a provider identity to an existing user. Fails with
// ErrSlotOccupied when the user already has that provider linked and with
// ErrIdentityExists when another user holds the provider key.
func (s *IdentityService) LinkIdentity(ctx context.Context, userID uuid.UUID, identity *models.ProviderIdentity, meta ClientMeta) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.HasIdentity(identity.Provider) {
		return domainErrors.ErrSlotOccupied
	}

	existing, err := s.lookupByProviderKey(ctx, identity)
	if err != nil && !errors.Is(err, domainErrors.ErrUserNotFound) {
		return err
	}
	if existing != nil {
		return domainErrors.ErrIdentityExists
	}

	applyProviderIdentity(user, identity)
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.audit.Record(&user.ID, models.AuditIdentityLinked,
		map[string]any{"provider": identity.Provider}, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventIdentityLinked, user.ID.String(),
		map[string]any{"user_id": user.ID, "provider": identity.Provider})

	return nil
}

// UnlinkIdentity detaches one identity slot. The last remaining identity
// can never be removed; that would strand the account.
func (s *IdentityService) UnlinkIdentity(ctx context.Context, userID uuid.UUID, kind models.IdentityKind, meta ClientMeta) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.HasIdentity(kind) {
		return domainErrors.ErrIdentityMissing
	}
	if user.IdentityCount() <= 1 {
		return domainErrors.ErrLastIdentity
	}

	switch kind {
	case models.IdentityLocal:
		user.LocalEnabled = false
		user.LocalUsername = nil
		user.LocalPasswordHash = nil
	case models.IdentityGoogle:
		user.GoogleSub = nil
		user.GoogleEmail = nil
	case models.IdentityMicrosoft:
		user.MSObjectID = nil
		user.MSTenantID = nil
		user.MSEmail = nil
	default:
		return domainErrors.ErrUnknownProvider
	}

	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.audit.Record(&user.ID, models.AuditIdentityUnlinked,
		map[string]any{"provider": kind}, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventIdentityUnlinked, user.ID.String(),
		map[string]any{"user_id": user.ID, "provider": kind})

	return nil
}

// MergeAccounts moves every identity of the source user onto the
// destination and deletes the source. The merge is all-or-nothing: when any
// slot is occupied on both sides the conflicting slots are reported and
// nothing changes. Deleting the source cascades its sessions, tokens and
// todos.
func (s *IdentityService) MergeAccounts(ctx context.Context, actorID *uuid.UUID, destinationID, sourceID uuid.UUID, meta ClientMeta) error {
	if destinationID == sourceID {
		return fmt.Errorf("%w: cannot merge a user into itself", domainErrors.ErrInvalidInput)
	}

	destination, err := s.users.GetByID(ctx, destinationID)
	if err != nil {
		return err
	}
	source, err := s.users.GetByID(ctx, sourceID)
	if err != nil {
		return err
	}

	var conflicts []string
	var moved []string
	for _, kind := range []models.IdentityKind{models.IdentityLocal, models.IdentityGoogle, models.IdentityMicrosoft} {
		if !source.HasIdentity(kind) {
			continue
		}
		if destination.HasIdentity(kind) {
			conflicts = append(conflicts, string(kind))
		} else {
			moved = append(moved, string(kind))
		}
	}
	if len(conflicts) > 0 {
		return &domainErrors.ValidationError{
			AppError: domainErrors.AppError{
				Err:  domainErrors.ErrConflict,
				Msg:  fmt.Sprintf("identity slots already occupied on destination: %s", strings.Join(conflicts, ", ")),
				Code: domainErrors.CodeConflict,
			},
			Violations: conflicts,
		}
	}

	if source.HasLocal() {
		destination.LocalEnabled = source.LocalEnabled
		destination.LocalUsername = source.LocalUsername
		destination.LocalPasswordHash = source.LocalPasswordHash
	}
	if source.HasGoogle() {
		destination.GoogleSub = source.GoogleSub
		destination.GoogleEmail = source.GoogleEmail
	}
	if source.HasMicrosoft() {
		destination.MSObjectID = source.MSObjectID
		destination.MSTenantID = source.MSTenantID
		destination.MSEmail = source.MSEmail
	}
	if !destination.EmailVerified() && source.EmailVerified() {
		destination.EmailVerifiedAt = source.EmailVerifiedAt
	}

	if err := s.users.Merge(ctx, destination, sourceID); err != nil {
		return err
	}

	s.audit.RecordEntity(actorID, models.AuditAccountsMerged, "user", destinationID,
		map[string]any{"source_user_id": sourceID, "moved_identities": moved}, meta.IP, meta.UserAgent)
	s.events.Publish(ctx, kafka.EventAccountsMerged, destinationID.String(),
		map[string]any{"destination_user_id": destinationID, "source_user_id": sourceID})

	return nil
}

func (s *IdentityService) lookupByProviderKey(ctx context.Context, identity *models.ProviderIdentity) (*models.User, error) {
	switch identity.Provider {
	case models.IdentityGoogle:
		return s.users.GetByGoogleSub(ctx, identity.Subject)
	case models.IdentityMicrosoft:
		if identity.TenantID == nil || identity.ObjectID == nil {
			return nil, fmt.Errorf("%w: microsoft identity missing key pair", domainErrors.ErrInvalidInput)
		}
		return s.users.GetByMicrosoftID(ctx, *identity.TenantID, *identity.ObjectID)
	default:
		return nil, domainErrors.ErrUnknownProvider
	}
}

func (s *IdentityService) refreshProviderEmail(user *models.User, identity *models.ProviderIdentity) bool {
	if identity.Email == "" {
		return false
	}
	switch identity.Provider {
	case models.IdentityGoogle:
		if user.GoogleEmail == nil || *user.GoogleEmail != identity.Email {
			email := identity.Email
			user.GoogleEmail = &email
			return true
		}
	case models.IdentityMicrosoft:
		if user.MSEmail == nil || *user.MSEmail != identity.Email {
			email := identity.Email
			user.MSEmail = &email
			return true
		}
	}
	return false
}

func applyProviderIdentity(user *models.User, identity *models.ProviderIdentity) {
	switch identity.Provider {
	case models.IdentityGoogle:
		sub := identity.Subject
		user.GoogleSub = &sub
		if identity.Email != "" {
			email := identity.Email
			user.GoogleEmail = &email
		}
	case models.IdentityMicrosoft:
		user.MSObjectID = identity.ObjectID
		user.MSTenantID = identity.TenantID
		if identity.Email != "" {
			email := identity.Email
			user.MSEmail = &email
		}
	}
}
