package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
)

func registerPendingUser(t *testing.T, env *testEnv, email, password string) *models.User {
	t.Helper()
	user, err := env.auth.Register(context.Background(), models.RegisterInput{
		Email:    email,
		Password: password,
		FullName: "Pending User",
	}, testMeta)
	require.NoError(t, err)
	return user
}

func TestConfirmEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("VerifiesAndUnlocksLogin", func(t *testing.T) {
		env := newTestEnv(t)
		user := registerPendingUser(t, env, "alice@example.com", "Str0ngEnough")

		token, err := env.verification.IssueVerificationToken(ctx, user)
		require.NoError(t, err)
		env.verification.Flush()
		assert.Equal(t, token, env.mailer.verificationTokens["alice@example.com"])

		_, err = env.auth.Login(ctx, "alice@example.com", "Str0ngEnough", testMeta)
		require.ErrorIs(t, err, domainErrors.ErrEmailNotVerified)

		verified, err := env.verification.ConfirmEmail(ctx, token, testMeta)
		require.NoError(t, err)
		assert.True(t, verified.EmailVerified())

		_, err = env.auth.Login(ctx, "alice@example.com", "Str0ngEnough", testMeta)
		assert.NoError(t, err)
	})

	t.Run("ReplayAfterVerificationSucceeds", func(t *testing.T) {
		env := newTestEnv(t)
		user := registerPendingUser(t, env, "alice@example.com", "Str0ngEnough")

		token, err := env.verification.IssueVerificationToken(ctx, user)
		require.NoError(t, err)

		_, err = env.verification.ConfirmEmail(ctx, token, testMeta)
		require.NoError(t, err)

		// Double-clicking the mail link must not error.
		again, err := env.verification.ConfirmEmail(ctx, token, testMeta)
		require.NoError(t, err)
		assert.True(t, again.EmailVerified())
	})

	t.Run("UnknownTokenRejected", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.verification.ConfirmEmail(ctx, "never-issued", testMeta)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)
	})

	t.Run("ExpiredTokenRejected", func(t *testing.T) {
		env := newTestEnv(t)
		user := registerPendingUser(t, env, "alice@example.com", "Str0ngEnough")

		token, err := env.verification.IssueVerificationToken(ctx, user)
		require.NoError(t, err)

		env.tokens.mu.Lock()
		for _, stored := range env.tokens.tokens {
			stored.ExpiresAt = time.Now().Add(-time.Minute)
		}
		env.tokens.mu.Unlock()

		_, err = env.verification.ConfirmEmail(ctx, token, testMeta)
		assert.ErrorIs(t, err, domainErrors.ErrExpiredToken)
	})

	t.Run("ReissueInvalidatesPreviousToken", func(t *testing.T) {
		env := newTestEnv(t)
		user := registerPendingUser(t, env, "alice@example.com", "Str0ngEnough")

		first, err := env.verification.IssueVerificationToken(ctx, user)
		require.NoError(t, err)
		second, err := env.verification.IssueVerificationToken(ctx, user)
		require.NoError(t, err)

		_, err = env.verification.ConfirmEmail(ctx, first, testMeta)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidToken)

		_, err = env.verification.ConfirmEmail(ctx, second, testMeta)
		assert.NoError(t, err)
	})
}

func TestRequestVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("SilentForUnknownAddress", func(t *testing.T) {
		env := newTestEnv(t)
		assert.NoError(t, env.verification.RequestVerification(ctx, "ghost@example.com", testMeta))
		env.verification.Flush()
		assert.Empty(t, env.mailer.verificationTokens)
	})

	t.Run("SilentForVerifiedAccount", func(t *testing.T) {
		env := newTestEnv(t)
		registerVerifiedUser(t, env, "alice@example.com", "Str0ngEnough")

		assert.NoError(t, env.verification.RequestVerification(ctx, "alice@example.com", testMeta))
		env.verification.Flush()
		assert.Empty(t, env.mailer.verificationTokens)
	})

	t.Run("SendsForPendingAccount", func(t *testing.T) {
		env := newTestEnv(t)
		registerPendingUser(t, env, "alice@example.com", "Str0ngEnough")

		require.NoError(t, env.verification.RequestVerification(ctx, "Alice@Example.com", testMeta))
		env.verification.Flush()
		assert.NotEmpty(t, env.mailer.verificationTokens["alice@example.com"])
	})
}

func TestMailDeliveryOffRequestPath(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	registerVerifiedUser(t, env, "alice@example.com", "Str0ngEnough")

	mailer := newGatedMailer()
	verification := env.withMailer(mailer)

	// The request must return while the mailer is still blocked.
	done := make(chan error, 1)
	go func() {
		done <- verification.RequestPasswordReset(ctx, "alice@example.com", testMeta)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("password reset request waited on mail delivery")
	}

	close(mailer.release)
	verification.Flush()
	select {
	case to := <-mailer.sent:
		assert.Equal(t, "alice@example.com", to)
	default:
		t.Fatal("reset email was never delivered")
	}
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("ChangesPasswordAndRevokesSessions", func(t *testing.T) {
		env := newTestEnv(t)
		user := registerVerifiedUser(t, env, "alice@example.com", "Str0ngEnough")

		_, err := env.auth.Login(ctx, "alice@example.com", "Str0ngEnough", testMeta)
		require.NoError(t, err)
		require.Equal(t, 1, env.sessions.activeCount(user.ID))

		require.NoError(t, env.verification.RequestPasswordReset(ctx, "alice@example.com", testMeta))
		env.verification.Flush()
		token := env.mailer.resetTokens["alice@example.com"]
		require.NotEmpty(t, token)

		require.NoError(t, env.verification.ResetPassword(ctx, token, "Fresh1Password", testMeta))

		assert.Equal(t, 0, env.sessions.activeCount(user.ID))

		_, err = env.auth.Login(ctx, "alice@example.com", "Str0ngEnough", testMeta)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidCredentials)
		_, err = env.auth.Login(ctx, "alice@example.com", "Fresh1Password", testMeta)
		assert.NoError(t, err)
	})

	t.Run("ConsumedTokenAlwaysFails", func(t *testing.T) {
		env := newTestEnv(t)
		registerVerifiedUser(t, env, "alice@example.com", "Str0ngEnough")

		require.NoError(t, env.verification.RequestPasswordReset(ctx, "alice@example.com", testMeta))
		env.verification.Flush()
		token := env.mailer.resetTokens["alice@example.com"]

		require.NoError(t, env.verification.ResetPassword(ctx, token, "Fresh1Password", testMeta))
		err := env.verification.ResetPassword(ctx, token, "An0therPassword", testMeta)
		assert.ErrorIs(t, err, domainErrors.ErrTokenConsumed)
	})

	t.Run("NewPasswordMustPassPolicy", func(t *testing.T) {
		env := newTestEnv(t)
		registerVerifiedUser(t, env, "alice@example.com", "Str0ngEnough")

		require.NoError(t, env.verification.RequestPasswordReset(ctx, "alice@example.com", testMeta))
		env.verification.Flush()
		token := env.mailer.resetTokens["alice@example.com"]

		var vErr *domainErrors.ValidationError
		err := env.verification.ResetPassword(ctx, token, "weak", testMeta)
		require.ErrorAs(t, err, &vErr)

		// The policy rejection must not burn the token.
		assert.NoError(t, env.verification.ResetPassword(ctx, token, "Fresh1Password", testMeta))
	})

	t.Run("ExpiredTokenRejected", func(t *testing.T) {
		env := newTestEnv(t)
		registerVerifiedUser(t, env, "alice@example.com", "Str0ngEnough")

		require.NoError(t, env.verification.RequestPasswordReset(ctx, "alice@example.com", testMeta))
		env.verification.Flush()
		token := env.mailer.resetTokens["alice@example.com"]

		env.tokens.mu.Lock()
		for _, stored := range env.tokens.tokens {
			stored.ExpiresAt = time.Now().Add(-time.Minute)
		}
		env.tokens.mu.Unlock()

		err := env.verification.ResetPassword(ctx, token, "Fresh1Password", testMeta)
		assert.ErrorIs(t, err, domainErrors.ErrExpiredToken)
	})
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("SilentForUnknownAddress", func(t *testing.T) {
		env := newTestEnv(t)
		assert.NoError(t, env.verification.RequestPasswordReset(ctx, "ghost@example.com", testMeta))
		env.verification.Flush()
		assert.Empty(t, env.mailer.resetTokens)
	})

	t.Run("SilentForAccountWithoutLocalIdentity", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.identity.FindOrCreateFromProvider(ctx,
			googleIdentity("google-sub-1", "oauth-only@gmail.com"), testMeta)
		require.NoError(t, err)

		assert.NoError(t, env.verification.RequestPasswordReset(ctx, "oauth-only@gmail.com", testMeta))
		env.verification.Flush()
		assert.Empty(t, env.mailer.resetTokens)
	})
}
