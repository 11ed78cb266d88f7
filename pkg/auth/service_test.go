package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/identity/pkg/auth"
	"github.com/campushub/identity/pkg/docstore"
	"github.com/campushub/identity/pkg/idp"
	"github.com/campushub/identity/pkg/kv"
	"github.com/campushub/identity/pkg/profile"
	"github.com/campushub/identity/pkg/reservation"
	"github.com/campushub/identity/pkg/session"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	provider *idp.MemoryProvider
	store    *docstore.Memory
	sessions *session.Cache
	durable  *kv.Memory
	svc      *auth.Service
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		provider: idp.NewMemoryProvider(idp.WithBcryptCost(4)),
		store:    docstore.NewMemory(),
		durable:  kv.NewMemory(),
		now:      testNow,
	}
	f.sessions = session.NewCache(f.durable)
	clock := func() time.Time { return f.now }

	rec := profile.NewReconciler(
		f.store,
		reservation.NewGuard(f.store),
		nil,
		f.sessions,
		profile.WithReconcilerClock(clock),
	)
	f.svc = auth.NewService(f.provider, f.sessions, rec, f.store,
		auth.WithServiceClock(clock))
	return f
}

// registerAccount creates a provider account with a matching profile
// document and signs the provider out again.
func (f *fixture) registerAccount(t *testing.T, email, password, username string) string {
	t.Helper()
	ctx := context.Background()

	acct, err := f.provider.CreateAccount(ctx, email, password)
	require.NoError(t, err)
	require.NoError(t, f.store.SetDocument(ctx, profile.UsersCollection, acct.UID, docstore.Document{
		"email":       email,
		"username":    username,
		"displayName": "Ada Lovelace",
		"fullName":    "Ada Lovelace",
		"name":        "Ada Lovelace",
		"userType":    profile.TypeStudent,
		"accountType": profile.TypeStudent,
		"avatarIcon":  profile.DefaultAvatarIcon,
		"avatarColor": profile.DefaultAvatarColor,
		"coverIcon":   profile.DefaultCoverIcon,
		"coverColor":  profile.DefaultCoverColor,
		"badges":      []any{map[string]any{"name": "Yeni Üye", "icon": "star", "color": "#FFD700"}},
		"createdAt":   testNow.Add(-time.Hour),
	}, false))
	require.NoError(t, f.provider.SignOut(ctx))
	f.sessions.Clear(ctx)
	return acct.UID
}

func TestService_SignIn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rejects malformed email locally", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.svc.SignIn(ctx, "not an email", "secret-pw", false)
		require.ErrorIs(t, err, auth.ErrInvalidEmail)
	})

	t.Run("rejects short password locally", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.svc.SignIn(ctx, "ada@uni.edu", "12345", false)
		require.ErrorIs(t, err, auth.ErrPasswordTooShort)
	})

	t.Run("successful sign-in establishes session and profile", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		uid := f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")

		res, err := f.svc.SignIn(ctx, " Ada@Uni.EDU ", "secret-pw", true)
		require.NoError(t, err)
		require.NotNil(t, res.Session)
		require.NotNil(t, res.Profile)

		assert.Equal(t, uid, res.Session.UID)
		assert.Equal(t, session.OriginLive, res.Session.Origin)
		assert.True(t, res.Session.RememberMe)
		assert.Empty(t, res.Session.Token())
		assert.Equal(t, "ada_lovelace", res.Profile.Username)

		// Session cached in memory and mirrored to the durable backup.
		require.NotNil(t, f.sessions.Current())
		_, err = f.durable.GetItem(ctx, session.BackupKey)
		require.NoError(t, err)
	})

	t.Run("session carries the repaired user type", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		acct, err := f.provider.CreateAccount(ctx, "board@uni.edu", "secret-pw")
		require.NoError(t, err)
		require.NoError(t, f.store.SetDocument(ctx, profile.UsersCollection, acct.UID, docstore.Document{
			"email":     "board@uni.edu",
			"username":  "chessclub",
			"clubName":  "Satranç Kulübü",
			"createdAt": testNow.Add(-time.Hour),
		}, false))
		require.NoError(t, f.provider.SignOut(ctx))

		res, err := f.svc.SignIn(ctx, "board@uni.edu", "secret-pw", false)
		require.NoError(t, err)
		assert.Equal(t, profile.TypeClub, res.Profile.UserType)
		assert.Equal(t, profile.TypeClub, res.Session.UserType)
		assert.Equal(t, profile.TypeClub, f.sessions.Current().UserType)
	})

	t.Run("categorizes provider failures", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		uid := f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")

		for name, tc := range map[string]struct {
			email    string
			password string
			disable  bool
			want     auth.Category
		}{
			"unknown account": {email: "ghost@uni.edu", password: "secret-pw", want: auth.CategoryBadCredentials},
			"wrong password":  {email: "ada@uni.edu", password: "wrong-pw-1", want: auth.CategoryBadCredentials},
			"disabled":        {email: "ada@uni.edu", password: "secret-pw", disable: true, want: auth.CategoryAccountDisabled},
		} {
			t.Run(name, func(t *testing.T) {
				if tc.disable {
					f.provider.Disable(uid)
					t.Cleanup(func() { f.provider.Enable(uid) })
				}

				_, err := f.svc.SignIn(ctx, tc.email, tc.password, false)
				var sie *auth.SignInError
				require.ErrorAs(t, err, &sie)
				assert.Equal(t, tc.want, sie.Category)
			})
		}
	})
}

func TestService_RestoreSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("nothing to restore", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.svc.RestoreSession(ctx)
		require.ErrorIs(t, err, auth.ErrNoSession)
	})

	t.Run("live provider account wins", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")
		_, err := f.provider.SignIn(ctx, "ada@uni.edu", "secret-pw")
		require.NoError(t, err)

		res, err := f.svc.RestoreSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.OriginLive, res.Session.Origin)
		assert.False(t, res.Session.IsRestored())
		require.NotNil(t, res.Profile)
	})

	t.Run("durable backup restores without a live credential", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")

		res, err := f.svc.SignIn(ctx, "ada@uni.edu", "secret-pw", true)
		require.NoError(t, err)
		savedAt := res.Session.SavedAt

		// Provider loses the credential (token expiry); the memory tier
		// goes with it, the backup stays.
		require.NoError(t, f.provider.SignOut(ctx))
		require.Nil(t, f.sessions.Current())

		restored, err := f.svc.RestoreSession(ctx)
		require.NoError(t, err)
		assert.True(t, restored.Session.IsRestored())
		assert.Equal(t, session.OriginRestored, restored.Session.Origin)
		assert.NotEmpty(t, restored.Session.Token())
		assert.True(t, savedAt.Equal(restored.Session.SavedAt))
	})

	t.Run("backup without remember-me does not restore", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")

		_, err := f.svc.SignIn(ctx, "ada@uni.edu", "secret-pw", false)
		require.NoError(t, err)
		require.NoError(t, f.provider.SignOut(ctx))

		_, err = f.svc.RestoreSession(ctx)
		require.ErrorIs(t, err, auth.ErrNoSession)
	})
}

func TestService_SignOut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")

	_, err := f.svc.SignIn(ctx, "ada@uni.edu", "secret-pw", true)
	require.NoError(t, err)

	require.NoError(t, f.svc.SignOut(ctx))

	assert.Nil(t, f.sessions.Current())
	current, err := f.provider.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	// Explicit sign-out destroys the remember-me backup too.
	_, err = f.durable.GetItem(ctx, session.BackupKey)
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestService_CheckEmailVerification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no signed-in account", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.svc.CheckEmailVerification(ctx)
		require.ErrorIs(t, err, auth.ErrNotSignedIn)
	})

	t.Run("unverified reports false without writes", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		uid := f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")
		_, err := f.svc.SignIn(ctx, "ada@uni.edu", "secret-pw", false)
		require.NoError(t, err)

		verified, err := f.svc.CheckEmailVerification(ctx)
		require.NoError(t, err)
		assert.False(t, verified)

		doc, err := f.store.GetDocument(ctx, profile.UsersCollection, uid)
		require.NoError(t, err)
		assert.NotContains(t, doc, "verifiedAt")
	})

	t.Run("first verified observation is recorded", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		uid := f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")
		_, err := f.svc.SignIn(ctx, "ada@uni.edu", "secret-pw", true)
		require.NoError(t, err)

		f.provider.MarkVerified(uid)

		verified, err := f.svc.CheckEmailVerification(ctx)
		require.NoError(t, err)
		assert.True(t, verified)

		doc, err := f.store.GetDocument(ctx, profile.UsersCollection, uid)
		require.NoError(t, err)
		assert.Equal(t, true, doc["emailVerified"])
		assert.Contains(t, doc, "verifiedAt")

		// The cached session reflects it as well.
		require.NotNil(t, f.sessions.Current())
		assert.True(t, f.sessions.Current().EmailVerified)
	})
}

func TestService_SendEmailVerification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")
	_, err := f.svc.SignIn(ctx, "ada@uni.edu", "secret-pw", false)
	require.NoError(t, err)

	require.NoError(t, f.svc.SendEmailVerification(ctx))
	require.Len(t, f.provider.SentVerificationMails(), 1)

	// Inside the cooldown the request is throttled, with the remaining
	// wait reported.
	f.now = f.now.Add(20 * time.Second)
	err = f.svc.SendEmailVerification(ctx)
	var throttled *auth.VerificationThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, 40*time.Second, throttled.Remaining)
	require.Len(t, f.provider.SentVerificationMails(), 1)

	// Past the cooldown it goes through again.
	f.now = f.now.Add(41 * time.Second)
	require.NoError(t, f.svc.SendEmailVerification(ctx))
	require.Len(t, f.provider.SentVerificationMails(), 2)
}

func TestService_CheckEmailExists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")

	exists, err := f.svc.CheckEmailExists(ctx, "ADA@uni.edu")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.svc.CheckEmailExists(ctx, "ghost@uni.edu")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.svc.CheckEmailExists(ctx, "not an email")
	require.ErrorIs(t, err, auth.ErrInvalidEmail)
}

func TestService_ResetPassword(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")

	t.Run("unregistered address is refused", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, "ghost@uni.edu")
		require.ErrorIs(t, err, auth.ErrEmailNotRegistered)
		assert.Empty(t, f.provider.SentResetMails())
	})

	t.Run("registered address gets the mail", func(t *testing.T) {
		require.NoError(t, f.svc.ResetPassword(ctx, "Ada@uni.edu"))
		assert.Equal(t, []string{"ada@uni.edu"}, f.provider.SentResetMails())
	})
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	for code, want := range map[string]auth.Category{
		idp.CodeUserNotFound:      auth.CategoryBadCredentials,
		idp.CodeWrongPassword:     auth.CategoryBadCredentials,
		idp.CodeInvalidCredential: auth.CategoryBadCredentials,
		idp.CodeInvalidEmail:      auth.CategoryBadCredentials,
		idp.CodeUserDisabled:      auth.CategoryAccountDisabled,
		idp.CodeTooManyRequests:   auth.CategoryThrottled,
		idp.CodeNetworkFailed:     auth.CategoryNetworkUnavailable,
		"something-else":          auth.CategoryUnknown,
	} {
		assert.Equal(t, want, auth.Categorize(code), code)
	}
}

func TestSignInError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := idp.NewError(idp.CodeWrongPassword, "nope")
	f := newFixture(t)
	f.registerAccount(t, "ada@uni.edu", "secret-pw", "ada_lovelace")

	_, err := f.svc.SignIn(context.Background(), "ada@uni.edu", "wrong-pw-1", false)
	var provErr *idp.Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, cause.Code, provErr.Code)
	assert.False(t, errors.Is(err, auth.ErrInvalidEmail))
}
