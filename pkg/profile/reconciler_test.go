package profile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/identity/pkg/docstore"
	"github.com/campushub/identity/pkg/kv"
	"github.com/campushub/identity/pkg/profile"
	"github.com/campushub/identity/pkg/reservation"
	"github.com/campushub/identity/pkg/scratch"
	"github.com/campushub/identity/pkg/session"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *docstore.Memory
	guard    *reservation.Guard
	pending  scratch.Cache
	sessions *session.Cache
	rec      *profile.Reconciler
}

func newFixture(t *testing.T, opts ...profile.ReconcilerOption) *fixture {
	t.Helper()
	store := docstore.NewMemory()
	guard := reservation.NewGuard(store)
	pending := scratch.NewMemory()
	sessions := session.NewCache(kv.NewMemory())

	opts = append([]profile.ReconcilerOption{
		profile.WithReconcilerClock(func() time.Time { return testNow }),
	}, opts...)

	return &fixture{
		store:    store,
		guard:    guard,
		pending:  pending,
		sessions: sessions,
		rec:      profile.NewReconciler(store, guard, pending, sessions, opts...),
	}
}

// seed writes a raw user document with createdAt already past both age
// gates unless the test overrides it.
func (f *fixture) seed(t *testing.T, uid string, doc docstore.Document) {
	t.Helper()
	if _, ok := doc["createdAt"]; !ok {
		doc["createdAt"] = testNow.Add(-time.Hour)
	}
	require.NoError(t, f.store.SetDocument(context.Background(), profile.UsersCollection, uid, doc, false))
}

func (f *fixture) stored(t *testing.T, uid string) docstore.Document {
	t.Helper()
	doc, err := f.store.GetDocument(context.Background(), profile.UsersCollection, uid)
	require.NoError(t, err)
	return doc
}

func TestFetchAndRepair_AvatarDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fills missing avatar and cover", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u1", docstore.Document{
			"email":    "ada@uni.edu",
			"username": "ada",
			"userType": profile.TypeStudent,
			"fullName": "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, profile.DefaultAvatarIcon, p.AvatarIcon)
		assert.Equal(t, profile.DefaultAvatarColor, p.AvatarColor)
		assert.Equal(t, profile.DefaultCoverIcon, p.CoverIcon)
		assert.Equal(t, profile.DefaultCoverColor, p.CoverColor)
	})

	t.Run("leaves custom images alone", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u1", docstore.Document{
			"email":        "ada@uni.edu",
			"username":     "ada",
			"userType":     profile.TypeStudent,
			"fullName":     "Ada Lovelace",
			"profileImage": "https://cdn/x.jpg",
			"coverImage":   "https://cdn/y.jpg",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, p.AvatarIcon)
		assert.Empty(t, p.CoverIcon)
	})
}

func TestFetchAndRepair_UserType(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("club signals promote a blank type", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "c1", docstore.Document{
			"email":    "board@uni.edu",
			"username": "chess",
			"clubName": "Satranç Kulübü",
		})

		p, err := f.rec.FetchAndRepair(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, profile.TypeClub, p.UserType)
		assert.Equal(t, profile.TypeClub, p.AccountType)
	})

	t.Run("club keyword in bio promotes a student record", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "c2", docstore.Document{
			"email":    "board@uni.edu",
			"username": "dans",
			"userType": profile.TypeStudent,
			"bio":      "Üniversitenin dans KULÜP hesabı",
		})

		p, err := f.rec.FetchAndRepair(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, profile.TypeClub, p.UserType)
	})

	t.Run("a club is never downgraded", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		// No club signals left on the document at all.
		f.seed(t, "c3", docstore.Document{
			"email":    "board@uni.edu",
			"username": "quiet",
			"userType": profile.TypeClub,
		})

		p, err := f.rec.FetchAndRepair(ctx, "c3")
		require.NoError(t, err)
		assert.Equal(t, profile.TypeClub, p.UserType)
		assert.Equal(t, profile.TypeClub, p.AccountType)
	})

	t.Run("blank type without signals defaults to student", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "s1", docstore.Document{
			"email":    "ada@uni.edu",
			"username": "ada",
			"fullName": "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, profile.TypeStudent, p.UserType)
	})
}

func TestFetchAndRepair_Username(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("restores a preserved handle over the email-derived one", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u1", docstore.Document{
			"email":             "ada@uni.edu",
			"username":          "ada", // exactly the local part: corruption signature
			"_preserveUsername": "ada_lovelace",
			"userType":          profile.TypeStudent,
			"fullName":          "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "ada_lovelace", p.Username)

		// The repaired handle is reserved again.
		name, err := f.guard.FindByUID(ctx, reservation.KindUsername, "u1")
		require.NoError(t, err)
		assert.Equal(t, "ada_lovelace", name)
	})

	t.Run("keeps a distinct stored handle", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u2", docstore.Document{
			"email":             "ada@uni.edu",
			"username":          "countess",
			"_preserveUsername": "ada_lovelace",
			"userType":          profile.TypeStudent,
			"fullName":          "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "countess", p.Username)
	})

	t.Run("backfills from the pending snapshot", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		require.NoError(t, scratch.SavePendingProfile(ctx, f.pending, scratch.PendingProfile{
			Username: "fresh_handle",
		}, scratch.DefaultPendingTTL))
		f.seed(t, "u3", docstore.Document{
			"email":    "ada@uni.edu",
			"userType": profile.TypeStudent,
			"fullName": "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u3")
		require.NoError(t, err)
		assert.Equal(t, "fresh_handle", p.Username)
	})

	t.Run("backfills from the reservation reverse lookup", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		require.NoError(t, f.guard.Claim(ctx, reservation.KindUsername, "reserved_one", "u4"))
		f.seed(t, "u4", docstore.Document{
			"email":    "ada@uni.edu",
			"userType": profile.TypeStudent,
			"fullName": "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u4")
		require.NoError(t, err)
		assert.Equal(t, "reserved_one", p.Username)
	})

	t.Run("falls back to the email local part", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u5", docstore.Document{
			"email":    "Ada.L@uni.edu",
			"userType": profile.TypeStudent,
			"fullName": "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u5")
		require.NoError(t, err)
		assert.Equal(t, "ada.l", p.Username)
	})

	t.Run("generates a handle when nothing else exists", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u6", docstore.Document{
			"userType": profile.TypeStudent,
			"fullName": "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u6")
		require.NoError(t, err)
		assert.Regexp(t, `^user\d{6}$`, p.Username)
	})
}

func TestFetchAndRepair_DisplayName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("replaces an email-like display name", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u1", docstore.Document{
			"email":       "ada@uni.edu",
			"username":    "ada_lovelace",
			"displayName": "ada@uni.edu",
			"firstName":   "Ada",
			"lastName":    "Lovelace",
			"userType":    profile.TypeStudent,
			"fullName":    "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", p.DisplayName)
	})

	t.Run("generic club name yields to the preserved one", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "c1", docstore.Document{
			"email":                "board@uni.edu",
			"username":             "chess",
			"userType":             profile.TypeClub,
			"accountType":          profile.TypeClub,
			"displayName":          "Kullanıcı",
			"clubName":             "Satranç Kulübü",
			"_preserveDisplayName": "Satranç Kulübü",
		})

		p, err := f.rec.FetchAndRepair(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "Satranç Kulübü", p.DisplayName)
	})

	t.Run("young record is not given a computed fallback", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u2", docstore.Document{
			"email":     "ada@uni.edu",
			"username":  "ada_lovelace",
			"userType":  profile.TypeStudent,
			"fullName":  "Ada Lovelace",
			"createdAt": testNow.Add(-5 * time.Second),
		})

		p, err := f.rec.FetchAndRepair(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, p.DisplayName)

		// The same record past the gate gets the fallback.
		f2 := newFixture(t)
		f2.seed(t, "u2", docstore.Document{
			"email":     "ada@uni.edu",
			"username":  "ada_lovelace",
			"userType":  profile.TypeStudent,
			"fullName":  "Ada Lovelace",
			"createdAt": testNow.Add(-time.Minute),
		})

		p2, err := f2.rec.FetchAndRepair(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", p2.DisplayName)
	})
}

func TestFetchAndRepair_NameAlias(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("undefined alias mirrors the repaired display name", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u1", docstore.Document{
			"email":       "ada@uni.edu",
			"username":    "ada_lovelace",
			"displayName": "ada@uni.edu",
			"name":        "undefined",
			"firstName":   "Ada",
			"lastName":    "Lovelace",
			"userType":    profile.TypeStudent,
			"fullName":    "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u1")
		require.NoError(t, err)

		// The alias rule runs last and sees the display-name proposal.
		assert.Equal(t, "Ada Lovelace", p.DisplayName)
		assert.Equal(t, "Ada Lovelace", p.Name)
	})

	t.Run("intact alias is untouched", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "u2", docstore.Document{
			"email":       "ada@uni.edu",
			"username":    "ada_lovelace",
			"displayName": "Ada L.",
			"name":        "Ada L.",
			"userType":    profile.TypeStudent,
			"fullName":    "Ada Lovelace",
		})

		p, err := f.rec.FetchAndRepair(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "Ada L.", p.Name)
	})
}

func TestFetchAndRepair_ClubMetadata(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "c1", docstore.Document{
		"email":       "board@uni.edu",
		"username":    "chess",
		"userType":    profile.TypeClub,
		"accountType": profile.TypeClub,
		"displayName": "Satranç Kulübü",
		"clubName":    "Satranç Kulübü",
		"clubTypeId":  "hobby",
	})

	p, err := f.rec.FetchAndRepair(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "other", p.University)
	assert.Equal(t, "hobby", p.ClubType)
	assert.Equal(t, []string{"hobby"}, p.ClubTypes)
}

func TestFetchAndRepair_CreatedAtAndBadges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.SetDocument(ctx, profile.UsersCollection, "u1", docstore.Document{
		"email":    "ada@uni.edu",
		"username": "ada_lovelace",
		"userType": profile.TypeStudent,
		"fullName": "Ada Lovelace",
		// no createdAt, no badges
	}, false))

	p, err := f.rec.FetchAndRepair(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, testNow.Equal(p.CreatedAt))
	require.Len(t, p.Badges, 1)
	assert.Equal(t, profile.StarterBadge, p.Badges[0])
}

func TestFetchAndRepair_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "u1", docstore.Document{
		"email":       "ada@uni.edu",
		"displayName": "ada@uni.edu",
		"name":        "undefined",
		"firstName":   "Ada",
		"lastName":    "Lovelace",
	})

	first, err := f.rec.FetchAndRepair(ctx, "u1")
	require.NoError(t, err)

	afterFirst := f.stored(t, "u1")

	second, err := f.rec.FetchAndRepair(ctx, "u1")
	require.NoError(t, err)

	// A second pass changes nothing: same result, same stored document.
	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst, f.stored(t, "u1"))
}

func TestFetchAndRepair_PreservationFieldsSurviveCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "u1", docstore.Document{
		"email":             "ada@uni.edu",
		"username":          "ada", // triggers the corruption repair
		"_preserveUsername": "ada_lovelace",
		"userType":          profile.TypeStudent,
		"fullName":          "Ada Lovelace",
	})

	_, err := f.rec.FetchAndRepair(ctx, "u1")
	require.NoError(t, err)

	doc := f.stored(t, "u1")
	assert.Equal(t, "ada_lovelace", doc["_preserveUsername"])
}

func TestFetchAndRepair_MissingDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("synthesizes from the session", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.sessions.Save(ctx, &session.Session{
			UID:         "u1",
			Email:       "ada@uni.edu",
			DisplayName: "Ada",
			SavedAt:     testNow,
			Origin:      session.OriginLive,
		})

		p, err := f.rec.FetchAndRepair(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "ada@uni.edu", p.Email)
		assert.Equal(t, "ada", p.Username)
		assert.Equal(t, profile.TypeStudent, p.UserType)
		assert.Equal(t, profile.DefaultAvatarIcon, p.AvatarIcon)
		require.Len(t, p.Badges, 1)

		// Persisted, and the handle reserved.
		doc := f.stored(t, "u1")
		assert.Equal(t, "ada", doc["username"])
		name, err := f.guard.FindByUID(ctx, reservation.KindUsername, "u1")
		require.NoError(t, err)
		assert.Equal(t, "ada", name)
	})

	t.Run("fails without a session to derive from", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.rec.FetchAndRepair(ctx, "ghost")
		require.ErrorIs(t, err, profile.ErrNoProfileSource)
	})
}

// interceptStore wraps Memory and lets a test mutate the stored document
// between the reconciler's base read and its race-guard re-read.
type interceptStore struct {
	*docstore.Memory
	mu    sync.Mutex
	reads int
	onGet func(read int)
}

func (s *interceptStore) GetDocument(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	s.reads++
	n := s.reads
	s.mu.Unlock()
	if s.onGet != nil {
		s.onGet(n)
	}
	return s.Memory.GetDocument(ctx, collection, id)
}

func TestFetchAndRepair_RaceGuard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := docstore.NewMemory()
	store := &interceptStore{Memory: mem}

	require.NoError(t, mem.SetDocument(ctx, profile.UsersCollection, "u1", docstore.Document{
		"email":     "ada@uni.edu",
		"username":  "ada_lovelace",
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"userType":  profile.TypeStudent,
		"fullName":  "Ada Lovelace",
		"createdAt": testNow.Add(-time.Hour),
		// displayName blank: the reconciler will propose a fallback.
	}, false))

	// Simulate a concurrent writer landing between the base read and the
	// race-guard re-read.
	store.onGet = func(read int) {
		if read == 2 {
			require.NoError(t, mem.SetDocument(ctx, profile.UsersCollection, "u1", docstore.Document{
				"displayName": "Concurrent Winner",
			}, true))
		}
	}

	rec := profile.NewReconciler(store, reservation.NewGuard(mem), nil, nil,
		profile.WithReconcilerClock(func() time.Time { return testNow }))

	_, err := rec.FetchAndRepair(ctx, "u1")
	require.NoError(t, err)

	// The concurrent write wins; the reconciler's fallback is dropped.
	doc, err := mem.GetDocument(ctx, profile.UsersCollection, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Concurrent Winner", doc["displayName"])

	// Unrelated proposals still landed.
	assert.Contains(t, doc, "avatarIcon")
}
