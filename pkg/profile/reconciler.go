package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/campushub/identity/pkg/docstore"
	"github.com/campushub/identity/pkg/reservation"
	"github.com/campushub/identity/pkg/sanitizer"
	"github.com/campushub/identity/pkg/scratch"
	"github.com/campushub/identity/pkg/session"
)

// Age thresholds for fallbacks computed from the record itself or the
// e-mail address. Younger records may still be mid-registration.
const (
	DefaultDisplayNameAgeGate = 30 * time.Second
	DefaultAliasAgeGate       = 10 * time.Second
)

// ErrNoProfileSource is returned when the profile document is missing and
// there is no session context to synthesize one from.
var ErrNoProfileSource = errors.New("profile not found and no session to derive one from")

// Reconciler fetches profile documents and opportunistically repairs them.
type Reconciler struct {
	store    docstore.Store
	guard    *reservation.Guard
	pending  scratch.Cache
	sessions *session.Cache

	logger          *slog.Logger
	now             func() time.Time
	displayNameGate time.Duration
	aliasGate       time.Duration
}

// ReconcilerOption configures a Reconciler during construction.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger configures the logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReconcilerClock overrides the time source, used by tests to cross the
// age gates without sleeping.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithAgeGates overrides the fallback age thresholds.
func WithAgeGates(displayName, alias time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.displayNameGate = displayName
		r.aliasGate = alias
	}
}

// NewReconciler creates a profile reconciler. The pending cache and session
// cache are optional signal sources; pass nil to skip them.
func NewReconciler(store docstore.Store, guard *reservation.Guard, pending scratch.Cache, sessions *session.Cache, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:           store,
		guard:           guard,
		pending:         pending,
		sessions:        sessions,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
		displayNameGate: DefaultDisplayNameAgeGate,
		aliasGate:       DefaultAliasAgeGate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchAndRepair reads the profile for uid, applies whatever corrections it
// still needs, and returns the merged result. A missing document is
// replaced with a synthesized minimal profile. Repair is idempotent: a
// second call with no external writes in between proposes nothing.
func (r *Reconciler) FetchAndRepair(ctx context.Context, uid string) (*Profile, error) {
	base, err := r.store.GetDocument(ctx, UsersCollection, uid)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return r.synthesizeDefault(ctx, uid)
		}
		return nil, fmt.Errorf("fetch profile %s: %w", uid, err)
	}

	rctx := r.buildRuleContext(ctx, uid, base)

	// Run the rules over a working view that accumulates proposals, so a
	// later rule sees what an earlier one already fixed.
	working := docstore.CloneDocument(base)
	proposed := docstore.Document{}
	for _, rl := range repairRules {
		correction := rl.apply(working, rctx)
		if len(correction) == 0 {
			continue
		}
		r.logger.DebugContext(ctx, "repair rule proposed correction",
			"rule", rl.name, "uid", uid, "fields", fieldNames(correction))
		for k, v := range correction {
			working[k] = v
			proposed[k] = v
		}
	}

	if len(proposed) == 0 {
		return FromDocument(uid, base), nil
	}

	// Carry preservation fields through every corrective write so a merge
	// by another component cannot orphan them.
	for _, k := range []string{"_preserveUsername", "_preserveClubName", "_preserveDisplayName"} {
		if v, ok := base[k]; ok {
			proposed[k] = v
		}
	}

	proposed = r.dropStaleCorrections(ctx, uid, base, proposed)

	if len(proposed) > 0 {
		if err := r.store.SetDocument(ctx, UsersCollection, uid, proposed, true); err != nil {
			return nil, fmt.Errorf("commit profile repair %s: %w", uid, err)
		}
		r.ensureUsernameReservation(ctx, uid, proposed)
	}

	merged := docstore.CloneDocument(base)
	for k, v := range proposed {
		merged[k] = v
	}
	return FromDocument(uid, merged), nil
}

func (r *Reconciler) buildRuleContext(ctx context.Context, uid string, doc docstore.Document) *ruleContext {
	rctx := &ruleContext{
		uid:             uid,
		now:             r.now(),
		displayNameGate: r.displayNameGate,
		aliasGate:       r.aliasGate,
	}

	if t, ok := docstore.AsTime(doc["createdAt"]); ok {
		rctx.age = rctx.now.Sub(t)
	} else {
		// Unusable createdAt counts as arbitrarily old: the record cannot
		// be shown to be mid-registration, so fallbacks apply.
		rctx.age = time.Duration(1<<62 - 1)
	}

	if r.pending != nil {
		rctx.pending = scratch.LoadPendingProfile(ctx, r.pending)
	}
	if r.sessions != nil {
		if s := r.sessions.Current(); s != nil && s.UID == uid {
			rctx.session = s
		}
	}

	// Resolve the reverse lookup up front so the username rule stays pure.
	if strField(doc, "username") == "" && r.guard != nil {
		name, err := r.guard.FindByUID(ctx, reservation.KindUsername, uid)
		switch {
		case err == nil:
			rctx.reservedUsername = name
		case !errors.Is(err, docstore.ErrNotFound):
			r.logger.WarnContext(ctx, "username reverse lookup failed", "uid", uid, "error", err)
		}
	}
	return rctx
}

// dropStaleCorrections re-reads the document and drops every proposed field
// whose fresh value differs from the value the decision was based on and is
// non-empty: the concurrent writer wins. Preservation carry-through fields
// are exempt, they mirror the base by construction.
func (r *Reconciler) dropStaleCorrections(ctx context.Context, uid string, base, proposed docstore.Document) docstore.Document {
	fresh, err := r.store.GetDocument(ctx, UsersCollection, uid)
	if err != nil {
		// The document was just read; on a re-read failure commit what was
		// decided rather than losing the repair.
		r.logger.WarnContext(ctx, "race-guard re-read failed, committing as decided",
			"uid", uid, "error", err)
		return proposed
	}

	out := docstore.Document{}
	for k, v := range proposed {
		freshVal, baseVal := fresh[k], base[k]
		if !reflect.DeepEqual(freshVal, baseVal) && !isEmptyValue(freshVal) {
			r.logger.InfoContext(ctx, "dropping stale correction, concurrent writer wins",
				"uid", uid, "field", k)
			continue
		}
		out[k] = v
	}
	return out
}

// ensureUsernameReservation backfills the reservation for a repaired
// handle. Failures, including conflicts, are logged and non-fatal.
func (r *Reconciler) ensureUsernameReservation(ctx context.Context, uid string, written docstore.Document) {
	username, _ := written["username"].(string)
	if username == "" || r.guard == nil {
		return
	}
	if err := r.guard.Claim(ctx, reservation.KindUsername, username, uid); err != nil {
		r.logger.WarnContext(ctx, "username reservation backfill failed",
			"uid", uid, "username", username, "error", err)
	}
}

// synthesizeDefault builds and persists the minimal profile for an account
// whose document went missing, using the cached session for identity
// attributes.
func (r *Reconciler) synthesizeDefault(ctx context.Context, uid string) (*Profile, error) {
	var sess *session.Session
	if r.sessions != nil {
		if s := r.sessions.Current(); s != nil && s.UID == uid {
			sess = s
		}
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: uid %s", ErrNoProfileSource, uid)
	}

	now := r.now()
	username := sanitizer.EmailLocalPart(sess.Email)
	if username == "" {
		username = generatedHandle(now)
	}

	p := &Profile{
		UID:           uid,
		Email:         sess.Email,
		EmailVerified: sess.EmailVerified,
		DisplayName:   sess.DisplayName,
		Username:      username,
		UserType:      TypeStudent,
		AccountType:   TypeStudent,
		AvatarIcon:    DefaultAvatarIcon,
		AvatarColor:   DefaultAvatarColor,
		CoverIcon:     DefaultCoverIcon,
		CoverColor:    DefaultCoverColor,
		Badges:        []Badge{StarterBadge},
		CreatedAt:     now,
	}
	if p.FullName == "" {
		if p.DisplayName != "" {
			p.FullName = p.DisplayName
		} else if local := sanitizer.EmailLocalPart(p.Email); local != "" {
			p.FullName = local
		} else {
			p.FullName = genericStudentName
		}
	}
	if p.Name == "" {
		if p.DisplayName != "" {
			p.Name = p.DisplayName
		} else {
			p.Name = p.FullName
		}
	}

	if err := r.store.SetDocument(ctx, UsersCollection, uid, p.Document(), true); err != nil {
		return nil, fmt.Errorf("persist synthesized profile %s: %w", uid, err)
	}
	r.logger.InfoContext(ctx, "synthesized missing profile", "uid", uid, "username", username)
	r.ensureUsernameReservation(ctx, uid, docstore.Document{"username": username})
	return p, nil
}

func fieldNames(doc docstore.Document) []string {
	out := make([]string, 0, len(doc))
	for k := range doc {
		out = append(out, k)
	}
	return out
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return isBlank(t)
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
