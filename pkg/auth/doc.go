// Package auth drives the identity session lifecycle against a pluggable
// authentication provider.
//
// The Service is the single entry point for credential sign-in, session
// restore, verification-state polling, and sign-out. It keeps the dual-tier
// session cache coherent with the provider and runs profile reconciliation
// after every successful authentication, so callers always observe a
// repaired profile.
//
// # Sessions
//
//	svc := auth.NewService(provider, sessions, reconciler, store)
//
//	res, err := svc.SignIn(ctx, "ada@uni.edu", "secret-pw", true)
//	if err != nil {
//		var sie *auth.SignInError
//		if errors.As(err, &sie) {
//			switch sie.Category {
//			case auth.CategoryBadCredentials:
//				// wrong address or password
//			case auth.CategoryNetworkUnavailable:
//				// offer retry
//			}
//		}
//	}
//
// On process start, RestoreSession prefers a live provider account and
// falls back to the durable remember-me backup. A session built from the
// backup carries session.OriginRestored: it is good for rendering identity
// but holds no live credential, and Session.Token reflects that.
//
// # Error taxonomy
//
// Local validation fails fast with ErrInvalidEmail and ErrPasswordTooShort.
// Provider failures surface as *SignInError grouping provider codes into
// categories; callers branch on Category, never on provider strings.
package auth
