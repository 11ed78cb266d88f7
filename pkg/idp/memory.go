package idp

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type memoryAccount struct {
	account      Account
	passwordHash []byte
	disabled     bool
}

// MemoryProvider is an in-process Provider implementation.
type MemoryProvider struct {
	mu        sync.Mutex
	byEmail   map[string]*memoryAccount
	byUID     map[string]*memoryAccount
	current   *memoryAccount
	listeners []func(*Account)

	bcryptCost int
	now        func() time.Time

	// Mail side effects are recorded so tests and dev tooling can observe
	// them without a mail transport.
	verificationMails []string
	resetMails        []string
}

// MemoryOption configures a MemoryProvider.
type MemoryOption func(*MemoryProvider)

// WithBcryptCost configures the bcrypt cost for password hashing. Tests use
// bcrypt.MinCost to stay fast.
func WithBcryptCost(cost int) MemoryOption {
	return func(p *MemoryProvider) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			p.bcryptCost = cost
		}
	}
}

// WithTimeSource overrides the provider clock.
func WithTimeSource(now func() time.Time) MemoryOption {
	return func(p *MemoryProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{
		byEmail:    make(map[string]*memoryAccount),
		byUID:      make(map[string]*memoryAccount),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *MemoryProvider) notifyLocked() {
	var snapshot *Account
	if p.current != nil {
		cp := p.current.account
		snapshot = &cp
	}
	listeners := make([]func(*Account), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
	p.mu.Lock()
}

// CreateAccount implements Provider.
func (p *MemoryProvider) CreateAccount(_ context.Context, email, password string) (*Account, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, NewError(CodeInvalidEmail, "malformed email address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[email]; exists {
		return nil, NewError(CodeEmailAlreadyInUse, "email already registered")
	}

	now := p.now()
	acc := &memoryAccount{
		account: Account{
			UID:          uuid.NewString(),
			Email:        email,
			CreatedAt:    now,
			LastSignInAt: now,
		},
		passwordHash: hash,
	}
	p.byEmail[email] = acc
	p.byUID[acc.account.UID] = acc
	p.current = acc
	p.notifyLocked()

	out := acc.account
	return &out, nil
}

// SignIn implements Provider.
func (p *MemoryProvider) SignIn(_ context.Context, email, password string) (*Account, error) {
	email = normalizeEmail(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.byEmail[email]
	if !ok {
		return nil, NewError(CodeUserNotFound, "no account for email")
	}
	if acc.disabled {
		return nil, NewError(CodeUserDisabled, "account disabled")
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return nil, NewError(CodeWrongPassword, "password mismatch")
	}

	acc.account.LastSignInAt = p.now()
	p.current = acc
	p.notifyLocked()

	out := acc.account
	return &out, nil
}

// SignOut implements Provider.
func (p *MemoryProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	p.current = nil
	p.notifyLocked()
	return nil
}

// CurrentUser implements Provider.
func (p *MemoryProvider) CurrentUser(_ context.Context) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, nil
	}
	out := p.current.account
	return &out, nil
}

// Reload implements Provider. State is always fresh in memory, so this only
// validates that a current user exists.
func (p *MemoryProvider) Reload(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return NewError(CodeNoCurrentUser, "no signed-in account")
	}
	return nil
}

// SendVerificationEmail implements Provider.
func (p *MemoryProvider) SendVerificationEmail(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return NewError(CodeNoCurrentUser, "no signed-in account")
	}
	if p.current.account.EmailVerified {
		return nil
	}
	p.verificationMails = append(p.verificationMails, p.current.account.Email)
	return nil
}

// SendPasswordResetEmail implements Provider.
func (p *MemoryProvider) SendPasswordResetEmail(_ context.Context, email string) error {
	email = normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byEmail[email]; !ok {
		return NewError(CodeUserNotFound, "no account for email")
	}
	p.resetMails = append(p.resetMails, email)
	return nil
}

// DeleteAccount implements Provider.
func (p *MemoryProvider) DeleteAccount(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.byUID[uid]
	if !ok {
		return NewError(CodeUserNotFound, "no account for uid")
	}
	delete(p.byUID, uid)
	delete(p.byEmail, acc.account.Email)
	if p.current == acc {
		p.current = nil
		p.notifyLocked()
	}
	return nil
}

// UpdateProfile implements Provider.
func (p *MemoryProvider) UpdateProfile(_ context.Context, displayName, photoURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return NewError(CodeNoCurrentUser, "no signed-in account")
	}
	if displayName != "" {
		p.current.account.DisplayName = displayName
	}
	if photoURL != "" {
		p.current.account.PhotoURL = photoURL
	}
	return nil
}

// OnAuthStateChanged implements Provider.
func (p *MemoryProvider) OnAuthStateChanged(fn func(*Account)) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// MarkVerified flips the email-verification flag on the account, standing in
// for the user clicking the link in the verification mail.
func (p *MemoryProvider) MarkVerified(uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.byUID[uid]; ok {
		acc.account.EmailVerified = true
	}
}

// Disable marks the account disabled, making subsequent sign-ins fail with
// CodeUserDisabled.
func (p *MemoryProvider) Disable(uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.byUID[uid]; ok {
		acc.disabled = true
	}
}

// Enable reverses Disable.
func (p *MemoryProvider) Enable(uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.byUID[uid]; ok {
		acc.disabled = false
	}
}

// SentVerificationMails returns the emails a verification mail was recorded
// for, in order.
func (p *MemoryProvider) SentVerificationMails() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.verificationMails))
	copy(out, p.verificationMails)
	return out
}

// SentResetMails returns the emails a password-reset mail was recorded for.
func (p *MemoryProvider) SentResetMails() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.resetMails))
	copy(out, p.resetMails)
	return out
}

// Exists reports whether an account with the uid still exists; registration
// compensation tests use it to verify the rollback.
func (p *MemoryProvider) Exists(uid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byUID[uid]
	return ok
}
