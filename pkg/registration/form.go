package registration

import (
	"regexp"
	"strings"
	"time"

	"github.com/campushub/identity/pkg/profile"
	"github.com/campushub/identity/pkg/sanitizer"
	"github.com/campushub/identity/pkg/scratch"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9._]{3,20}$`)
)

// Form carries everything the caller collected for a new account. Email and
// Username are normalized in place before validation.
type Form struct {
	Email    string
	Password string
	Username string

	FullName    string
	DisplayName string
	Bio         string

	UserType    string
	AccountType string

	// Student fields
	University string
	Department string
	ClassLevel string

	// Club fields
	ClubName  string
	ClubTypes []string

	RememberMe bool
}

func (f *Form) isClub() bool {
	return f.UserType == profile.TypeClub || f.AccountType == profile.TypeClub
}

func (f *Form) normalize() {
	f.Email = sanitizer.NormalizeEmail(f.Email)
	f.Username = sanitizer.NormalizeUsername(f.Username)
	f.FullName = strings.TrimSpace(f.FullName)
	f.DisplayName = strings.TrimSpace(f.DisplayName)
	f.ClubName = strings.TrimSpace(f.ClubName)
	if f.UserType == "" {
		f.UserType = profile.TypeStudent
	}
	if f.AccountType == "" {
		f.AccountType = f.UserType
	}
	if f.DisplayName == "" {
		if f.isClub() && f.ClubName != "" {
			f.DisplayName = f.ClubName
		} else {
			f.DisplayName = f.FullName
		}
	}
}

func (f *Form) validate() error {
	if !emailPattern.MatchString(f.Email) {
		return ErrInvalidEmail
	}
	if len(f.Password) < 6 {
		return ErrPasswordTooShort
	}
	if !usernamePattern.MatchString(f.Username) {
		return ErrInvalidUsername
	}
	if f.isClub() {
		if f.ClubName == "" {
			return ErrMissingClubName
		}
	} else if f.FullName == "" {
		return ErrMissingFullName
	}
	return nil
}

// pendingProfile is the snapshot written before account creation so a
// reconciliation racing the registration sees the submitted intent.
func (f *Form) pendingProfile() scratch.PendingProfile {
	return scratch.PendingProfile{
		UserType:    f.UserType,
		AccountType: f.AccountType,
		Email:       f.Email,
		Username:    f.Username,
		DisplayName: f.DisplayName,
		FullName:    f.FullName,
		Bio:         f.Bio,
		University:  f.University,
		Department:  f.Department,
		ClassLevel:  f.ClassLevel,
		ClubName:    f.ClubName,
		ClubTypes:   f.ClubTypes,
	}
}

// newProfile builds the initial profile record, including the preservation
// fields later repairs treat as authoritative.
func (f *Form) newProfile(uid string, now time.Time) *profile.Profile {
	p := &profile.Profile{
		UID:               uid,
		Email:             f.Email,
		Username:          f.Username,
		DisplayName:       f.DisplayName,
		FullName:          f.FullName,
		Name:              f.DisplayName,
		Bio:               f.Bio,
		UserType:          f.UserType,
		AccountType:       f.AccountType,
		University:        f.University,
		AvatarIcon:        profile.DefaultAvatarIcon,
		AvatarColor:       profile.DefaultAvatarColor,
		CoverIcon:         profile.DefaultCoverIcon,
		CoverColor:        profile.DefaultCoverColor,
		Badges:            []profile.Badge{profile.StarterBadge},
		CreatedAt:         now,
		PreservedUsername: f.Username,
	}
	if p.University == "" {
		p.University = "other"
	}
	if f.isClub() {
		p.ClubName = f.ClubName
		p.ClubTypes = f.ClubTypes
		if len(f.ClubTypes) > 0 {
			p.ClubType = f.ClubTypes[0]
		} else {
			p.ClubType = "other"
		}
		p.Description = f.Bio
		p.PreservedClubName = f.ClubName
		p.PreservedDisplayName = f.DisplayName
	} else {
		p.Department = f.Department
		p.ClassLevel = f.ClassLevel
		if first, rest, ok := strings.Cut(f.FullName, " "); ok {
			p.FirstName = first
			p.LastName = rest
		} else {
			p.FirstName = f.FullName
		}
	}
	return p
}
