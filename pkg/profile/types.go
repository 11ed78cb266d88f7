package profile

import (
	"time"

	"github.com/campushub/identity/pkg/docstore"
)

// UsersCollection is the document-store collection profiles live in.
const UsersCollection = "users"

// Account types. A club account is never silently downgraded to a student
// account by inference; only explicit user action may do that.
const (
	TypeStudent = "student"
	TypeClub    = "club"
)

// Default avatar and cover assigned when a profile has neither an icon nor
// an uploaded image.
const (
	DefaultAvatarIcon  = "account"
	DefaultAvatarColor = "#1E88E5"
	DefaultCoverIcon   = "city-variant"
	DefaultCoverColor  = "#0D47A1"
)

// Badge is a profile achievement marker.
type Badge struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// StarterBadge is granted to every profile that has none.
var StarterBadge = Badge{Name: "Yeni Üye", Icon: "star", Color: "#FFD700"}

// Profile is the decoded user profile record.
type Profile struct {
	UID           string
	Email         string
	EmailVerified bool
	Username      string
	DisplayName   string
	FullName      string
	Name          string
	FirstName     string
	LastName      string
	Bio           string
	Description   string
	UserType      string
	AccountType   string
	University    string
	Department    string
	ClassLevel    string
	ClubName      string
	ClubType      string
	ClubTypes     []string
	AvatarIcon    string
	AvatarColor   string
	CoverIcon     string
	CoverColor    string
	ProfileImage  string
	CoverImage    string
	Badges        []Badge
	CreatedAt     time.Time

	// Preservation fields: set once at registration, authoritative over
	// computed fallbacks during later repairs.
	PreservedUsername    string
	PreservedClubName    string
	PreservedDisplayName string
}

// IsClub reports whether either type field marks the profile as a club.
func (p *Profile) IsClub() bool {
	return p.UserType == TypeClub || p.AccountType == TypeClub
}

// FromDocument decodes a raw profile document.
func FromDocument(uid string, doc docstore.Document) *Profile {
	p := &Profile{
		UID:                  uid,
		Email:                docString(doc, "email"),
		EmailVerified:        docBool(doc, "emailVerified"),
		Username:             docString(doc, "username"),
		DisplayName:          docString(doc, "displayName"),
		FullName:             docString(doc, "fullName"),
		Name:                 docString(doc, "name"),
		FirstName:            docString(doc, "firstName"),
		LastName:             docString(doc, "lastName"),
		Bio:                  docString(doc, "bio"),
		Description:          docString(doc, "description"),
		UserType:             docString(doc, "userType"),
		AccountType:          docString(doc, "accountType"),
		University:           docString(doc, "university"),
		Department:           docString(doc, "department"),
		ClassLevel:           docString(doc, "classLevel"),
		ClubName:             docString(doc, "clubName"),
		ClubType:             docString(doc, "clubType"),
		ClubTypes:            docStrings(doc, "clubTypes"),
		AvatarIcon:           docString(doc, "avatarIcon"),
		AvatarColor:          docString(doc, "avatarColor"),
		CoverIcon:            docString(doc, "coverIcon"),
		CoverColor:           docString(doc, "coverColor"),
		ProfileImage:         docString(doc, "profileImage"),
		CoverImage:           docString(doc, "coverImage"),
		PreservedUsername:    docString(doc, "_preserveUsername"),
		PreservedClubName:    docString(doc, "_preserveClubName"),
		PreservedDisplayName: docString(doc, "_preserveDisplayName"),
	}
	if t, ok := docstore.AsTime(doc["createdAt"]); ok {
		p.CreatedAt = t
	}
	p.Badges = docBadges(doc, "badges")
	return p
}

// Document encodes the profile as a raw document. Zero-valued optional
// fields are written as their empty forms, matching what registration
// writes, so that a decode/encode round trip is stable.
func (p *Profile) Document() docstore.Document {
	doc := docstore.Document{
		"uid":           p.UID,
		"email":         p.Email,
		"emailVerified": p.EmailVerified,
		"username":      p.Username,
		"displayName":   p.DisplayName,
		"fullName":      p.FullName,
		"name":          p.Name,
		"userType":      p.UserType,
		"accountType":   p.AccountType,
		"university":    p.University,
		"avatarIcon":    p.AvatarIcon,
		"avatarColor":   p.AvatarColor,
		"coverIcon":     p.CoverIcon,
		"coverColor":    p.CoverColor,
		"createdAt":     p.CreatedAt,
	}
	if p.Bio != "" {
		doc["bio"] = p.Bio
	}
	switch {
	case p.IsClub():
		doc["clubName"] = p.ClubName
		doc["clubType"] = p.ClubType
		doc["clubTypes"] = stringsToAny(p.ClubTypes)
		doc["description"] = p.Description
	default:
		doc["firstName"] = p.FirstName
		doc["lastName"] = p.LastName
		doc["department"] = p.Department
		doc["classLevel"] = p.ClassLevel
	}
	if len(p.Badges) > 0 {
		doc["badges"] = badgesToAny(p.Badges)
	}
	if p.PreservedUsername != "" {
		doc["_preserveUsername"] = p.PreservedUsername
	}
	if p.PreservedClubName != "" {
		doc["_preserveClubName"] = p.PreservedClubName
	}
	if p.PreservedDisplayName != "" {
		doc["_preserveDisplayName"] = p.PreservedDisplayName
	}
	return doc
}

func docString(doc docstore.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func docBool(doc docstore.Document, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

func docStrings(doc docstore.Document, key string) []string {
	raw, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func docBadges(doc docstore.Document, key string) []Badge {
	raw, ok := doc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Badge, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Badge{
			Name:  docString(m, "name"),
			Icon:  docString(m, "icon"),
			Color: docString(m, "color"),
		})
	}
	return out
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func badgesToAny(in []Badge) []any {
	out := make([]any, len(in))
	for i, b := range in {
		out[i] = map[string]any{"name": b.Name, "icon": b.Icon, "color": b.Color}
	}
	return out
}
