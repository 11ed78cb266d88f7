package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/campushub/identity/pkg/docstore"
	"github.com/campushub/identity/pkg/sanitizer"
	"github.com/campushub/identity/pkg/scratch"
	"github.com/campushub/identity/pkg/session"
)

// genericNames are placeholder display names that never count as a real
// name. Comparison happens after Turkish lowercasing.
var genericNames = map[string]struct{}{
	"kullanıcı":        {},
	"kullanici":        {},
	"user":             {},
	"anonim kullanıcı": {},
	"anonim":           {},
}

// clubKeywords are the substrings in a bio or display name that count as a
// strong club signal.
var clubKeywords = []string{"kulüp", "kulup"}

// Generic fallbacks used when every better source is exhausted.
const (
	genericStudentName = "Kullanıcı"
	genericClubName    = "Kulüp"
)

// ruleContext carries everything a repair rule may consult besides the
// document itself. It is assembled once per reconciliation pass so the rules
// stay pure functions.
type ruleContext struct {
	uid     string
	now     time.Time
	age     time.Duration // since createdAt; effectively infinite when createdAt is unusable
	pending *scratch.PendingProfile
	session *session.Session

	// reservedUsername is the reverse-lookup result from the usernames
	// namespace, resolved ahead of time when the stored username is empty.
	reservedUsername string

	// Age thresholds for generic and email-derived fallbacks.
	displayNameGate time.Duration
	aliasGate       time.Duration
}

// pastGate reports whether the record is old enough for a generic fallback.
// Records young enough to still be mid-registration are left alone.
func (rctx *ruleContext) pastGate(gate time.Duration) bool {
	return rctx.age > gate
}

// rule is one named, independently skippable repair concern. It returns the
// fields it proposes to correct, or nil.
type rule struct {
	name  string
	apply func(doc docstore.Document, rctx *ruleContext) docstore.Document
}

// repairRules is the ordered rule set. Later rules see earlier proposals
// merged into their view of the document, so the name-alias rule can mirror
// a display name proposed two rules earlier.
var repairRules = []rule{
	{name: "avatar-defaults", apply: repairAvatarDefaults},
	{name: "user-type", apply: repairUserType},
	{name: "username", apply: repairUsername},
	{name: "display-name", apply: repairDisplayName},
	{name: "club-name", apply: repairClubName},
	{name: "full-name", apply: repairFullName},
	{name: "club-metadata", apply: repairClubMetadata},
	{name: "created-at", apply: repairCreatedAt},
	{name: "badges", apply: repairBadges},
	{name: "name-alias", apply: repairNameAlias},
}

func strField(doc docstore.Document, key string) string {
	s, _ := doc[key].(string)
	return strings.TrimSpace(s)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func looksLikeEmail(s string) bool {
	return strings.Contains(s, "@")
}

func isGenericName(s string) bool {
	_, ok := genericNames[sanitizer.TrimLower(s)]
	return ok
}

func hasClubKeyword(s string) bool {
	folded := sanitizer.ToLower(s)
	for _, kw := range clubKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

func docIsClub(doc docstore.Document) bool {
	return strField(doc, "userType") == TypeClub || strField(doc, "accountType") == TypeClub
}

// generatedHandle builds a last-resort random-suffix handle the way the rest
// of the system expects them to look.
func generatedHandle(now time.Time) string {
	return fmt.Sprintf("user%06d", now.UnixMilli()%1_000_000)
}

func repairAvatarDefaults(doc docstore.Document, _ *ruleContext) docstore.Document {
	out := docstore.Document{}
	if isBlank(strField(doc, "avatarIcon")) && isBlank(strField(doc, "profileImage")) {
		out["avatarIcon"] = DefaultAvatarIcon
		out["avatarColor"] = DefaultAvatarColor
	}
	if isBlank(strField(doc, "coverIcon")) && isBlank(strField(doc, "coverImage")) {
		out["coverIcon"] = DefaultCoverIcon
		out["coverColor"] = DefaultCoverColor
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// inferUserType derives the account type from signals in priority order:
// explicit accountType, strong club markers in the document, the pending
// registration snapshot, the cached session, and finally the student
// default.
func inferUserType(doc docstore.Document, rctx *ruleContext) string {
	if strField(doc, "accountType") == TypeClub {
		return TypeClub
	}
	if strField(doc, "clubName") != "" ||
		len(docStrings(doc, "clubTypes")) > 0 ||
		strField(doc, "description") != "" ||
		hasClubKeyword(strField(doc, "bio")) ||
		hasClubKeyword(strField(doc, "displayName")) {
		return TypeClub
	}
	if rctx.pending != nil && rctx.pending.UserType == TypeClub {
		return TypeClub
	}
	if rctx.session != nil && rctx.session.UserType == TypeClub {
		return TypeClub
	}
	return TypeStudent
}

func repairUserType(doc docstore.Document, rctx *ruleContext) docstore.Document {
	stored := strField(doc, "userType")
	inferred := inferUserType(doc, rctx)

	switch {
	case stored == "":
		return docstore.Document{"userType": inferred, "accountType": inferred}
	case stored != TypeClub && inferred == TypeClub:
		// Misclassified club: promote.
		return docstore.Document{"userType": TypeClub, "accountType": TypeClub}
	case stored == TypeClub:
		// Never downgrade a club, whatever the signals say; only keep the
		// mirror field consistent.
		if strField(doc, "accountType") != TypeClub {
			return docstore.Document{"accountType": TypeClub}
		}
		return nil
	case strField(doc, "accountType") != stored:
		return docstore.Document{"accountType": stored}
	}
	return nil
}

func repairUsername(doc docstore.Document, rctx *ruleContext) docstore.Document {
	current := strField(doc, "username")
	preserved := strField(doc, "_preserveUsername")
	localPart := sanitizer.EmailLocalPart(strField(doc, "email"))

	// Corruption signature: the stored handle is exactly the email local
	// part while registration preserved a different one.
	corrupted := current != "" && current == localPart &&
		preserved != "" && preserved != current

	if current != "" && !corrupted {
		return nil
	}

	var candidate string
	switch {
	case preserved != "":
		candidate = preserved
	case rctx.pending != nil && !isBlank(rctx.pending.Username):
		candidate = rctx.pending.Username
	case rctx.reservedUsername != "":
		candidate = rctx.reservedUsername
	case localPart != "":
		candidate = localPart
	default:
		candidate = generatedHandle(rctx.now)
	}
	return docstore.Document{"username": sanitizer.NormalizeUsername(candidate)}
}

// bestDisplayName computes the fallback display name for the account type
// from the sources that remain once preservation and pending values have
// been ruled out.
func bestDisplayName(doc docstore.Document, rctx *ruleContext) string {
	if docIsClub(doc) {
		clubName := strField(doc, "clubName")
		if clubName == "" {
			clubName = strField(doc, "_preserveClubName")
		}
		if clubName == "" && rctx.pending != nil {
			clubName = strings.TrimSpace(rctx.pending.ClubName)
		}
		switch {
		case clubName != "":
			return clubName
		case strField(doc, "username") != "":
			return strField(doc, "username")
		case strField(doc, "email") != "":
			return sanitizer.EmailLocalPart(strField(doc, "email"))
		default:
			return genericClubName
		}
	}

	fn, ln := strField(doc, "firstName"), strField(doc, "lastName")
	switch {
	case fn != "" || ln != "":
		return strings.TrimSpace(fn + " " + ln)
	case strField(doc, "fullName") != "":
		return strField(doc, "fullName")
	case strField(doc, "email") != "":
		return sanitizer.EmailLocalPart(strField(doc, "email"))
	default:
		return genericStudentName
	}
}

func pendingDisplayName(rctx *ruleContext) string {
	if rctx.pending == nil {
		return ""
	}
	if dn := strings.TrimSpace(rctx.pending.DisplayName); dn != "" {
		return dn
	}
	return strings.TrimSpace(rctx.pending.FullName)
}

func repairDisplayName(doc docstore.Document, rctx *ruleContext) docstore.Document {
	current := strField(doc, "displayName")
	preserved := strField(doc, "_preserveDisplayName")
	isClub := docIsClub(doc)

	needsRepair := isBlank(current) || looksLikeEmail(current) ||
		(isClub && isGenericName(current))

	if !needsRepair {
		// A generic stored name still yields to a real preserved one.
		if preserved != "" && !isGenericName(preserved) &&
			preserved != current && isGenericName(current) {
			return docstore.Document{"displayName": preserved}
		}
		return nil
	}

	if preserved != "" && !isGenericName(preserved) {
		return docstore.Document{"displayName": preserved}
	}
	if dn := pendingDisplayName(rctx); dn != "" && !isGenericName(dn) {
		return docstore.Document{"displayName": dn}
	}
	// Everything past this point is computed from the record itself or the
	// email; gate it on record age so an in-flight registration write is
	// not clobbered.
	if !rctx.pastGate(rctx.displayNameGate) {
		return nil
	}
	return docstore.Document{"displayName": bestDisplayName(doc, rctx)}
}

func repairClubName(doc docstore.Document, rctx *ruleContext) docstore.Document {
	if !docIsClub(doc) {
		return nil
	}
	current := strField(doc, "clubName")
	if !isBlank(current) && !looksLikeEmail(current) {
		return nil
	}

	if preserved := strField(doc, "_preserveClubName"); preserved != "" {
		return docstore.Document{"clubName": preserved}
	}
	if rctx.pending != nil {
		if pn := strings.TrimSpace(rctx.pending.ClubName); pn != "" {
			return docstore.Document{"clubName": pn}
		}
	}
	return docstore.Document{"clubName": bestDisplayName(doc, rctx)}
}

func repairFullName(doc docstore.Document, rctx *ruleContext) docstore.Document {
	if docIsClub(doc) {
		return nil
	}
	if !isBlank(strField(doc, "fullName")) {
		return nil
	}

	var pendingFull string
	if rctx.pending != nil {
		pendingFull = strings.TrimSpace(rctx.pending.FullName)
		if pendingFull == "" {
			pendingFull = strings.TrimSpace(rctx.pending.DisplayName)
		}
	}
	if pendingFull == "" && !rctx.pastGate(rctx.aliasGate) {
		return nil
	}

	value := pendingFull
	if value == "" {
		fn, ln := strField(doc, "firstName"), strField(doc, "lastName")
		if fn != "" || ln != "" {
			value = strings.TrimSpace(fn + " " + ln)
		} else {
			value = bestDisplayName(doc, rctx)
		}
	}
	return docstore.Document{"fullName": value}
}

func repairClubMetadata(doc docstore.Document, rctx *ruleContext) docstore.Document {
	if !docIsClub(doc) {
		return nil
	}
	out := docstore.Document{}

	if isBlank(strField(doc, "university")) {
		switch {
		case rctx.pending != nil && !isBlank(rctx.pending.University):
			out["university"] = strings.TrimSpace(rctx.pending.University)
		case strField(doc, "universityId") != "":
			out["university"] = strField(doc, "universityId")
		default:
			out["university"] = "other"
		}
	}

	clubTypes := docStrings(doc, "clubTypes")
	if isBlank(strField(doc, "clubType")) {
		switch {
		case len(clubTypes) > 0:
			out["clubType"] = clubTypes[0]
		case strField(doc, "clubTypeId") != "":
			out["clubType"] = strField(doc, "clubTypeId")
		default:
			out["clubType"] = "other"
		}
	}

	if _, isArray := doc["clubTypes"].([]any); !isArray {
		if single := strField(doc, "clubType"); single != "" {
			out["clubTypes"] = []any{single}
		} else if ct, ok := out["clubType"].(string); ok && ct != "other" {
			out["clubTypes"] = []any{ct}
		} else {
			out["clubTypes"] = []any{"other"}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func repairCreatedAt(doc docstore.Document, rctx *ruleContext) docstore.Document {
	v, present := doc["createdAt"]
	if !present {
		return docstore.Document{"createdAt": rctx.now}
	}
	// A server-side placeholder sentinel decodes as something AsTime cannot
	// coerce; replace it with a concrete timestamp.
	if _, ok := docstore.AsTime(v); !ok {
		return docstore.Document{"createdAt": rctx.now}
	}
	return nil
}

func repairBadges(doc docstore.Document, _ *ruleContext) docstore.Document {
	if badges, ok := doc["badges"].([]any); ok && len(badges) > 0 {
		return nil
	}
	return docstore.Document{"badges": badgesToAny([]Badge{StarterBadge})}
}

func repairNameAlias(doc docstore.Document, rctx *ruleContext) docstore.Document {
	current := strField(doc, "name")
	if current != "" && sanitizer.TrimLower(current) != "undefined" && !looksLikeEmail(current) {
		return nil
	}

	best := strField(doc, "displayName")
	if best == "" {
		best = strField(doc, "clubName")
	}
	if best == "" {
		best = strField(doc, "fullName")
	}
	if best == "" {
		best = pendingDisplayName(rctx)
	}

	if best == "" && !rctx.pastGate(rctx.aliasGate) {
		return nil
	}
	if best == "" {
		if local := sanitizer.EmailLocalPart(strField(doc, "email")); local != "" {
			best = local
		} else if docIsClub(doc) {
			best = genericClubName
		} else {
			best = genericStudentName
		}
	}
	return docstore.Document{"name": best}
}
