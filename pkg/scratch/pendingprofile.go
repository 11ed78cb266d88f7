package scratch

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// PendingProfileKey is the cache key the registration flow and the profile
// reconciler agree on.
const PendingProfileKey = "pending_profile"

// DefaultPendingTTL bounds how long a pending snapshot can influence
// reconciliation. Registration either completes or gives up well inside it.
const DefaultPendingTTL = 60 * time.Second

// PendingProfile is the snapshot of registration intent written just before
// the account-creation call.
type PendingProfile struct {
	UserType    string   `json:"userType"`
	AccountType string   `json:"accountType"`
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	FullName    string   `json:"fullName,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	University  string   `json:"university,omitempty"`
	Department  string   `json:"department,omitempty"`
	ClassLevel  string   `json:"classLevel,omitempty"`
	ClubName    string   `json:"clubName,omitempty"`
	ClubTypes   []string `json:"clubTypes,omitempty"`
}

// SavePendingProfile stores the snapshot under PendingProfileKey.
func SavePendingProfile(ctx context.Context, cache Cache, p PendingProfile, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return cache.SetCache(ctx, PendingProfileKey, data, ttl)
}

// LoadPendingProfile returns the snapshot, or nil when it is absent, expired
// or unreadable. A stale or corrupt snapshot is treated the same as no
// snapshot; the reconciler falls back to its other sources.
func LoadPendingProfile(ctx context.Context, cache Cache) *PendingProfile {
	data, err := cache.GetCache(ctx, PendingProfileKey)
	if err != nil {
		return nil
	}
	var p PendingProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}

// ClearPendingProfile removes the snapshot.
func ClearPendingProfile(ctx context.Context, cache Cache) error {
	err := cache.RemoveCache(ctx, PendingProfileKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
