// Package identity resolves the realtime identity of the local user from a
// query-string override, a per-session stored id, or a freshly generated one.
package identity

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/domain"
)

// SessionKey is the storage key of the persisted session user id.
const SessionKey = "virtubar:rt:session-user"

const (
	DefaultDisplayName = "Guest User"
	DefaultAvatarID    = "aurora"
)

// Profile is what the profile store knows about the local user.
type Profile struct {
	DisplayName  string
	AvatarPreset string
}

// AuthUser is the signed-in account, if any.
type AuthUser struct {
	ID   string
	Name string
}

// Override holds identity fields forced from the query string. Empty fields
// are not overridden.
type Override struct {
	UserID      domain.UserID
	DisplayName string
	AvatarID    string
}

// IdentityOverrideFromSearch parses rtUser (or rtUserId), rtName and
// rtAvatar from a query string. A leading '?' is accepted. Malformed input
// yields an empty override.
func IdentityOverrideFromSearch(search string) Override {
	values, err := url.ParseQuery(strings.TrimPrefix(search, "?"))
	if err != nil {
		return Override{}
	}
	return OverrideFromValues(values)
}

func OverrideFromValues(values url.Values) Override {
	userID := values.Get("rtUser")
	if userID == "" {
		userID = values.Get("rtUserId")
	}
	return Override{
		UserID:      domain.UserID(userID),
		DisplayName: values.Get("rtName"),
		AvatarID:    values.Get("rtAvatar"),
	}
}

// GenerateSessionUserID returns a random UUID, or "rt-" plus 8 hex digits
// when the system random source fails.
func GenerateSessionUserID() domain.UserID {
	id, err := uuid.NewRandom()
	if err != nil {
		log.Warn().Str("module", "identity").Err(err).Msg("uuid generation failed, using fallback id")
		return domain.UserID(fmt.Sprintf("rt-%08x", rand.Uint32()))
	}
	return domain.UserID(id.String())
}

// Resolver resolves identities against one session store.
type Resolver struct {
	store Store
	newID func() domain.UserID
}

// NewResolver returns a resolver persisting ids in store. A nil store means
// no persistence: every resolution generates a new id.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, newID: GenerateSessionUserID}
}

// Resolve picks the user id from the override, then the stored session id,
// then a new random id which is written back. Display name and avatar fall
// back from the override to the profile, the auth user and the defaults.
// Storage failures are logged and never returned.
func (r *Resolver) Resolve(profile Profile, auth *AuthUser, search string) domain.Identity {
	return r.ResolveOverride(profile, auth, IdentityOverrideFromSearch(search))
}

func (r *Resolver) ResolveOverride(profile Profile, auth *AuthUser, override Override) domain.Identity {
	userID := override.UserID
	if userID == "" {
		userID = r.storedID()
	}
	if userID == "" {
		userID = r.newID()
	}
	if override.UserID == "" {
		r.write(userID)
	}

	displayName := firstNonEmpty(override.DisplayName, profile.DisplayName)
	if displayName == "" && auth != nil {
		displayName = auth.Name
	}
	if displayName == "" {
		displayName = DefaultDisplayName
	}

	return domain.Identity{
		UserID:      userID,
		DisplayName: displayName,
		AvatarID:    firstNonEmpty(override.AvatarID, profile.AvatarPreset, DefaultAvatarID),
	}
}

// Reset forgets the stored session id so the next resolution generates one.
func (r *Resolver) Reset() {
	if r.store == nil {
		return
	}
	if err := r.store.Remove(SessionKey); err != nil {
		log.Warn().Str("module", "identity").Err(err).Msg("failed to clear session id")
	}
}

func (r *Resolver) storedID() domain.UserID {
	if r.store == nil {
		return ""
	}
	v, ok, err := r.store.Get(SessionKey)
	if err != nil {
		log.Warn().Str("module", "identity").Err(err).Msg("failed to read session id")
		return ""
	}
	if !ok {
		return ""
	}
	return domain.UserID(v)
}

func (r *Resolver) write(id domain.UserID) {
	if r.store == nil {
		return
	}
	if err := r.store.Set(SessionKey, string(id)); err != nil {
		log.Warn().Str("module", "identity").Err(err).Msg("failed to write session id")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
