package http

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/identity"
)

// sessionStore keeps identity values in the cookie session of one request.
type sessionStore struct {
	s sessions.Session
}

var _ identity.Store = sessionStore{}

func (st sessionStore) Get(key string) (string, bool, error) {
	v := st.s.Get(key)
	if v == nil {
		return "", false, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("session value %q has type %T", key, v)
	}
	return str, true, nil
}

func (st sessionStore) Set(key, value string) error {
	st.s.Set(key, value)
	return st.s.Save()
}

func (st sessionStore) Remove(key string) error {
	st.s.Delete(key)
	return st.s.Save()
}

func (h *handlers) resolver(c *gin.Context) *identity.Resolver {
	return identity.NewResolver(sessionStore{s: sessions.Default(c)})
}

// getIdentity resolves the caller's realtime identity. rtUser, rtName and
// rtAvatar in the query override it for this request only.
func (h *handlers) getIdentity(c *gin.Context) {
	id := h.resolver(c).ResolveOverride(identity.Profile{}, nil, identity.OverrideFromValues(c.Request.URL.Query()))
	log.Debug().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Str("user", string(id.UserID)).Msg("identity resolved")
	c.JSON(http.StatusOK, id)
}

func (h *handlers) resetIdentity(c *gin.Context) {
	h.resolver(c).Reset()
	log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("identity reset")
	c.Status(http.StatusNoContent)
}
