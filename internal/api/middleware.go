package api

import (
	"strings"

	"marketplace-service/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	principalKey       = "principal"
	storageTokenHeader = "X-Storage-Token"
)

// authenticate resolves the bearer token into a principal. Requests without a token continue
// anonymously and are rejected by the operations that need a caller. Vendor sessions end as soon
// as the account is deactivated.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortWithError(c, models.NewError(models.KindUnauthenticated, "malformed authorization header"))
			return
		}
		p, err := h.tokens.Verify(token)
		if err != nil {
			abortWithError(c, models.WrapError(models.KindUnauthenticated, err, "invalid session"))
			return
		}
		if p.Role == models.RoleSuperAdmin {
			if err := h.services.Accounts.CheckActive(c.Request.Context(), p); err != nil {
				abortWithError(c, err)
				return
			}
		}
		p.ProviderToken = c.GetHeader(storageTokenHeader)

		c.Set(principalKey, p)
		c.Next()
	}
}

// principal returns the caller, or the zero principal for anonymous requests
func principal(c *gin.Context) models.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(models.Principal); ok {
			return p
		}
	}
	return models.Principal{}
}
