package orgcontext

import (
	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the API key middleware.
const (
	KeyOrgContext     = "ORG_CONTEXT"
	KeyOrganizationID = "ORG_ID"
	KeyAuthenticated  = "ORG_AUTHENTICATED"
)

// OrgContext carries the authenticated organization through a request.
type OrgContext struct {
	OrganizationID  uint
	PublicID        string
	Name            string
	Plan            string
	IsAuthenticated bool
}

// FromContext returns the organization context for the current request.
// An anonymous context is returned when the middleware did not run.
func FromContext(c *fiber.Ctx) OrgContext {
	if v := c.Locals(KeyOrgContext); v != nil {
		if ctx, ok := v.(OrgContext); ok {
			return ctx
		}
	}
	return OrgContext{IsAuthenticated: false}
}

// Set stores the organization context in the request locals.
func Set(c *fiber.Ctx, ctx OrgContext) {
	c.Locals(KeyOrgContext, ctx)
	c.Locals(KeyOrganizationID, ctx.OrganizationID)
	c.Locals(KeyAuthenticated, ctx.IsAuthenticated)
}
