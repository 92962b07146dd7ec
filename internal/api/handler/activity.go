package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"

	"agency-hub/internal/activity"
	"agency-hub/internal/api/middleware"
	"agency-hub/internal/model"
)

// ListActivity returns the agency's audit trail. Sub-account roles must
// name a sub-account they have access to.
func ListActivity(store *activity.Store, perms PermissionLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFrom(c)
		filter := activity.Filter{
			AgencyID:     actor.AgencyID,
			SubAccountID: c.Query("subaccount_id"),
		}
		if l := c.Query("limit"); l != "" {
			limit, err := strconv.Atoi(l)
			if err != nil || limit < 0 {
				abortWithError(c, errors.NotValidf("limit %q", l))
				return
			}
			filter.Limit = min(limit, activity.MaxListLimit)
		}

		if !actor.Role.AgencyScoped() {
			if filter.SubAccountID == "" {
				abortWithError(c, errors.BadRequestf("subaccount_id is required for %s", actor.Role))
				return
			}
			granted, err := perms.ForUser(c.Request.Context(), actor.Email)
			if err != nil {
				abortWithError(c, err)
				return
			}
			if p := model.FindPermission(granted, filter.SubAccountID); p == nil || !p.Access {
				abortWithError(c, errors.Forbiddenf("no access to sub-account %s", filter.SubAccountID))
				return
			}
		}

		logs, err := store.List(c.Request.Context(), filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	}
}
