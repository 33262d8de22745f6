// internal/handlers/access/access_handler.go
package access

import (
	"errors"
	"net/http"
	"strconv"

	"tenantcore-service/internal/domain/access"
	"tenantcore-service/internal/middleware"
	"tenantcore-service/internal/pkg/response"
	service "tenantcore-service/internal/service/access"

	"github.com/gin-gonic/gin"
)

type AccessHandler struct {
	accessService *service.AccessService
}

func NewAccessHandler(accessService *service.AccessService) *AccessHandler {
	return &AccessHandler{
		accessService: accessService,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, access.ErrGrantNotFound):
		return http.StatusNotFound
	case errors.Is(err, access.ErrGrantAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, access.ErrMaxUsersLimitReached),
		errors.Is(err, access.ErrModuleNotInPlan),
		errors.Is(err, access.ErrOrganizationNoAccess):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// Check reports whether the caller can use a module
func (h *AccessHandler) Check(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	moduleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid module ID", err)
		return
	}

	// Checking on behalf of another user is allowed within the same org.
	userID := identityID
	if v := c.Query("user_id"); v != "" {
		userID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid user ID", err)
			return
		}
	}

	result, err := h.accessService.HasAccess(c.Request.Context(), userID, moduleID, orgID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to check module access", err)
		return
	}

	response.Success(c, http.StatusOK, "module access checked", result)
}

// Register grants a user a seat on a module
func (h *AccessHandler) Register(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	moduleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid module ID", err)
		return
	}

	var req access.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	req.ModuleID = moduleID

	grant, err := h.accessService.RegisterUserToModule(c.Request.Context(), orgID, &req, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to register user to module", err)
		return
	}

	response.Success(c, http.StatusCreated, "user registered to module", grant)
}

// Revoke removes a user's seat on a module
func (h *AccessHandler) Revoke(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	moduleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid module ID", err)
		return
	}

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user ID", err)
		return
	}

	if err := h.accessService.RevokeUserModule(c.Request.Context(), orgID, userID, moduleID, identityID); err != nil {
		response.Error(c, statusFor(err), "failed to revoke module access", err)
		return
	}

	response.Success(c, http.StatusOK, "module access revoked", nil)
}

// ListUsers returns the active seats on a module
func (h *AccessHandler) ListUsers(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	moduleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid module ID", err)
		return
	}

	grants, err := h.accessService.ListModuleUsers(c.Request.Context(), orgID, moduleID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list module users", err)
		return
	}

	response.Success(c, http.StatusOK, "module users retrieved", grants)
}
