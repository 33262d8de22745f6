// internal/handlers/plan/plan_handler.go
package plan

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	domain "tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/middleware"
	"tenantcore-service/internal/pkg/response"
	service "tenantcore-service/internal/service/plan"

	"github.com/gin-gonic/gin"
)

type PlanHandler struct {
	planService *service.PlanService
}

func NewPlanHandler(planService *service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
	}
}

// List returns the active plan catalog
func (h *PlanHandler) List(c *gin.Context) {
	var filters domain.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	// Custom plans are only visible to the caller's own organization.
	if middleware.IsAuthenticated(c) && !middleware.IsSuperAdmin(c) {
		orgID, _ := middleware.GetOrganizationID(c)
		filters.OrganizationID = orgID
	}

	plans, err := h.planService.ListPlans(c.Request.Context(), &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", plans)
}

// Get returns a single plan with its module configuration
func (h *PlanHandler) Get(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	p, err := h.planService.GetPlan(c.Request.Context(), planID)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			response.NotFound(c, "plan not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to get plan", err)
		return
	}

	modules, err := h.planService.GetPlanModules(c.Request.Context(), planID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get plan modules", err)
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", gin.H{
		"plan":    p,
		"modules": modules,
	})
}

// Compare returns a side-by-side comparison of plans, low tier to high.
// Plan IDs come in as ?ids=1,2,3.
func (h *PlanHandler) Compare(c *gin.Context) {
	idsParam := c.Query("ids")
	if idsParam == "" {
		response.Error(c, http.StatusBadRequest, "missing ids parameter", nil)
		return
	}

	var planIDs []int64
	for _, part := range strings.Split(idsParam, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid plan ID in ids parameter", err)
			return
		}
		planIDs = append(planIDs, id)
	}

	rows, err := h.planService.ComparePlans(c.Request.Context(), planIDs)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			response.NotFound(c, "plan not found")
			return
		}
		response.Error(c, http.StatusBadRequest, "failed to compare plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans compared", rows)
}
