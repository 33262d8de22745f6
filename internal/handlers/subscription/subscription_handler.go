// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"errors"
	"net/http"
	"strconv"

	"tenantcore-service/internal/domain/plan"
	"tenantcore-service/internal/domain/subscription"
	"tenantcore-service/internal/middleware"
	"tenantcore-service/internal/pkg/response"
	service "tenantcore-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrNoActiveSubscription),
		errors.Is(err, plan.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, subscription.ErrAlreadyHasActiveSubscription):
		return http.StatusConflict
	case errors.Is(err, subscription.ErrInvalidTransition),
		errors.Is(err, subscription.ErrNotPendingApproval),
		errors.Is(err, subscription.ErrNotInTrial),
		errors.Is(err, subscription.ErrNotRenewable),
		errors.Is(err, subscription.ErrCannotBeChanged):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// ========== Organization Endpoints ==========

// Subscribe requests a new subscription for the caller's organization
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	var req subscription.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.Subscribe(c.Request.Context(), orgID, &req, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to subscribe", err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription requested", result)
}

// StartTrial starts a trial subscription for the caller's organization
func (h *SubscriptionHandler) StartTrial(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	var req subscription.StartTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.StartTrial(c.Request.Context(), orgID, &req, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to start trial", err)
		return
	}

	response.Success(c, http.StatusCreated, "trial started", result)
}

// Upgrade moves the live subscription to a higher plan
func (h *SubscriptionHandler) Upgrade(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	var req subscription.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sub, quote, err := h.subscriptionService.UpgradeSubscription(c.Request.Context(), orgID, &req, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to upgrade subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription upgraded", gin.H{
		"subscription": sub,
		"proration":    quote,
	})
}

// Downgrade moves the live subscription to a lower plan
func (h *SubscriptionHandler) Downgrade(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	var req subscription.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sub, quote, err := h.subscriptionService.DowngradeSubscription(c.Request.Context(), orgID, &req, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to downgrade subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription downgraded", gin.H{
		"subscription": sub,
		"proration":    quote,
	})
}

// Cancel cancels the organization's live subscription
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	var req subscription.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.CancelSubscription(c.Request.Context(), orgID, req.Reason, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to cancel subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription cancelled", result)
}

// Renew creates a new subscription from an expired or cancelled one
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)
	identityID := middleware.MustGetIdentityID(c)

	var req subscription.RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.RenewSubscription(c.Request.Context(), orgID, req.SubscriptionID, &req, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to renew subscription", err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription renewed", result)
}

// GetActive returns the organization's live subscription
func (h *SubscriptionHandler) GetActive(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	result, err := h.subscriptionService.GetActiveSubscription(c.Request.Context(), orgID)
	if err != nil {
		response.Error(c, statusFor(err), "no active subscription found", err)
		return
	}

	response.Success(c, http.StatusOK, "active subscription retrieved", result)
}

// List returns the organization's subscription history
func (h *SubscriptionHandler) List(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	var filters subscription.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.subscriptionService.ListSubscriptions(c.Request.Context(), orgID, &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list subscriptions", err)
		return
	}

	response.Success(c, http.StatusOK, "subscriptions retrieved", result)
}

// RemainingDays returns how many whole days are left on the live subscription
func (h *SubscriptionHandler) RemainingDays(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	days, err := h.subscriptionService.GetRemainingDays(c.Request.Context(), orgID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to get remaining days", err)
		return
	}

	response.Success(c, http.StatusOK, "remaining days retrieved", gin.H{
		"remaining_days": days,
	})
}

// ProrationPreview quotes a plan change without applying it
func (h *SubscriptionHandler) ProrationPreview(c *gin.Context) {
	orgID := middleware.MustGetOrganizationID(c)

	var req subscription.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	direction, err := h.subscriptionService.ValidateSubscriptionChange(c.Request.Context(), orgID, req.NewPlanID)
	if err != nil {
		response.Error(c, statusFor(err), "plan change not allowed", err)
		return
	}

	quote, err := h.subscriptionService.CalculateProration(c.Request.Context(), orgID, req.NewPlanID, req.NewBillingCycle)
	if err != nil {
		response.Error(c, statusFor(err), "failed to calculate proration", err)
		return
	}

	response.Success(c, http.StatusOK, "proration calculated", gin.H{
		"direction": direction,
		"quote":     quote,
	})
}

// ========== Admin Endpoints ==========

// Activate approves a pending subscription (super admin)
func (h *SubscriptionHandler) Activate(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	subscriptionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	result, err := h.subscriptionService.ActivateSubscription(c.Request.Context(), subscriptionID, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to activate subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription activated", result)
}

// Reject declines a pending subscription (super admin)
func (h *SubscriptionHandler) Reject(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	subscriptionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	var req subscription.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.RejectSubscription(c.Request.Context(), subscriptionID, req.Reason, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to reject subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription rejected", result)
}

// ExtendTrial pushes a trial's end date out (super admin)
func (h *SubscriptionHandler) ExtendTrial(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	subscriptionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	var req subscription.ExtendTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.subscriptionService.ExtendTrial(c.Request.Context(), subscriptionID, req.AdditionalDays, identityID)
	if err != nil {
		response.Error(c, statusFor(err), "failed to extend trial", err)
		return
	}

	response.Success(c, http.StatusOK, "trial extended", result)
}
