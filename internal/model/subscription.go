package model

import (
	"fmt"
	"time"
)

// SubscriptionStatus enumerates the billing states of a tenant's
// subscription.  Transitions are deliberately trivial; payment and
// invoicing live outside this service.
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription represents a row in the `subscriptions` table.  A tenant
// owns at most one subscription (unique tenant_id).
type Subscription struct {
	ID                 uint64
	TenantID           uint64
	PlanID             uint64
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewTrialSubscription starts a tenant on the given plan with a 14 day
// trial window.
func NewTrialSubscription(tenantID, planID uint64, now time.Time) *Subscription {
	return &Subscription{
		TenantID:           tenantID,
		PlanID:             planID,
		Status:             SubscriptionTrial,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(14 * 24 * time.Hour),
	}
}

// Activate moves a trial subscription to active.
func (s *Subscription) Activate() error {
	if s.Status != SubscriptionTrial {
		return fmt.Errorf("cannot activate subscription in state %s", s.Status)
	}
	s.Status = SubscriptionActive
	return nil
}

// CancelSubscription moves a trial or active subscription to cancelled.
func (s *Subscription) CancelSubscription() error {
	if s.Status == SubscriptionCancelled {
		return fmt.Errorf("subscription already cancelled")
	}
	s.Status = SubscriptionCancelled
	return nil
}

// SubscriptionPlan is a row in the global `subscription_plans` catalog.
// Plans are not tenant-scoped: every tenant subscribes from the same
// catalog.
type SubscriptionPlan struct {
	ID         uint64
	Code       string
	Name       string
	PriceCents uint32
	Interval   string
}
