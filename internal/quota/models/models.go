package models

import (
	"fmt"
	"time"
)

// Plan is the subscription tier a tenant is on.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanBusiness   Plan = "business"
	PlanEnterprise Plan = "enterprise"
)

// planLimits are the monthly consent-record allowances when a tenant has no
// explicit override. Zero means unlimited.
var planLimits = map[Plan]int{
	PlanFree:       1000,
	PlanStarter:    10000,
	PlanBusiness:   100000,
	PlanEnterprise: 0,
}

func (p Plan) IsValid() bool {
	_, ok := planLimits[p]
	return ok
}

// DefaultLimit returns the plan's monthly allowance; unknown plans get the free allowance.
func (p Plan) DefaultLimit() int {
	if limit, ok := planLimits[p]; ok {
		return limit
	}
	return planLimits[PlanFree]
}

// Entitlement is what a tenant may record per billing period.
type Entitlement struct {
	TenantID            string
	Plan                Plan
	MonthlyConsentLimit int
	UpdatedAt           time.Time
}

// DefaultEntitlement is applied to tenants with no stored entitlement row.
func DefaultEntitlement(tenantID string) *Entitlement {
	return &Entitlement{
		TenantID:            tenantID,
		Plan:                PlanFree,
		MonthlyConsentLimit: PlanFree.DefaultLimit(),
	}
}

// Unlimited reports whether the entitlement has no cap.
func (e *Entitlement) Unlimited() bool {
	return e.MonthlyConsentLimit <= 0
}

// BillingPeriod returns the UTC calendar month containing now, as [start, end).
func BillingPeriod(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed     bool
	Used        int
	Limit       int
	Plan        Plan
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Remaining returns how many records may still be created this period, or -1
// when unlimited.
func (d *Decision) Remaining() int {
	if d.Limit <= 0 {
		return -1
	}
	if d.Used >= d.Limit {
		return 0
	}
	return d.Limit - d.Used
}

// ExceededError carries the figures returned to the client on denial.
type ExceededError struct {
	Used  int
	Limit int
	Plan  Plan
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("monthly consent limit reached: %d of %d on %s plan", e.Used, e.Limit, e.Plan)
}
