package main

import (
	"context"
	"time"

	quotaModels "consentd/internal/quota/models"
	widgetModels "consentd/internal/widget/models"
)

const (
	demoWidgetID = "demo-widget"
	demoTenantID = "demo-tenant"
)

// seedDemo installs one active widget and a starter-plan entitlement so the
// endpoint can be exercised against an empty store.
func seedDemo(ctx context.Context, widgets widgetSeeder, entitlements entitlementSeeder) error {
	now := time.Now().UTC()
	err := widgets.Save(ctx, &widgetModels.Widget{
		ID:                     demoWidgetID,
		UserID:                 demoTenantID,
		IsActive:               true,
		ConsentDurationDefault: 365,
		Domain:                 "localhost",
		NoticeVersion:          "1",
		Activities: []widgetModels.Activity{
			{
				ID:             "0b6f1d2e-4c1a-4e8b-9f3d-1a2b3c4d5e01",
				Name:           "Analytics",
				Description:    "Aggregated page view statistics",
				DataCategories: []string{"usage"},
				Purposes: []widgetModels.Purpose{
					{ID: "7c1e9a40-2b3d-4f5e-8a6b-0c1d2e3f4a01", Name: "Measure audience"},
				},
			},
			{
				ID:             "0b6f1d2e-4c1a-4e8b-9f3d-1a2b3c4d5e02",
				Name:           "Marketing",
				Description:    "Personalised offers by email",
				DataCategories: []string{"contact", "usage"},
				Purposes: []widgetModels.Purpose{
					{ID: "7c1e9a40-2b3d-4f5e-8a6b-0c1d2e3f4a02", Name: "Send newsletters"},
					{ID: "7c1e9a40-2b3d-4f5e-8a6b-0c1d2e3f4a03", Name: "Retarget ads"},
				},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}

	return entitlements.Save(ctx, &quotaModels.Entitlement{
		TenantID:            demoTenantID,
		Plan:                quotaModels.PlanStarter,
		MonthlyConsentLimit: quotaModels.PlanStarter.DefaultLimit(),
		UpdatedAt:           now,
	})
}
