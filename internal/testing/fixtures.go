package testing

import (
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
)

// day builds a UTC date without clock components
func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// NewScenarioFixture returns an active wheat scenario covering the first half
// of 2025 with a 100k bushel production estimate
func NewScenarioFixture() *domain.Scenario {
	crop := "crop-hrsw"
	region := "region-south"
	now := time.Now().UTC()
	return &domain.Scenario{
		ID:   "scn-test-1",
		Name: "2025 HRSW Marketing Plan",
		Scope: domain.Scope{
			CropID:   &crop,
			RegionID: &region,
		},
		StartDate:          day(2025, time.January, 1),
		EndDate:            day(2025, time.June, 30),
		ProductionEstimate: 100000,
		Status:             domain.StatusActive,
		RiskTolerance:      "moderate",
		CreatedBy:          "tester",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NewSaleFixtures returns three sales totalling 45% of a 100k estimate
func NewSaleFixtures(scenarioID string) []domain.VirtualSale {
	cash1, cash2, cash3 := 12.50, 13.10, 12.80
	futures := 12.00
	now := time.Now().UTC()
	return []domain.VirtualSale{
		{
			ID:            "sale-test-1",
			ScenarioID:    scenarioID,
			SaleDate:      day(2025, time.February, 10),
			VolumeBushels: 15000,
			PriceType:     domain.PriceTypeManual,
			CashPrice:     &cash1,
			FuturesPrice:  &futures,
			CreatedBy:     "tester",
			CreatedAt:     now,
		},
		{
			ID:            "sale-test-2",
			ScenarioID:    scenarioID,
			SaleDate:      day(2025, time.March, 20),
			VolumeBushels: 20000,
			PriceType:     domain.PriceTypeManual,
			CashPrice:     &cash2,
			CreatedBy:     "tester",
			CreatedAt:     now,
		},
		{
			ID:            "sale-test-3",
			ScenarioID:    scenarioID,
			SaleDate:      day(2025, time.May, 5),
			VolumeBushels: 10000,
			PriceType:     domain.PriceTypeManual,
			CashPrice:     &cash3,
			CreatedBy:     "tester",
			CreatedAt:     now,
		},
	}
}

// NewRecommendationFixtures returns an increasing timeline reaching 60% sold
func NewRecommendationFixtures(scenarioID string) []domain.RecommendationPoint {
	now := time.Now().UTC()
	return []domain.RecommendationPoint{
		{
			ID:                   "rec-test-1",
			ScenarioID:           scenarioID,
			TargetDate:           day(2025, time.February, 1),
			TargetPercentageSold: 20,
			CreatedBy:            "tester",
			CreatedAt:            now,
		},
		{
			ID:                   "rec-test-2",
			ScenarioID:           scenarioID,
			TargetDate:           day(2025, time.April, 1),
			TargetPercentageSold: 40,
			CreatedBy:            "tester",
			CreatedAt:            now,
		},
		{
			ID:                   "rec-test-3",
			ScenarioID:           scenarioID,
			TargetDate:           day(2025, time.June, 1),
			TargetPercentageSold: 60,
			CreatedBy:            "tester",
			CreatedAt:            now,
		},
	}
}

// NewPricePointFixtures returns a rising market window for early 2025
func NewPricePointFixtures() []domain.PricePoint {
	prices := []struct {
		date time.Time
		cash float64
	}{
		{day(2025, time.January, 15), 11.80},
		{day(2025, time.February, 10), 12.50},
		{day(2025, time.March, 5), 12.20},
		{day(2025, time.March, 20), 13.10},
		{day(2025, time.April, 15), 13.50},
		{day(2025, time.May, 5), 12.80},
		{day(2025, time.June, 10), 12.10},
	}

	points := make([]domain.PricePoint, 0, len(prices))
	for _, p := range prices {
		points = append(points, domain.PricePoint{
			Date:         p.date,
			CashPrice:    p.cash,
			FuturesPrice: p.cash - 0.50,
			Basis:        0.50,
		})
	}
	return points
}
