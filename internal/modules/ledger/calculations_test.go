package ledger

import (
	"testing"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func saleFixture(volume float64, price *float64, saleDate string) domain.VirtualSale {
	return domain.VirtualSale{
		VolumeBushels: volume,
		CashPrice:     price,
		SaleDate:      date(saleDate),
		PriceType:     domain.PriceTypeManual,
	}
}

func TestTotalVolume(t *testing.T) {
	sales := []domain.VirtualSale{
		saleFixture(20_000, floatPtr(12.50), "2025-02-01"),
		saleFixture(10_000, floatPtr(13.00), "2025-03-01"),
	}
	assert.Equal(t, 30_000.0, TotalVolume(sales))
}

func TestTotalVolume_ClampsNegativeAnomalies(t *testing.T) {
	sales := []domain.VirtualSale{
		saleFixture(20_000, floatPtr(12.50), "2025-02-01"),
		saleFixture(-5_000, floatPtr(13.00), "2025-03-01"),
	}
	assert.Equal(t, 20_000.0, TotalVolume(sales))
}

func TestWeightedAveragePrice(t *testing.T) {
	sales := []domain.VirtualSale{
		saleFixture(20_000, floatPtr(12.50), "2025-02-01"),
		saleFixture(10_000, floatPtr(13.00), "2025-03-01"),
	}
	// (20000*12.50 + 10000*13.00) / 30000
	assert.InDelta(t, 12.6667, WeightedAveragePrice(sales), 0.0001)
}

func TestWeightedAveragePrice_EmptyListIsZero(t *testing.T) {
	assert.Equal(t, 0.0, WeightedAveragePrice(nil))
	assert.Equal(t, 0.0, WeightedAveragePrice([]domain.VirtualSale{}))
}

func TestWeightedAveragePrice_WithinInputBounds(t *testing.T) {
	sales := []domain.VirtualSale{
		saleFixture(15_000, floatPtr(11.20), "2025-02-01"),
		saleFixture(7_500, floatPtr(12.80), "2025-03-01"),
		saleFixture(2_500, floatPtr(12.10), "2025-04-01"),
	}
	avg := WeightedAveragePrice(sales)
	assert.GreaterOrEqual(t, avg, 11.20)
	assert.LessOrEqual(t, avg, 12.80)
}

func TestTotalRevenue_MissingPriceContributesZero(t *testing.T) {
	sales := []domain.VirtualSale{
		saleFixture(20_000, floatPtr(12.50), "2025-02-01"),
		saleFixture(10_000, nil, "2025-03-01"),
	}
	assert.Equal(t, 250_000.0, TotalRevenue(sales))
}

func TestPercentageSold(t *testing.T) {
	sales := []domain.VirtualSale{saleFixture(20_000, floatPtr(12.50), "2025-02-01")}
	assert.Equal(t, 20.0, PercentageSold(sales, 100_000))
}

func TestPercentageSold_ZeroEstimateIsZero(t *testing.T) {
	assert.Equal(t, 0.0, PercentageSold(nil, 100))
	assert.Equal(t, 0.0, PercentageSold([]domain.VirtualSale{saleFixture(100, nil, "2025-02-01")}, 0))
}

func TestRemainingVolume_ClampsOversold(t *testing.T) {
	sales := []domain.VirtualSale{saleFixture(150_000, floatPtr(12.00), "2025-02-01")}
	assert.Equal(t, 0.0, RemainingVolume(sales, 100_000))

	sales = []domain.VirtualSale{saleFixture(30_000, floatPtr(12.00), "2025-02-01")}
	assert.Equal(t, 70_000.0, RemainingVolume(sales, 100_000))
}

func TestUnrealizedValue(t *testing.T) {
	sales := []domain.VirtualSale{saleFixture(30_000, floatPtr(12.00), "2025-02-01")}
	assert.Equal(t, 70_000*13.25, UnrealizedValue(sales, 100_000, 13.25))
}

func TestFilterToWindow(t *testing.T) {
	sales := []domain.VirtualSale{
		saleFixture(1_000, floatPtr(12.00), "2024-12-31"),
		saleFixture(2_000, floatPtr(12.00), "2025-01-01"),
		saleFixture(3_000, floatPtr(12.00), "2025-06-30"),
		saleFixture(4_000, floatPtr(12.00), "2025-07-01"),
	}
	filtered := FilterToWindow(sales, date("2025-01-01"), date("2025-06-30"))

	require.Len(t, filtered, 2)
	assert.Equal(t, 2_000.0, filtered[0].VolumeBushels)
	assert.Equal(t, 3_000.0, filtered[1].VolumeBushels)
}

func TestLastSaleDate(t *testing.T) {
	assert.Nil(t, LastSaleDate(nil))

	sales := []domain.VirtualSale{
		saleFixture(1_000, nil, "2025-03-01"),
		saleFixture(2_000, nil, "2025-05-15"),
		saleFixture(3_000, nil, "2025-01-10"),
	}
	last := LastSaleDate(sales)
	require.NotNil(t, last)
	assert.Equal(t, date("2025-05-15"), *last)
}
