package timeline

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericscottllc/triggergrain/internal/domain"
	tgtesting "github.com/ericscottllc/triggergrain/internal/testing"
)

func newTestRecRepo(t *testing.T) (*RecommendationRepository, func()) {
	t.Helper()
	db, cleanup := tgtesting.NewTestDB(t, "scenario")

	now := time.Now().Unix()
	_, err := db.Conn().Exec(`
		INSERT INTO scenarios (id, name, start_date, end_date, production_estimate, status, created_by, created_at, updated_at)
		VALUES ('scn-1', 'test', ?, ?, 100000, 'active', 'tester', ?, ?)`,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC).Unix(), now, now)
	require.NoError(t, err)

	return NewRecommendationRepository(db.Conn(), zerolog.Nop()), cleanup
}

func TestRecommendationRepositoryCreateAndList(t *testing.T) {
	repo, cleanup := newTestRecRepo(t)
	defer cleanup()

	later := domain.RecommendationPoint{
		ScenarioID:           "scn-1",
		TargetDate:           time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetPercentageSold: 40,
		CreatedBy:            "tester",
	}
	earlier := later
	earlier.TargetDate = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	earlier.TargetPercentageSold = 20

	_, err := repo.Create(later)
	require.NoError(t, err)
	created, err := repo.Create(earlier)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	points, err := repo.GetByScenario("scn-1")
	require.NoError(t, err)
	require.Len(t, points, 2)
	// Ordered by target date
	assert.Equal(t, 20.0, points[0].TargetPercentageSold)
	assert.Equal(t, 40.0, points[1].TargetPercentageSold)
}

func TestRecommendationRepositoryRejectsDuplicateDate(t *testing.T) {
	repo, cleanup := newTestRecRepo(t)
	defer cleanup()

	point := domain.RecommendationPoint{
		ScenarioID:           "scn-1",
		TargetDate:           time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		TargetPercentageSold: 30,
		CreatedBy:            "tester",
	}

	_, err := repo.Create(point)
	require.NoError(t, err)

	// The UNIQUE(scenario_id, target_date) constraint backstops validation
	_, err = repo.Create(point)
	assert.Error(t, err)
}

func TestRecommendationRepositoryDelete(t *testing.T) {
	repo, cleanup := newTestRecRepo(t)
	defer cleanup()

	created, err := repo.Create(domain.RecommendationPoint{
		ScenarioID:           "scn-1",
		TargetDate:           time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		TargetPercentageSold: 30,
		CreatedBy:            "tester",
	})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(created.ID))

	_, err = repo.GetByID(created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(created.ID), domain.ErrNotFound)
}
