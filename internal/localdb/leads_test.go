package localdb

import (
	"clarity/internal/models"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lead(id string, ts int64) models.LeadRecord {
	return models.LeadRecord{LeadID: id, Name: "Student " + id, TimestampMs: ts, InstitutionID: "i1"}
}

func assertDescending(t *testing.T, leads []models.LeadRecord) {
	t.Helper()
	for i := 1; i < len(leads); i++ {
		assert.GreaterOrEqual(t, leads[i-1].TimestampMs, leads[i].TimestampMs)
	}
}

func TestLocalDB_ReplaceRecentWithTopN(t *testing.T) {
	db, _, _ := newTestDB(t)
	ctx := context.Background()

	var page []models.LeadRecord
	for i := 0; i < 15; i++ {
		page = append(page, lead(fmt.Sprint(i), int64(i*100)))
	}

	stored, err := db.ReplaceRecentWithTopN(ctx, page, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 10)

	got, err := db.LoadRecentLeads(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, got, 10)
	assertDescending(t, got)
	assert.Equal(t, "14", got[0].LeadID)
	assert.Equal(t, "5", got[9].LeadID)

	// A second replace drops everything from the first.
	_, err = db.ReplaceRecentWithTopN(ctx, []models.LeadRecord{lead("x", 1)}, 10)
	require.NoError(t, err)
	got, err = db.LoadRecentLeads(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].LeadID)
}

func TestLocalDB_PrependAndTrimKeepsCap(t *testing.T) {
	db, _, _ := newTestDB(t)
	ctx := context.Background()

	var seed []models.LeadRecord
	for i := 0; i < 10; i++ {
		seed = append(seed, lead(fmt.Sprint(i), int64(1000+i)))
	}
	_, err := db.ReplaceRecentWithTopN(ctx, seed, 10)
	require.NoError(t, err)

	stored, err := db.PrependAndTrim(ctx, []models.LeadRecord{lead("new", 5000)}, 10)
	require.NoError(t, err)
	require.Len(t, stored, 10)
	assert.Equal(t, "new", stored[0].LeadID)

	got, err := db.LoadRecentLeads(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, got, 10)
	assertDescending(t, got)
	assert.Equal(t, "new", got[0].LeadID)
	for _, l := range got {
		assert.NotEqual(t, "0", l.LeadID, "oldest lead must be trimmed")
	}
}

func TestLocalDB_PrependAndTrimDeduplicates(t *testing.T) {
	db, _, _ := newTestDB(t)
	ctx := context.Background()

	_, err := db.ReplaceRecentWithTopN(ctx, []models.LeadRecord{lead("a", 10), lead("b", 20)}, 10)
	require.NoError(t, err)

	updated := lead("a", 10)
	updated.Status = "contacted"
	stored, err := db.PrependAndTrim(ctx, []models.LeadRecord{updated}, 10)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	got, err := db.LoadRecentLeads(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].LeadID)
	assert.Equal(t, "contacted", got[1].Status)
}

func TestLocalDB_PrependAndTrimOlderThanAll(t *testing.T) {
	db, _, _ := newTestDB(t)
	ctx := context.Background()

	var seed []models.LeadRecord
	for i := 0; i < 10; i++ {
		seed = append(seed, lead(fmt.Sprint(i), int64(100+i)))
	}
	_, err := db.ReplaceRecentWithTopN(ctx, seed, 10)
	require.NoError(t, err)

	stored, err := db.PrependAndTrim(ctx, []models.LeadRecord{lead("ancient", 1)}, 10)
	require.NoError(t, err)
	require.Len(t, stored, 10)
	for _, l := range stored {
		assert.NotEqual(t, "ancient", l.LeadID)
	}
}

func TestLatestLeadsUpdate(t *testing.T) {
	assert.Equal(t, int64(0), LatestLeadsUpdate(nil))
	assert.Equal(t, int64(7), LatestLeadsUpdate([]models.LeadRecord{{LastUpdated: 3}, {LastUpdated: 7}}))
}
