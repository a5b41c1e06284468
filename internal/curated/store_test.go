package curated

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
)

func TestMergeInsertsNewRecords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	records := []directory.StartupRecord{
		{ID: "startup-aaaa1111", Name: "Tech Océan"},
		{ID: "startup-bbbb2222", Name: "AgriPéi"},
	}
	insertPattern := regexp.QuoteMeta("INSERT INTO curated_startups")
	mock.ExpectExec(insertPattern).
		WithArgs("startup-aaaa1111", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Second record already curated: the conflict clause makes it a no-op.
	mock.ExpectExec(insertPattern).
		WithArgs("startup-bbbb2222", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	store := NewPostgresWithDB(mock, zap.NewNop())
	added, err := store.Merge(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeSkipsRecordsWithoutID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithDB(mock, zap.NewNop())
	added, err := store.Merge(context.Background(), []directory.StartupRecord{{Name: "Sans ID"}})
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergePropagatesExecError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO curated_startups")).
		WithArgs("startup-aaaa1111", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	store := NewPostgresWithDB(mock, zap.NewNop())
	_, err = store.Merge(context.Background(), []directory.StartupRecord{{ID: "startup-aaaa1111", Name: "X"}})
	assert.Error(t, err)
}

func TestListDecodesStoredRecords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := directory.StartupRecord{ID: "startup-aaaa1111", Name: "Tech Océan", Domain: "Technologie"}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT record FROM curated_startups")).
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(payload))

	store := NewPostgresWithDB(mock, zap.NewNop())
	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec, records[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
