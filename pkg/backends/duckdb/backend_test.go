package duckdb

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMockedBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	b := New(nil)
	b.DB = db
	return b, mock
}

func TestLoadCSVKeepsObjectStorePath(t *testing.T) {
	b, mock := newMockedBackend(t)

	// s3:// must reach read_csv_auto untouched; filesystem normalization
	// would collapse the double slash and break the URL.
	mock.ExpectExec(regexp.QuoteMeta(`read_csv_auto('s3://bucket/data.csv', header=true)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, b.LoadCSV(context.Background(), "raw_orders", "s3://bucket/data.csv"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCSVAnchorsLocalPath(t *testing.T) {
	b, mock := newMockedBackend(t)

	abs, err := filepath.Abs("data.csv")
	require.NoError(t, err)
	mock.ExpectExec(regexp.QuoteMeta(abs)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, b.LoadCSV(context.Background(), "raw_orders", "data.csv"))
	require.NoError(t, mock.ExpectationsWereMet())
}
