package store

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Error paths are driven through a mocked connection; the happy paths run
// against a real database in store_test.go.

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLiteStore{db: db}, mock
}

func TestSaveBundle_InsertFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bundles").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveBundle(sampleBundle("sample"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBundle_FileInsertFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bundles").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM bundle_files").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO bundle_files").WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	err := s.SaveBundle(sampleBundle("sample"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint violated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBundles_QueryFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bundles").WillReturnError(errors.New("connection lost"))

	_, err := s.ListBundles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list bundles")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_ExecFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE bundles SET status").WillReturnError(errors.New("readonly database"))

	err := s.SetStatus("sample", "compiled", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readonly database")
	assert.NoError(t, mock.ExpectationsWereMet())
}
