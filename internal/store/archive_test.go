package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveStore_DeleteExecution_CommitsTransaction(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewArchiveStore(db)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM node_execution WHERE execution_id = \$1`).
		WithArgs("exec-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM execution WHERE id = \$1`).
		WithArgs("exec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.DeleteExecution(context.Background(), "exec-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveStore_ListExpiredArchives(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewArchiveStore(db)
	mock.ExpectQuery(`SELECT id FROM execution_archive WHERE archived_at <= \$1 ORDER BY archived_at ASC LIMIT \$2`).
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("archive-1").AddRow("archive-2"))

	ids, err := store.ListExpiredArchives(context.Background(), time.Now(), 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive-1", "archive-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
