package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestLinkQueueEnqueueNewURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO queue_links").
		WithArgs(pgxmock.AnyArg(), "https://berkat.ru/1-a.html").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	q, err := NewLinkQueue(mock)
	require.NoError(t, err)

	added, err := q.Enqueue(context.Background(), "https://berkat.ru/1-a.html")
	require.NoError(t, err)
	require.True(t, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkQueueEnqueueExistingURLIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// ON CONFLICT DO NOTHING reports zero affected rows for a rediscovery.
	mock.ExpectExec("INSERT INTO queue_links").
		WithArgs(pgxmock.AnyArg(), "https://berkat.ru/1-a.html").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	q, err := NewLinkQueue(mock)
	require.NoError(t, err)

	added, err := q.Enqueue(context.Background(), "https://berkat.ru/1-a.html")
	require.NoError(t, err)
	require.False(t, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkQueueEnqueueRequiresURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	q, err := NewLinkQueue(mock)
	require.NoError(t, err)

	_, err = q.Enqueue(context.Background(), "")
	require.Error(t, err)
}

func TestLinkQueueDequeueBatch(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{"id", "url", "enqueued_at"}).
		AddRow("id-1", "https://berkat.ru/1-a.html", now).
		AddRow("id-2", "https://berkat.ru/2-b.html", now.Add(time.Second))

	mock.ExpectQuery("SELECT id, url, enqueued_at").
		WithArgs(5).
		WillReturnRows(rows)

	q, err := NewLinkQueue(mock)
	require.NoError(t, err)

	batch, err := q.DequeueBatch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, "id-1", batch[0].ID)
	require.Equal(t, "https://berkat.ru/2-b.html", batch[1].URL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkQueueRemove(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM queue_links").
		WithArgs("id-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	q, err := NewLinkQueue(mock)
	require.NoError(t, err)

	require.NoError(t, q.Remove(context.Background(), "id-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkQueueRemoveMissingRowIsNotAnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM queue_links").
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	q, err := NewLinkQueue(mock)
	require.NoError(t, err)

	require.NoError(t, q.Remove(context.Background(), "gone"))
	require.NoError(t, mock.ExpectationsWereMet())
}
