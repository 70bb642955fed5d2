package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"bookswap/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertThreadSQL = `INSERT INTO chats (book_id, seller_id, buyer_id) VALUES ($1, $2, $3) RETURNING id, created_at, last_message_at`
	selectTripleSQL = `SELECT id, book_id, seller_id, buyer_id, created_at, last_message_at FROM chats WHERE book_id = $1 AND seller_id = $2 AND buyer_id = $3`
	selectByIDSQL   = `SELECT id, book_id, seller_id, buyer_id, created_at, last_message_at FROM chats WHERE id = $1`
)

func threadColumns() []string {
	return []string{"id", "book_id", "seller_id", "buyer_id", "created_at", "last_message_at"}
}

func TestThreadRepository_CreateOrGet(t *testing.T) {
	t.Run("inserts_new_thread", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(insertThreadSQL)).
			WithArgs("book1", "s1", "b1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "last_message_at"}).
				AddRow("thread-1", now, now))

		repo := NewThreadRepository(db)
		thread, created, err := repo.CreateOrGet(context.Background(), "book1", "s1", "b1")

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "thread-1", thread.ID)
		assert.Equal(t, "book1", thread.BookID)
		assert.Equal(t, "s1", thread.SellerID)
		assert.Equal(t, "b1", thread.BuyerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique_violation_returns_existing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(insertThreadSQL)).
			WithArgs("book1", "s1", "b1").
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: threadUniqueConstraint})

		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(selectTripleSQL)).
			WithArgs("book1", "s1", "b1").
			WillReturnRows(sqlmock.NewRows(threadColumns()).
				AddRow("thread-1", "book1", "s1", "b1", now, now))

		repo := NewThreadRepository(db)
		thread, created, err := repo.CreateOrGet(context.Background(), "book1", "s1", "b1")

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "thread-1", thread.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique_violation_on_other_constraint_is_an_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(insertThreadSQL)).
			WithArgs("book1", "s1", "b1").
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "chats_pkey"})

		repo := NewThreadRepository(db)
		_, _, err = repo.CreateOrGet(context.Background(), "book1", "s1", "b1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create thread")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert_error_propagates", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(insertThreadSQL)).
			WithArgs("book1", "s1", "b1").
			WillReturnError(errors.New("connection refused"))

		repo := NewThreadRepository(db)
		_, _, err = repo.CreateOrGet(context.Background(), "book1", "s1", "b1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create thread")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestThreadRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(selectByIDSQL)).
			WithArgs("thread-1").
			WillReturnRows(sqlmock.NewRows(threadColumns()).
				AddRow("thread-1", "book1", "s1", "b1", now, now))

		repo := NewThreadRepository(db)
		thread, err := repo.GetByID(context.Background(), "thread-1")

		require.NoError(t, err)
		assert.Equal(t, "thread-1", thread.ID)
		assert.Equal(t, "b1", thread.BuyerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not_found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(selectByIDSQL)).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(threadColumns()))

		repo := NewThreadRepository(db)
		_, err = repo.GetByID(context.Background(), "missing")

		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func summaryColumns() []string {
	return []string{"id", "book_id", "peer_id", "peer_name", "last_message", "last_message_at", "unread_count"}
}

func TestThreadRepository_ListForUser(t *testing.T) {
	t.Run("buyer_threads_with_unread_counts", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(`WHERE c\.buyer_id = \$1`).
			WithArgs("b1", "seller").
			WillReturnRows(sqlmock.NewRows(summaryColumns()).
				AddRow("thread-2", "book2", "s2", "Maria", "deal", now, 3).
				AddRow("thread-1", "book1", "s1", "Ana", "hello", now.Add(-time.Hour), 0))

		repo := NewThreadRepository(db)
		summaries, err := repo.ListForUser(context.Background(), "b1", domain.RoleBuyer)

		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "thread-2", summaries[0].ThreadID)
		assert.Equal(t, "Maria", summaries[0].PeerName)
		assert.Equal(t, 3, summaries[0].UnreadCount)
		assert.Equal(t, "thread-1", summaries[1].ThreadID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("seller_threads_count_buyer_messages", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`WHERE c\.seller_id = \$1`).
			WithArgs("s1", "buyer").
			WillReturnRows(sqlmock.NewRows(summaryColumns()))

		repo := NewThreadRepository(db)
		summaries, err := repo.ListForUser(context.Background(), "s1", domain.RoleSeller)

		require.NoError(t, err)
		assert.Empty(t, summaries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_role", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewThreadRepository(db)
		_, err = repo.ListForUser(context.Background(), "u1", domain.Role("admin"))

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestThreadRepository_ListActiveForSeller(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`AND EXISTS \(SELECT 1 FROM chat_messages WHERE chat_id = c\.id\)`).
		WithArgs("s1", "buyer").
		WillReturnRows(sqlmock.NewRows(summaryColumns()).
			AddRow("thread-1", "book1", "b1", "Joao", "still available?", now, 1))

	repo := NewThreadRepository(db)
	summaries, err := repo.ListActiveForSeller(context.Background(), "s1")

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "b1", summaries[0].PeerID)
	assert.Equal(t, 1, summaries[0].UnreadCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
