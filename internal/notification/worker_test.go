package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func emptyResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

const subscriptionsQuery = `SELECT .* FROM "push_subscriptions".*JOIN .*subscription_table_mapping.*WHERE .*stm\.table_id = \$1`
const tableNameQuery = `SELECT "name" FROM "tables" WHERE "tables"."id" = \$1 ORDER BY "tables"."id" LIMIT \$[0-9]+`

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	wp.Dispatch(123)

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, int64(123), job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchDoesNotBlockWhenFull(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(wp.jobs)+5; i++ {
			wp.Dispatch(int64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Len(t, wp.jobs, cap(wp.jobs))
}

func TestWorkerPool_DrainWithoutStart(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	var sent []string
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			sent = append(sent, sub.Endpoint)
			return emptyResponse(http.StatusCreated), nil
		},
	}

	mock.ExpectQuery(subscriptionsQuery).
		WithArgs(int64(201)).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
			AddRow("https://example.com/a", "p", "a", time.Now()))
	mock.ExpectQuery(tableNameQuery).
		WithArgs(int64(201), 1).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Table 1"))
	mock.ExpectQuery(subscriptionsQuery).
		WithArgs(int64(202)).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}))

	wp.Dispatch(201)
	wp.Dispatch(202)

	assert.Equal(t, 2, wp.Drain(context.Background()))
	assert.Equal(t, []string{"https://example.com/a"}, sent)
	assert.Empty(t, wp.jobs)
	assert.Equal(t, 0, wp.Drain(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		tableID := int64(101)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)

				var msg TableFreed
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Table 7 is available", msg.Body)
				assert.Equal(t, tableID, msg.TableID)
				return emptyResponse(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs(tableID).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", time.Now()))

		mock.ExpectQuery(tableNameQuery).
			WithArgs(tableID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Table 7"))

		wp.Dispatch(tableID)
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		tableID := int64(102)
		endpoint := "https://example.com/expired"

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return emptyResponse(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs(tableID).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow(endpoint, "p", "a", time.Now()))

		mock.ExpectQuery(tableNameQuery).
			WithArgs(tableID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Table 8"))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM subscription_table_mapping WHERE push_subscription_endpoint = \$1`).
			WithArgs(endpoint).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs(endpoint).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(tableID)

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("falls back to table ID when lookup fails", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		tableID := int64(103)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				var msg TableFreed
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "103 is available", msg.Body)
				return emptyResponse(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs(tableID).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/fallback", "p", "a", time.Now()))

		mock.ExpectQuery(tableNameQuery).
			WithArgs(tableID, 1).
			WillReturnError(fmt.Errorf("table not found"))

		wp.Dispatch(tableID)
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
