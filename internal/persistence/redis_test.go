package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := &Redis{Client: db}

	mock.ExpectPublish("support:tickets", []byte(`{"event":"supportTicketUpdated"}`)).SetVal(1)
	require.NoError(t, r.Publish(context.Background(), "support:tickets", []byte(`{"event":"supportTicketUpdated"}`)))

	mock.ExpectPublish("support:tickets", []byte("x")).SetErr(errors.New("READONLY"))
	assert.Error(t, r.Publish(context.Background(), "support:tickets", []byte("x")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := &Redis{Client: db}

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, r.Ping(context.Background()))
	mock.ExpectPing().SetErr(errors.New("dial tcp: connection refused"))
	assert.Error(t, r.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNilRedis(t *testing.T) {
	var r *Redis
	assert.ErrorIs(t, r.Ping(context.Background()), errNotConfigured)
	assert.ErrorIs(t, r.Publish(context.Background(), "c", nil), errNotConfigured)
	r.Close()
}
