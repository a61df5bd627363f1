package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err      error
	deadline bool
}

func (p *fakePinger) Ping(ctx context.Context) error {
	_, p.deadline = ctx.Deadline()
	return p.err
}

func TestDefaultCheckerConfig(t *testing.T) {
	assert.Equal(t, 2*time.Second, DefaultCheckerConfig().Timeout)
}

func TestDatabaseChecker(t *testing.T) {
	tests := []struct {
		name    string
		db      Pinger
		wantErr string
	}{
		{"nil pool", nil, "database connection is nil"},
		{"healthy", &fakePinger{}, ""},
		{"ping failure", &fakePinger{err: errors.New("connection refused")}, "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DatabaseChecker(tt.db)()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestDatabaseChecker_UsesDeadline(t *testing.T) {
	p := &fakePinger{}

	_ = databaseChecker(p, CheckerConfig{Timeout: time.Second})()

	assert.True(t, p.deadline)
}

func TestRedisChecker(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")
	mock.ExpectPing().SetErr(errors.New("redis down"))

	check := RedisChecker(client)

	assert.NoError(t, check())
	assert.EqualError(t, check(), "redis down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisChecker_Nil(t *testing.T) {
	assert.EqualError(t, RedisChecker(nil)(), "redis client is nil")
}

func TestNATSChecker_Nil(t *testing.T) {
	assert.EqualError(t, NATSChecker(nil)(), "nats connection is nil")
}

func TestHTTPEndpointChecker(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"no content", http.StatusNoContent, false},
		{"server error", http.StatusInternalServerError, true},
		{"not found", http.StatusNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := HTTPEndpointChecker(server.URL, DefaultCheckerConfig())()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPEndpointChecker_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	assert.Error(t, HTTPEndpointChecker(url, CheckerConfig{Timeout: 100 * time.Millisecond})())
}
