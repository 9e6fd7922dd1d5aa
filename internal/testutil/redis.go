package testutil

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// MockCmdable is a testify mock of the Redis command set used by
// pkg/clients/redis. Wrap it with redis.NewFromClient.
//
// Variadic arguments are passed to Called as a single slice:
//
//	m.On("HSet", mock.Anything, "statemachine:m-1", []interface{}{"state", "Idle"}).
//	    Return(testutil.IntCmd(1, nil))
type MockCmdable struct {
	mock.Mock
}

func (m *MockCmdable) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	return m.Called(ctx, key, values).Get(0).(*redis.IntCmd)
}

func (m *MockCmdable) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	return m.Called(ctx, key).Get(0).(*redis.MapStringStringCmd)
}

func (m *MockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return m.Called(ctx, keys).Get(0).(*redis.IntCmd)
}

func (m *MockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return m.Called(ctx, key, expiration).Get(0).(*redis.BoolCmd)
}

func (m *MockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return m.Called(ctx).Get(0).(*redis.StatusCmd)
}

func (m *MockCmdable) Close() error {
	return m.Called().Error(0)
}

// IntCmd returns a completed *redis.IntCmd.
func IntCmd(val int64, err error) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

// BoolCmd returns a completed *redis.BoolCmd.
func BoolCmd(val bool, err error) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

// MapCmd returns a completed *redis.MapStringStringCmd.
func MapCmd(val map[string]string, err error) *redis.MapStringStringCmd {
	cmd := redis.NewMapStringStringCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}
