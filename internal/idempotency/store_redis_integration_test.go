//go:build integration

package idempotency_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contacts/internal/idempotency"
	"contacts/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *idempotency.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = idempotency.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestReserveCompleteReplay() {
	ctx := context.Background()

	_, reserved, err := s.store.Reserve(ctx, "POST /api/contacts k", "fp", time.Minute)
	s.Require().NoError(err)
	s.True(reserved)

	existing, reserved, err := s.store.Reserve(ctx, "POST /api/contacts k", "fp", time.Minute)
	s.Require().NoError(err)
	s.False(reserved)
	s.Equal(idempotency.StatePending, existing.State)

	s.Require().NoError(s.store.Complete(ctx, "POST /api/contacts k", idempotency.Record{
		State:       idempotency.StateDone,
		Fingerprint: "fp",
		Response:    &idempotency.Response{Status: 201, ContentType: "application/json", Body: []byte(`{"id":"x"}`)},
	}, time.Minute))

	existing, reserved, err = s.store.Reserve(ctx, "POST /api/contacts k", "fp", time.Minute)
	s.Require().NoError(err)
	s.False(reserved)
	s.Equal(idempotency.StateDone, existing.State)
	s.Equal(`{"id":"x"}`, string(existing.Response.Body))

	ttl, err := s.redis.Client.TTL(ctx, "idem:POST /api/contacts k").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisStoreSuite) TestCompleteRequiresReservation() {
	err := s.store.Complete(context.Background(), "nope", idempotency.Record{State: idempotency.StateDone}, time.Minute)
	s.ErrorIs(err, idempotency.ErrNotReserved)
}

func (s *RedisStoreSuite) TestReleaseAllowsRetry() {
	ctx := context.Background()
	_, reserved, err := s.store.Reserve(ctx, "k", "fp", time.Minute)
	s.Require().NoError(err)
	s.Require().True(reserved)

	s.Require().NoError(s.store.Release(ctx, "k"))

	_, reserved, err = s.store.Reserve(ctx, "k", "fp", time.Minute)
	s.Require().NoError(err)
	s.True(reserved)
}

func (s *RedisStoreSuite) TestConcurrentReserveHasOneWinner() {
	ctx := context.Background()
	const goroutines = 20
	var wg sync.WaitGroup
	var winners atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, reserved, err := s.store.Reserve(ctx, "race", "fp", time.Minute)
			if err == nil && reserved {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), winners.Load())
}
