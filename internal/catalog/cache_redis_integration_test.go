//go:build integration

package catalog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pps/pkg/domain"
	"pps/pkg/testutil/containers"
)

type countingCatalog struct {
	Catalog
	calls atomic.Int32
}

func (c *countingCatalog) Lookup(ctx context.Context, stage domain.Stage, area domain.Area, subline string) (Entry, bool, error) {
	c.calls.Add(1)
	return c.Catalog.Lookup(ctx, stage, area, subline)
}

type RedisCacheSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	source *countingCatalog
	cache  *Cache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	static, err := Default()
	s.Require().NoError(err)
	s.source = &countingCatalog{Catalog: static}
	s.cache = NewCache(s.source, s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) TestHitsAreServedFromRedis() {
	ctx := context.Background()
	first, found, err := s.cache.Lookup(ctx, domain.StagePuberty, domain.AreaCharacter, "2.2")
	s.Require().NoError(err)
	s.Require().True(found)

	second, found, err := s.cache.Lookup(ctx, domain.StagePuberty, domain.AreaCharacter, "2.2")
	s.Require().NoError(err)
	s.True(found)
	s.Equal(first, second)
	s.Equal(int32(1), s.source.calls.Load())
}

func (s *RedisCacheSuite) TestMissesAreCached() {
	ctx := context.Background()
	for range 3 {
		_, found, err := s.cache.Lookup(ctx, domain.StagePuberty, domain.AreaCharacter, "7.7")
		s.Require().NoError(err)
		s.False(found)
	}
	s.Equal(int32(1), s.source.calls.Load())
}

func (s *RedisCacheSuite) TestInvalidate() {
	ctx := context.Background()
	_, _, err := s.cache.Lookup(ctx, domain.StagePuberty, domain.AreaCharacter, "2.1")
	s.Require().NoError(err)
	keys, err := s.redis.Keys(ctx, cacheKeyPrefix+"*")
	s.Require().NoError(err)
	s.Len(keys, 1)

	s.Require().NoError(s.cache.Invalidate(ctx))
	keys, err = s.redis.Keys(ctx, cacheKeyPrefix+"*")
	s.Require().NoError(err)
	s.Empty(keys)
	_, _, err = s.cache.Lookup(ctx, domain.StagePuberty, domain.AreaCharacter, "2.1")
	s.Require().NoError(err)
	s.Equal(int32(2), s.source.calls.Load())
}
