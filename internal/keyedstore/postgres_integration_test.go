//go:build integration

package keyedstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"pps/pkg/testutil/containers"
)

type PostgresTableSuite struct {
	TableSuite
	postgres *containers.PostgresContainer
	backend  *PostgresBackend
}

func TestPostgresTableSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresTableSuite))
}

func (s *PostgresTableSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.backend = NewPostgresBackend(s.postgres.DB)
	s.newBackend = func() Backend { return s.backend }

	ctx := context.Background()
	s.Require().NoError(s.backend.EnsureSchema(ctx, peopleSchema))
	s.Require().NoError(s.backend.EnsureSchema(ctx, itemsSchema))
}

func (s *PostgresTableSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), peopleSchema.Table, itemsSchema.Table)
	s.Require().NoError(err)
	s.TableSuite.SetupTest()
}

func (s *PostgresTableSuite) TestEnsureSchemaIsIdempotent() {
	s.NoError(s.backend.EnsureSchema(context.Background(), peopleSchema))
}
