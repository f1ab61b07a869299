package integration_test

import (
	"context"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	pgtc "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// ownedTables are emptied before every test.
var ownedTables = []string{
	"crm_records",
	"sync_settings",
	"page_configs",
	"sync_notes",
	"exhausted_triggers",
}

// BaseIntegrationSuite starts Postgres and NATS once per suite and migrates the schema.
type BaseIntegrationSuite struct {
	suite.Suite
	Postgres    testcontainers.Container
	PostgresDSN string
	NATS        testcontainers.Container
	NATSURL     string
	DB          *gorm.DB
	Repo        *storage.PostgresRepo
	Ctx         context.Context
	cancel      context.CancelFunc
}

// SetupSuite runs once before the tests in the suite are run.
func (s *BaseIntegrationSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping container tests in short mode")
	}
	s.Ctx, s.cancel = context.WithCancel(context.Background())
	logger.Log = zaptest.NewLogger(s.T()).Named("integration")

	startTime := time.Now()
	var err error

	s.Postgres, s.PostgresDSN, err = startPostgres(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start postgres: %v", err)
	}
	log.Println("PostgreSQL container started.")

	s.NATS, s.NATSURL, err = startNATSContainer(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start NATS: %v", err)
	}
	log.Println("NATS container started.")

	s.DB, err = gorm.Open(postgres.Open(s.PostgresDSN), &gorm.Config{})
	if err != nil {
		s.T().Fatalf("Failed to open gorm connection: %v", err)
	}
	s.Repo = storage.NewPostgresRepoFromDB(s.DB)
	if err := s.Repo.Migrate(s.Ctx); err != nil {
		s.T().Fatalf("Failed to migrate schema: %v", err)
	}

	log.Printf("BaseIntegrationSuite setup complete in %v", time.Since(startTime))
}

// TearDownSuite runs once after all tests in the suite have finished.
func (s *BaseIntegrationSuite) TearDownSuite() {
	if s.Repo != nil {
		_ = s.Repo.Close(s.Ctx)
	}
	if s.NATS != nil {
		if err := s.NATS.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating NATS container: %v", err)
		}
	}
	if s.Postgres != nil {
		if err := s.Postgres.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating PostgreSQL container: %v", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// SetupTest truncates every owned table.
func (s *BaseIntegrationSuite) SetupTest() {
	for _, table := range ownedTables {
		err := s.DB.WithContext(s.Ctx).Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error
		s.Require().NoError(err, "Failed to truncate %s", table)
	}
}

// CountRows returns the number of rows in table matching where.
func (s *BaseIntegrationSuite) CountRows(table, where string, args ...interface{}) int64 {
	var count int64
	err := s.DB.WithContext(s.Ctx).Table(table).Where(where, args...).Count(&count).Error
	s.Require().NoError(err)
	return count
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := pgtc.Run(ctx,
		"postgres:17-bookworm",
		pgtc.WithDatabase("lead_sync"),
		pgtc.WithUsername("postgres"),
		pgtc.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return pgContainer, "", fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}
	return pgContainer, dsn, nil
}

func startNATSContainer(ctx context.Context) (testcontainers.Container, string, error) {
	natsContainer, err := tcnats.Run(ctx,
		"nats:2.11-alpine",
		tcnats.WithArgument("name", "lead-sync-test-nats"),
		tcnats.WithArgument("store_dir", "/data"),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start NATS container: %w", err)
	}

	natsURL, err := natsContainer.ConnectionString(ctx)
	if err != nil {
		return natsContainer, "", fmt.Errorf("failed to get NATS connection string: %w", err)
	}
	return natsContainer, natsURL, nil
}
