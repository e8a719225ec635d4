package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/event"
	pkgkafka "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/kafka"
)

// --- Mock Identity Repository ---

type mockIdentityRepository struct {
	mock.Mock
}

func (m *mockIdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *mockIdentityRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *mockIdentityRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// --- Mock Token Repository ---

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, token *domain.AuthToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthToken), args.Error(1)
}

func (m *mockTokenRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockTokenRepository) RevokeByHash(ctx context.Context, tokenHash string) (bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepository) RevokeAllByIdentity(ctx context.Context, identityID string, kind *domain.TokenKind) (int64, error) {
	args := m.Called(ctx, identityID, kind)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepository) ListActiveByIdentity(ctx context.Context, identityID string, now time.Time) ([]domain.AuthToken, error) {
	args := m.Called(ctx, identityID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuthToken), args.Error(1)
}

// --- Mock Audit Repository ---

type mockAuditRepository struct {
	mock.Mock
}

func (m *mockAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditEntry), args.Error(1)
}

// --- Mock Usage Repository ---

type mockUsageRepository struct {
	mock.Mock
}

func (m *mockUsageRepository) Increment(ctx context.Context, identityID string, metric domain.MetricType, periodStart, periodEnd time.Time, delta int64) error {
	args := m.Called(ctx, identityID, metric, periodStart, periodEnd, delta)
	return args.Error(0)
}

func (m *mockUsageRepository) Get(ctx context.Context, identityID string, metric domain.MetricType, periodStart time.Time) (int64, error) {
	args := m.Called(ctx, identityID, metric, periodStart)
	return args.Get(0).(int64), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

// hashForTest creates a bcrypt hash with cost 4 for fast tests.
func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func timeNowPlusHour() time.Time {
	return time.Now().UTC().Add(time.Hour)
}

func testIdentity() *domain.Identity {
	now := time.Now().UTC()
	return &domain.Identity{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Smith",
		Role:         domain.RoleFree,
		PasswordHash: hashForTest("Correct1Pass"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
