package meetings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/meeting-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MeetingsModule stores meetings and participation history via GORM + SQLite.
type MeetingsModule struct {
	db      *gorm.DB
	repo    *Repository
	service *Service
	config  Config
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*MeetingsModule)(nil)
	_ mono.ServiceProviderModule = (*MeetingsModule)(nil)
	_ mono.EventConsumerModule   = (*MeetingsModule)(nil)
	_ mono.HealthCheckableModule = (*MeetingsModule)(nil)
)

// NewModule creates a new MeetingsModule.
func NewModule(config Config, logger types.Logger) *MeetingsModule {
	if config.DBPath == "" {
		config.DBPath = DefaultConfig().DBPath
	}
	return &MeetingsModule{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *MeetingsModule) Name() string {
	return "meetings"
}

// Start opens the database, runs migrations and closes sessions left open
// by a previous process.
func (m *MeetingsModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := m.init(db); err != nil {
		return err
	}

	closed, err := m.repo.CloseAllOpenSessions(time.Now())
	if err != nil {
		return err
	}

	m.logger.Info("Meetings module started",
		"database", m.config.DBPath,
		"autoCreate", m.config.AutoCreate,
		"defaultCapacity", m.service.config.DefaultCapacity,
		"staleSessionsClosed", closed)
	return nil
}

func (m *MeetingsModule) init(db *gorm.DB) error {
	if err := db.AutoMigrate(&Meeting{}, &ParticipantSession{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	m.db = db
	m.repo = NewRepository(db)
	m.service = NewService(m.repo, m.config)
	return nil
}

// Stop gracefully closes the database connection.
func (m *MeetingsModule) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.logger.Info("Meetings module stopped")
	return nil
}

// Health performs a health check on the meetings module.
func (m *MeetingsModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.config.DBPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *MeetingsModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreate, json.Unmarshal, json.Marshal, m.handleCreate,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreate, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGet, json.Unmarshal, json.Marshal, m.handleGet,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGet, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAdmit, json.Unmarshal, json.Marshal, m.handleAdmit,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceAdmit, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSessions, json.Unmarshal, json.Marshal, m.handleSessions,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSessions, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceEnd, json.Unmarshal, json.Marshal, m.handleEnd,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceEnd, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSchedule, json.Unmarshal, json.Marshal, m.handleSchedule,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSchedule, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListScheduled, json.Unmarshal, json.Marshal, m.handleListScheduled,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListScheduled, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCancelScheduled, json.Unmarshal, json.Marshal, m.handleCancelScheduled,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCancelScheduled, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceHistory, json.Unmarshal, json.Marshal, m.handleHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceHistory, err)
	}

	m.logger.Info("Registered services",
		"services", []string{
			ServiceCreate, ServiceGet, ServiceAdmit, ServiceSessions, ServiceEnd,
			ServiceSchedule, ServiceListScheduled, ServiceCancelScheduled, ServiceHistory,
		})
	return nil
}

// RegisterEventConsumers subscribes to relay membership and lock events.
func (m *MeetingsModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantJoinedV1, m.handleParticipantJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantLeftV1, m.handleParticipantLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.AILockChangedV1, m.handleAILockChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register AILockChanged consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"ParticipantJoined", "ParticipantLeft", "AILockChanged"})
	return nil
}
