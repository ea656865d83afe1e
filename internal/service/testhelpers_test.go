package service

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// One shared in-memory database per test, isolated by name so the
	// connection pool always sees the same schema.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&domain.Expert{},
		&domain.Document{},
		&domain.ProcessingTask{},
		&domain.ProcessingProgress{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestQueue(t *testing.T, db *gorm.DB) *QueueService {
	t.Helper()
	return NewQueueService(repository.NewTaskRepository(db), QueueConfig{MaxRetries: 3}, nil)
}

func newTestProgress(t *testing.T, db *gorm.DB) *ProgressService {
	t.Helper()
	return NewProgressService(repository.NewProgressRepository(db), repository.NewTaskRepository(db), nil)
}

func createTestExpert(t *testing.T, db *gorm.DB, id, agentID string) *domain.Expert {
	t.Helper()
	expert := &domain.Expert{
		ID:      id,
		AgentID: agentID,
		Name:    "Test Expert " + id,
	}
	if err := repository.NewExpertRepository(db).Create(context.Background(), expert); err != nil {
		t.Fatalf("create expert: %v", err)
	}
	return expert
}

func createTestDocument(t *testing.T, db *gorm.DB, expertID, id, text string) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:               id,
		ExpertID:         expertID,
		Name:             fmt.Sprintf("%s.txt", id),
		ContentType:      "text/plain",
		Content:          []byte(text),
		Size:             int64(len(text)),
		ProcessingStatus: domain.DocumentStatusPending,
	}
	if err := repository.NewDocumentRepository(db).Create(context.Background(), doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}
