package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/sahil/voxpert/internal/domain"
	"github.com/sahil/voxpert/internal/repository"
)

// fakeIndex records upserts in memory, keyed by namespace.
type fakeIndex struct {
	mu         sync.Mutex
	byNS       map[string][]domain.Chunk
	failUpsert bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{byNS: make(map[string][]domain.Chunk)}
}

func (f *fakeIndex) UpsertBatch(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return 0, context.DeadlineExceeded
	}
	f.byNS[namespace] = append(f.byNS[namespace], chunks...)
	return len(chunks), nil
}

func (f *fakeIndex) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]repository.ChunkSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.ChunkSearchResult
	for _, c := range f.byNS[namespace] {
		out = append(out, repository.ChunkSearchResult{ID: c.ID, Score: 1, Metadata: c.Metadata})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (f *fakeIndex) DeleteByFile(ctx context.Context, namespace, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.byNS[namespace][:0]
	for _, c := range f.byNS[namespace] {
		if c.Metadata.FileID != fileID {
			kept = append(kept, c)
		}
	}
	f.byNS[namespace] = kept
	return nil
}

func (f *fakeIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byNS, namespace)
	return nil
}

func (f *fakeIndex) count(namespace string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byNS[namespace])
}

type ingestFixture struct {
	db      *gorm.DB
	index   *fakeIndex
	ingest  *IngestService
	queue   *QueueService
	prog    *ProgressService
	docRepo *repository.DocumentRepository
}

func newIngestFixture(t *testing.T, embedder Embedder) *ingestFixture {
	t.Helper()
	db := newTestDB(t)
	index := newFakeIndex()
	queue := newTestQueue(t, db)
	prog := newTestProgress(t, db)
	docRepo := repository.NewDocumentRepository(db)

	processor := NewDocumentProcessor(embedder, testProcessorConfig(), nil)
	vectors := NewVectorStoreService(index, VectorStoreConfig{UpsertBatchSize: 100}, nil)
	ingest := NewIngestService(
		repository.NewExpertRepository(db),
		docRepo,
		nil,
		NewPlainTextExtractor(),
		processor,
		vectors,
		prog,
		queue,
		nil,
	)
	return &ingestFixture{db: db, index: index, ingest: ingest, queue: queue, prog: prog, docRepo: docRepo}
}

func TestProcessExpertFilesHappyPath(t *testing.T) {
	fx := newIngestFixture(t, &fakeEmbedder{})
	ctx := context.Background()

	createTestExpert(t, fx.db, "e1", "agent-1")
	files := []string{"d1", "d2", "d3"}
	for _, id := range files {
		createTestDocument(t, fx.db, "e1", id, wordsText(40))
	}

	result, err := fx.ingest.ProcessExpertFiles(ctx, "e1", "agent-1", files)
	if err != nil {
		t.Fatalf("ProcessExpertFiles: %v", err)
	}
	if result.ProcessedCount != 3 || len(result.FailedFiles) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if fx.index.count("agent-1") == 0 {
		t.Error("no vectors stored in the expert's namespace")
	}

	record, _ := fx.prog.Get(ctx, "e1")
	if record == nil || record.Status != domain.ProgressStatusCompleted {
		t.Fatalf("progress not completed: %+v", record)
	}
	if record.ProgressPercentage != 100.0 {
		t.Errorf("progress = %v, want 100.0", record.ProgressPercentage)
	}

	for _, id := range files {
		doc, err := fx.docRepo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if doc.ProcessingStatus != domain.DocumentStatusCompleted {
			t.Errorf("doc %s status = %s", id, doc.ProcessingStatus)
		}
		if doc.WordCount == 0 {
			t.Errorf("doc %s word count not recorded", id)
		}
	}
}

func TestProcessExpertFilesPartialSuccess(t *testing.T) {
	fx := newIngestFixture(t, &fakeEmbedder{})
	ctx := context.Background()

	createTestExpert(t, fx.db, "e1", "agent-1")
	createTestDocument(t, fx.db, "e1", "good1", wordsText(40))
	createTestDocument(t, fx.db, "e1", "empty", "")
	createTestDocument(t, fx.db, "e1", "good2", wordsText(40))

	result, err := fx.ingest.ProcessExpertFiles(ctx, "e1", "agent-1", []string{"good1", "empty", "good2"})
	if err != nil {
		t.Fatalf("ProcessExpertFiles: %v", err)
	}
	if result.ProcessedCount != 2 || len(result.FailedFiles) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.FailedFiles[0].FileID != "empty" {
		t.Errorf("wrong failed file: %+v", result.FailedFiles[0])
	}

	// Partial success still completes the run, flagged in details.
	record, _ := fx.prog.Get(ctx, "e1")
	if record.Status != domain.ProgressStatusCompleted {
		t.Errorf("progress status = %s, want completed", record.Status)
	}
	if record.Details == nil || record.Details["partial_success"] != true {
		t.Errorf("partial_success not flagged: %v", record.Details)
	}
	if record.FailedFiles != 1 {
		t.Errorf("failed_files = %d, want 1", record.FailedFiles)
	}

	doc, _ := fx.docRepo.GetByID(ctx, "empty")
	if doc.ProcessingStatus != domain.DocumentStatusFailed {
		t.Errorf("empty doc status = %s, want failed", doc.ProcessingStatus)
	}
}

func TestProcessExpertFilesAllFail(t *testing.T) {
	// Embedder with no credentials: every file fails, the run itself does
	// not error.
	fx := newIngestFixture(t, &fakeEmbedder{failBatch: 1, failErr: ErrAPIKeyMissing})
	ctx := context.Background()

	createTestExpert(t, fx.db, "e1", "agent-1")
	createTestDocument(t, fx.db, "e1", "d1", wordsText(40))

	result, err := fx.ingest.ProcessExpertFiles(ctx, "e1", "agent-1", []string{"d1"})
	if err != nil {
		t.Fatalf("ProcessExpertFiles: %v", err)
	}
	if result.ProcessedCount != 0 || len(result.FailedFiles) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	record, _ := fx.prog.Get(ctx, "e1")
	if record.Status != domain.ProgressStatusFailed {
		t.Errorf("progress status = %s, want failed", record.Status)
	}

	doc, _ := fx.docRepo.GetByID(ctx, "d1")
	if doc.ProcessingStatus != domain.DocumentStatusFailed {
		t.Errorf("doc status = %s, want failed", doc.ProcessingStatus)
	}
	if fx.index.count("agent-1") != 0 {
		t.Error("no vectors should be stored")
	}
}

func TestIngestDocumentDirectPath(t *testing.T) {
	fx := newIngestFixture(t, &fakeEmbedder{})
	ctx := context.Background()

	createTestExpert(t, fx.db, "e1", "agent-1")
	createTestDocument(t, fx.db, "e1", "d1", wordsText(40))

	if err := fx.ingest.IngestDocument(ctx, "e1", "d1"); err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}

	doc, _ := fx.docRepo.GetByID(ctx, "d1")
	if doc.ProcessingStatus != domain.DocumentStatusCompleted {
		t.Errorf("doc status = %s, want completed", doc.ProcessingStatus)
	}
	if fx.index.count("agent-1") == 0 {
		t.Error("no vectors stored")
	}
}

func TestDeleteDocumentKnowledge(t *testing.T) {
	fx := newIngestFixture(t, &fakeEmbedder{})
	ctx := context.Background()

	createTestExpert(t, fx.db, "e1", "agent-1")
	createTestDocument(t, fx.db, "e1", "d1", wordsText(40))
	createTestDocument(t, fx.db, "e1", "d2", wordsText(40))

	if err := fx.ingest.IngestDocument(ctx, "e1", "d1"); err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if err := fx.ingest.IngestDocument(ctx, "e1", "d2"); err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}

	before := fx.index.count("agent-1")
	if err := fx.ingest.DeleteDocumentKnowledge(ctx, "e1", "d1"); err != nil {
		t.Fatalf("DeleteDocumentKnowledge: %v", err)
	}
	after := fx.index.count("agent-1")
	if after >= before || after == 0 {
		t.Errorf("vectors before=%d after=%d; expected only d1's removed", before, after)
	}

	if _, err := fx.docRepo.GetByID(ctx, "d1"); err == nil {
		t.Error("document row should be gone")
	}
}

func TestEnqueueProcessingCreatesTaskAndProgress(t *testing.T) {
	fx := newIngestFixture(t, &fakeEmbedder{})
	ctx := context.Background()

	createTestExpert(t, fx.db, "e1", "agent-1")

	task, record, err := fx.ingest.EnqueueProcessing(ctx, "e1", []string{"f1", "f2"}, 0)
	if err != nil {
		t.Fatalf("EnqueueProcessing: %v", err)
	}
	if task.QueuePosition == nil || *task.QueuePosition != 1 {
		t.Errorf("task position = %v, want 1", task.QueuePosition)
	}
	if record.Stage != domain.StageQueued {
		t.Errorf("progress stage = %s, want queued", record.Stage)
	}
	if record.TaskID != task.ID {
		t.Errorf("progress task_id = %s, want %s", record.TaskID, task.ID)
	}
	if record.TotalFiles != 2 {
		t.Errorf("total_files = %d, want 2", record.TotalFiles)
	}

	if !strings.EqualFold(string(task.TaskType), "file_processing") {
		t.Errorf("task type = %s", task.TaskType)
	}
}
