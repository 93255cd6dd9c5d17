package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"cadconverter/api/cache"
	"cadconverter/api/dto"
	"cadconverter/api/kafka"
	"cadconverter/api/models"
	"cadconverter/api/repository"
	"cadconverter/conversion"
)

type mockRepo struct {
	createFunc func(ctx context.Context, task *models.Task) error
	getFunc    func(ctx context.Context, id string) (*models.Task, error)
	failed     []string
	failKind   string
}

func (m *mockRepo) CreateTask(ctx context.Context, task *models.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	task.ID = "task-1"
	return nil
}

func (m *mockRepo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, repository.ErrTaskNotFound
}

func (m *mockRepo) GetTaskByTraceID(ctx context.Context, traceID string) (*models.Task, error) {
	return nil, repository.ErrTaskNotFound
}

func (m *mockRepo) FailTask(ctx context.Context, taskID, errorKind, errMsg string) error {
	m.failed = append(m.failed, taskID)
	m.failKind = errorKind
	return nil
}

type mockStatusCache struct {
	entries map[string]cache.StatusEntry
}

func newMockStatusCache() *mockStatusCache {
	return &mockStatusCache{entries: make(map[string]cache.StatusEntry)}
}

func (m *mockStatusCache) Get(ctx context.Context, taskID string) (*cache.StatusEntry, error) {
	entry, ok := m.entries[taskID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return &entry, nil
}

func (m *mockStatusCache) Set(ctx context.Context, taskID string, entry cache.StatusEntry) error {
	m.entries[taskID] = entry
	return nil
}

func (m *mockStatusCache) Delete(ctx context.Context, taskID string) error {
	delete(m.entries, taskID)
	return nil
}

type mockProducer struct {
	sendErr error
	sent    []*kafka.TaskMessage
}

func (m *mockProducer) SendTaskMessage(ctx context.Context, topic string, message *kafka.TaskMessage) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, message)
	return nil
}

func (m *mockProducer) Close() error { return nil }

func createRequest() *dto.CreateTaskRequest {
	return &dto.CreateTaskRequest{
		OriginalFilename: "drawing.dwg",
		FilePath:         "/uploads/abc.dwg",
		SourceFormat:     "dwg",
		TargetFormat:     "dxf",
	}
}

func TestTaskService_CreateTask_Success(t *testing.T) {
	repo := &mockRepo{}
	statusCache := newMockStatusCache()
	producer := &mockProducer{}
	service := NewTaskService(repo, statusCache, producer, "conversion_tasks", zaptest.NewLogger(t))

	resp, err := service.CreateTask(context.Background(), "trace-1", createRequest())
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if resp.Status != string(models.StatusPending) {
		t.Errorf("Expected pending status, got %s", resp.Status)
	}
	if len(producer.sent) != 1 || producer.sent[0].TaskID != resp.ID {
		t.Errorf("Expected one queued message for %s, got %v", resp.ID, producer.sent)
	}
	if entry, ok := statusCache.entries[resp.ID]; !ok || entry.Status != models.StatusPending {
		t.Errorf("Expected pending cache entry, got %v", statusCache.entries)
	}
}

func TestTaskService_CreateTask_PublishFailureMarksTaskFailed(t *testing.T) {
	repo := &mockRepo{}
	statusCache := newMockStatusCache()
	producer := &mockProducer{sendErr: errors.New("broker unreachable")}
	service := NewTaskService(repo, statusCache, producer, "conversion_tasks", zaptest.NewLogger(t))

	_, err := service.CreateTask(context.Background(), "trace-1", createRequest())
	if err == nil {
		t.Fatal("Expected error when the queue publish fails")
	}

	if len(repo.failed) != 1 || repo.failed[0] != "task-1" {
		t.Fatalf("Expected the orphaned row to be marked failed, got %v", repo.failed)
	}
	if repo.failKind != string(conversion.KindInternal) {
		t.Errorf("Expected internal kind, got %q", repo.failKind)
	}
	entry, ok := statusCache.entries["task-1"]
	if !ok || entry.Status != models.StatusFailed {
		t.Errorf("Expected failed cache entry, got %v", statusCache.entries)
	}
}

func TestTaskService_GetTaskStatus_CacheFirst(t *testing.T) {
	repo := &mockRepo{
		getFunc: func(ctx context.Context, id string) (*models.Task, error) {
			t.Fatal("Postgres must not be hit on a cache hit")
			return nil, nil
		},
	}
	statusCache := newMockStatusCache()
	statusCache.entries["task-1"] = cache.StatusEntry{Status: models.StatusProcessing}
	service := NewTaskService(repo, statusCache, &mockProducer{}, "conversion_tasks", zaptest.NewLogger(t))

	resp, err := service.GetTaskStatus(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("GetTaskStatus failed: %v", err)
	}
	if resp.Status != string(models.StatusProcessing) {
		t.Errorf("Expected processing, got %s", resp.Status)
	}
}

func TestTaskService_GetTaskStatus_NotFound(t *testing.T) {
	service := NewTaskService(&mockRepo{}, newMockStatusCache(), &mockProducer{}, "conversion_tasks", zaptest.NewLogger(t))

	_, err := service.GetTaskStatus(context.Background(), "missing")
	if !errors.Is(err, dto.ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}
