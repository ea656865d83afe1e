package repository

import (
	"context"

	"github.com/sahil/voxpert/internal/domain"
	"gorm.io/gorm"
)

// TaskRepository handles processing_queue table access.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *TaskRepository: repository instance bound to db.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task row.
func (r *TaskRepository) Create(ctx context.Context, task *domain.ProcessingTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.ProcessingTask, error) {
	var task domain.ProcessingTask
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// Save persists all fields of an existing task row.
func (r *TaskRepository) Save(ctx context.Context, task *domain.ProcessingTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// NextQueued returns the QUEUED task with the highest priority, earliest
// creation time among ties. Read-only: the caller transitions it explicitly.
// Returns gorm.ErrRecordNotFound when the queue is empty.
func (r *TaskRepository) NextQueued(ctx context.Context) (*domain.ProcessingTask, error) {
	var task domain.ProcessingTask
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.TaskStatusQueued).
		Order("priority DESC, created_at ASC").
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListQueued returns all QUEUED tasks in dequeue order.
func (r *TaskRepository) ListQueued(ctx context.Context) ([]domain.ProcessingTask, error) {
	var tasks []domain.ProcessingTask
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.TaskStatusQueued).
		Order("priority DESC, created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ActiveByExpert returns the expert's QUEUED or PROCESSING task, if any.
func (r *TaskRepository) ActiveByExpert(ctx context.Context, expertID string) (*domain.ProcessingTask, error) {
	var task domain.ProcessingTask
	err := r.db.WithContext(ctx).
		Where("expert_id = ? AND status IN ?", expertID,
			[]domain.TaskStatus{domain.TaskStatusQueued, domain.TaskStatusProcessing}).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// RecomputePositions reassigns queue_position 1..n over the QUEUED set
// ordered by (priority desc, created_at asc), inside one transaction so a
// reader never observes a partial ranking.
func (r *TaskRepository) RecomputePositions(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []domain.ProcessingTask
		if err := tx.
			Where("status = ?", domain.TaskStatusQueued).
			Order("priority DESC, created_at ASC").
			Find(&tasks).Error; err != nil {
			return err
		}
		for i := range tasks {
			position := i + 1
			if err := tx.Model(&domain.ProcessingTask{}).
				Where("id = ?", tasks[i].ID).
				Update("queue_position", position).Error; err != nil {
				return err
			}
		}
		// Rows outside the QUEUED set carry no position.
		return tx.Model(&domain.ProcessingTask{}).
			Where("status <> ?", domain.TaskStatusQueued).
			Update("queue_position", nil).Error
	})
}

// CountsByStatus returns the number of tasks per status.
func (r *TaskRepository) CountsByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	type row struct {
		Status domain.TaskStatus
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.ProcessingTask{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.TaskStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}
