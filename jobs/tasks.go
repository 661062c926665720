package jobs

import (
	"github.com/hibiken/asynq"

	"github.com/quanly-erp/quanly/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries access denial writes.
	QueueAudit = audit.QueueAudit

	// AuditPruneSpec runs retention nightly.
	AuditPruneSpec = "45 2 * * *"
)

// NewAuditPruneTask builds the periodic retention task.
func NewAuditPruneTask() *asynq.Task {
	return asynq.NewTask(audit.TaskPrune, nil)
}
