package worker

import (
	"context"
	"fmt"

	"github.com/retouchlab/support-chat/internal/queue"
	worker_handler "github.com/retouchlab/support-chat/internal/worker/worker-handler"
)

func HandleJob(ctx context.Context, job queue.Job) error {
	workerHandler := worker_handler.NewWorkerHandler(ctx)
	switch job.Type {
	case queue.JobTypeMessageNotification:
		return workerHandler.HandleMessageNotification(job.Payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}
