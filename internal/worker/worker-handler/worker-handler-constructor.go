package worker_handler

import (
	"context"
)

type WorkerHandler struct {
	Ctx context.Context
}

func NewWorkerHandler(ctx context.Context) *WorkerHandler {
	return &WorkerHandler{
		Ctx: ctx,
	}
}
