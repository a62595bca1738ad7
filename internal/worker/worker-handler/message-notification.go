package worker_handler

import (
	"encoding/json"
	"fmt"

	"github.com/retouchlab/support-chat/internal/utils/types"
	worker_service "github.com/retouchlab/support-chat/internal/worker/worker-service"
)

func (wh *WorkerHandler) HandleMessageNotification(raw json.RawMessage) error {
	var payload types.MessageNotificationPayload

	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}

	if len(payload.Recipients) == 0 {
		return nil
	}

	return worker_service.SendMessageNotification(payload)
}
