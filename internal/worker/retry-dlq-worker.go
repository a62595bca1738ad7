package worker

import (
	"context"
	"math"
	"time"

	"github.com/retouchlab/support-chat/internal/entity"
	"github.com/retouchlab/support-chat/internal/queue"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// StartDLQRetryWorker periodically re-drives jobs that landed in the Mongo
// DLQ collection. Jobs exceeding MaxRetryCount are marked failed for good.
func (wp *WorkerPool) StartDLQRetryWorker(ctx context.Context) {
	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()

		ticker := time.NewTicker(wp.DLQConfig.RetryInterval)
		defer ticker.Stop()

		log.Info().
			Dur("interval", wp.DLQConfig.RetryInterval).
			Int("batch_size", wp.DLQConfig.BatchSize).
			Msg("DLQ retry worker started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("DLQ retry worker stopping")
				return
			case <-ticker.C:
				wp.processDLQBatch(ctx)
			}
		}
	}()
}

func (wp *WorkerPool) processDLQBatch(ctx context.Context) {
	collection := wp.Mongo.Database(wp.DLQConfig.DatabaseName).Collection(wp.DLQConfig.CollectionName)

	now := time.Now().UTC()
	filter := bson.M{
		"status": "pending",
		"$or": bson.A{
			bson.M{"next_retry_at": bson.M{"$lte": now}},
			bson.M{"next_retry_at": bson.M{"$exists": false}},
			bson.M{"next_retry_at": nil},
		},
		"expired_at": bson.M{"$gt": now},
	}

	cursor, err := collection.Find(ctx, filter,
		options.Find().SetLimit(int64(wp.DLQConfig.BatchSize)).SetSort(bson.M{"created_at": 1}))
	if err != nil {
		log.Error().Err(err).Msg("DLQ retry: failed to fetch batch")
		return
	}
	defer cursor.Close(ctx)

	var jobs []entity.DLQJob
	if err := cursor.All(ctx, &jobs); err != nil {
		log.Error().Err(err).Msg("DLQ retry: failed to decode batch")
		return
	}

	for _, dlqJob := range jobs {
		wp.retryDLQJob(ctx, dlqJob)
	}
}

func (wp *WorkerPool) retryDLQJob(ctx context.Context, dlqJob entity.DLQJob) {
	collection := wp.Mongo.Database(wp.DLQConfig.DatabaseName).Collection(wp.DLQConfig.CollectionName)
	now := time.Now().UTC()

	job := queue.Job{
		ID:      dlqJob.JobID,
		Type:    dlqJob.Type,
		Payload: dlqJob.Payload,
	}

	err := HandleJob(ctx, job)
	if err == nil {
		_, updateErr := collection.UpdateOne(ctx,
			bson.M{"_id": dlqJob.ID},
			bson.M{"$set": bson.M{
				"status":       "completed",
				"completed_at": now,
				"updated_at":   now,
			}})
		if updateErr != nil {
			log.Error().Err(updateErr).Str("job_id", dlqJob.JobID).Msg("DLQ retry: failed to mark completed")
		} else {
			log.Info().Str("job_id", dlqJob.JobID).Msg("DLQ job recovered")
		}
		return
	}

	retryCount := dlqJob.RetryCount + 1
	if retryCount >= wp.DLQConfig.MaxRetryCount {
		_, updateErr := collection.UpdateOne(ctx,
			bson.M{"_id": dlqJob.ID},
			bson.M{"$set": bson.M{
				"status":      "failed",
				"error_msg":   err.Error(),
				"retry_count": retryCount,
				"failed_at":   now,
				"updated_at":  now,
			}})
		if updateErr != nil {
			log.Error().Err(updateErr).Str("job_id", dlqJob.JobID).Msg("DLQ retry: failed to mark failed")
		}
		log.Error().
			Str("job_id", dlqJob.JobID).
			Int("retry_count", retryCount).
			Msg("DLQ job permanently failed")
		return
	}

	backoff := time.Duration(float64(wp.DLQConfig.RetryInterval) *
		math.Pow(wp.DLQConfig.BackoffFactor, float64(retryCount)))
	nextRetryAt := now.Add(backoff)

	_, updateErr := collection.UpdateOne(ctx,
		bson.M{"_id": dlqJob.ID},
		bson.M{"$set": bson.M{
			"error_msg":     err.Error(),
			"retry_count":   retryCount,
			"next_retry_at": nextRetryAt,
			"updated_at":    now,
		}})
	if updateErr != nil {
		log.Error().Err(updateErr).Str("job_id", dlqJob.JobID).Msg("DLQ retry: failed to schedule retry")
		return
	}

	log.Warn().
		Str("job_id", dlqJob.JobID).
		Int("retry_count", retryCount).
		Time("next_retry_at", nextRetryAt).
		Msg("DLQ job retry scheduled")
}
