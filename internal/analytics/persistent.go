package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"content-service/internal/models"
)

// RecordStore persists sealed interaction records.
type RecordStore interface {
	Insert(ctx context.Context, rec *models.InteractionRecord) error
}

// Publisher fans sealed records out as events.
type Publisher interface {
	Publish(eventType string, payload any) error
}

// PersistentSink wraps a Recorder and, on EndInteraction, writes the
// sealed record to the store and publishes a completion event. Storage
// failures are logged, never surfaced into the engines.
type PersistentSink struct {
	*Recorder
	store     RecordStore
	publisher Publisher
	log       *zap.Logger
	timeout   time.Duration
}

// NewPersistentSink creates a sink writing to store and publisher.
// Either may be nil, in which case that half is skipped.
func NewPersistentSink(store RecordStore, publisher Publisher, log *zap.Logger) *PersistentSink {
	return &PersistentSink{
		Recorder:  NewRecorder(),
		store:     store,
		publisher: publisher,
		log:       log,
		timeout:   5 * time.Second,
	}
}

// EndInteraction implements Sink.
func (s *PersistentSink) EndInteraction(rec *models.InteractionRecord, success bool) {
	if rec == nil || rec.Completed {
		return
	}
	s.Recorder.EndInteraction(rec, success)

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.store.Insert(ctx, rec); err != nil {
			s.log.Warn("failed to persist interaction record",
				zap.String("object_id", rec.ObjectID),
				zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish("content.interaction.ended", rec); err != nil {
			s.log.Warn("failed to publish interaction record",
				zap.String("object_id", rec.ObjectID),
				zap.Error(err))
		}
	}
}
