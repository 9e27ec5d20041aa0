// Package analytics receives fine-grained interaction data from the
// content engines. The engines only ever talk to the Sink interface;
// where the records end up (memory, Mongo, RabbitMQ) is wiring.
package analytics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"content-service/internal/models"
)

// Sink collects interaction records. StartInteraction opens a record,
// AddData annotates it, EndInteraction seals it with the outcome.
type Sink interface {
	StartInteraction(objectID, kind, subtype string) *models.InteractionRecord
	AddData(rec *models.InteractionRecord, key string, value any)
	EndInteraction(rec *models.InteractionRecord, success bool)
}

// Recorder is an in-memory Sink. It backs the engine tests and doubles
// as a buffer when no persistent sink is configured.
type Recorder struct {
	mu     sync.Mutex
	open   map[string]*models.InteractionRecord
	sealed []*models.InteractionRecord
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{open: make(map[string]*models.InteractionRecord)}
}

// StartInteraction implements Sink.
func (r *Recorder) StartInteraction(objectID, kind, subtype string) *models.InteractionRecord {
	rec := &models.InteractionRecord{
		ID:        uuid.New().String(),
		ObjectID:  objectID,
		Kind:      kind,
		Subtype:   subtype,
		StartedAt: time.Now(),
		Data:      make(map[string]any),
	}
	r.mu.Lock()
	r.open[rec.ID] = rec
	r.mu.Unlock()
	return rec
}

// AddData implements Sink.
func (r *Recorder) AddData(rec *models.InteractionRecord, key string, value any) {
	if rec == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Data[key] = value
}

// EndInteraction implements Sink. Ending an already-sealed record is a
// no-op so a Close racing a completion cannot double-report.
func (r *Recorder) EndInteraction(rec *models.InteractionRecord, success bool) {
	if rec == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.open[rec.ID]; !ok {
		return
	}
	delete(r.open, rec.ID)
	rec.EndedAt = time.Now()
	rec.Success = success
	rec.Completed = true
	r.sealed = append(r.sealed, rec)
}

// Sealed returns a copy of the finished records.
func (r *Recorder) Sealed() []*models.InteractionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.InteractionRecord, len(r.sealed))
	copy(out, r.sealed)
	return out
}

// OpenCount returns how many interactions are still unsealed.
func (r *Recorder) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
