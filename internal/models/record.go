package models

import "time"

// InteractionRecord accumulates the analytics of one flow instance:
// attempts, wrong clicks, elapsed time and the final score. It is written
// by the engines through the analytics sink and owned by that collaborator.
type InteractionRecord struct {
	ID        string         `bson:"_id,omitempty" json:"id"`
	ObjectID  string         `bson:"object_id" json:"object_id"`
	Kind      string         `bson:"kind" json:"kind"`
	Subtype   string         `bson:"subtype" json:"subtype"`
	StartedAt time.Time      `bson:"started_at" json:"started_at"`
	EndedAt   time.Time      `bson:"ended_at" json:"ended_at"`
	Success   bool           `bson:"success" json:"success"`
	Completed bool           `bson:"completed" json:"completed"`
	Data      map[string]any `bson:"data" json:"data"`
}

// ElapsedSeconds is the wall-clock span of the interaction.
func (r *InteractionRecord) ElapsedSeconds() float64 {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt).Seconds()
}
