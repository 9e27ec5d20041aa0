// Package engine implements the interactive-content state machines and
// the dispatcher that owns them: quiz answer validation and scoring,
// dialogue-tree traversal with contextual carry-over, and the guided
// procedure step validator with its three validation strategies.
package engine

import (
	"time"

	"go.uber.org/zap"

	"content-service/internal/analytics"
	"content-service/internal/locale"
	"content-service/internal/models"
	"content-service/internal/scene"
	"content-service/internal/schedule"
)

// Visual pacing delays. Settle delays are cancellable and guarded by a
// per-flow session token, so a Close while one is pending turns the
// callback into a no-op.
const (
	evaluatedChoiceDelay = 800 * time.Millisecond
	neutralChoiceDelay   = 300 * time.Millisecond
	stepSettleDelay      = 500 * time.Millisecond
	quizSettleDelay      = 500 * time.Millisecond
	errorAutoHideDelay   = 3 * time.Second
)

// Env bundles the external collaborators every engine needs.
type Env struct {
	Scene     scene.Resolver
	Highlight scene.Highlighter
	Locale    *locale.Resolver
	Scheduler schedule.Scheduler
	Analytics analytics.Sink
	Log       *zap.Logger
}

// Hooks receive engine lifecycle notifications. The dispatcher owns them
// and relays them outward as dispatcher events.
type Hooks struct {
	Closed    func(contentType models.ContentType, objectID string)
	Completed func(objectID string, success bool)
}

// Engine is one content flow driver. Display starts a flow for the given
// scene object; Close tears it down and must be idempotent and safe at
// any point, including mid-transition.
type Engine interface {
	Type() models.ContentType
	Display(objectID string, payload models.ContentPayload) error
	Close()
}

// runEmits invokes deferred notification closures. Engines collect these
// while holding their mutex and fire them after unlocking, so hooks can
// re-enter the engine without deadlocking.
func runEmits(emits []func()) {
	for _, fn := range emits {
		fn()
	}
}
