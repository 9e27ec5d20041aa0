package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"content-service/internal/analytics"
	"content-service/internal/config"
	"content-service/internal/engine"
	"content-service/internal/locale"
	"content-service/internal/models"
	"content-service/internal/repository"
	"content-service/internal/scene"
	"content-service/internal/schedule"
	"content-service/internal/ws"
)

const eventTimeout = 5 * time.Second

// ContentService owns the content dispatcher and its collaborators, and
// fans flow events out to RabbitMQ, the WebSocket hub and Redis stats.
type ContentService struct {
	Contents *repository.ContentRepository
	Records  *repository.RecordRepository
	Stats    *repository.StatsRepository

	dispatcher *engine.Dispatcher
	registry   *scene.Registry
	effects    *scene.EffectLog
	locale     *locale.Resolver
	publisher  analytics.Publisher
	hub        *ws.Hub
	log        *zap.Logger
}

// recordStore persists sealed interaction records and folds their
// wrong-click totals into the Redis counters.
type recordStore struct {
	records *repository.RecordRepository
	stats   *repository.StatsRepository
}

func (s *recordStore) Insert(ctx context.Context, rec *models.InteractionRecord) error {
	if err := s.records.Insert(ctx, rec); err != nil {
		return err
	}
	if s.stats != nil {
		if n, ok := rec.Data["total_wrong_clicks"].(int); ok {
			_ = s.stats.AddWrongClicks(ctx, rec.ObjectID, int64(n))
		}
	}
	return nil
}

func NewContentService(
	cfg *config.Config,
	contents *repository.ContentRepository,
	records *repository.RecordRepository,
	stats *repository.StatsRepository,
	publisher analytics.Publisher,
	hub *ws.Hub,
	log *zap.Logger,
) *ContentService {
	s := &ContentService{
		Contents:  contents,
		Records:   records,
		Stats:     stats,
		registry:  scene.NewRegistry(),
		effects:   scene.NewEffectLog(),
		locale:    locale.NewResolver(cfg.Content.ActiveLanguage, cfg.Content.DefaultLanguage),
		publisher: publisher,
		hub:       hub,
		log:       log,
	}

	var store analytics.RecordStore
	if records != nil {
		store = &recordStore{records: records, stats: stats}
	}
	sink := analytics.NewPersistentSink(store, publisher, log)

	env := engine.Env{
		Scene:     s.registry,
		Highlight: s.effects,
		Locale:    s.locale,
		Scheduler: schedule.NewTimerScheduler(),
		Analytics: sink,
		Log:       log,
	}
	quizCfg := engine.QuizConfig{
		Mode:          engine.AdvanceMode(cfg.Content.QuizAdvanceMode),
		RetryCooldown: cfg.Content.QuizRetryCooldown,
	}
	s.dispatcher = engine.NewDispatcher(env, quizCfg, engine.Events{
		Displayed: s.onDisplayed,
		Closed:    s.onClosed,
		Completed: s.onCompleted,
		Fallback:  s.onFallback,
	})
	return s
}

func (s *ContentService) onDisplayed(contentType models.ContentType, objectID string) {
	s.broadcast("content.displayed", ginPayload(contentType, objectID, nil))
	s.publish("content.displayed", ginPayload(contentType, objectID, nil))
	if s.Stats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := s.Stats.RecordDisplayed(ctx, objectID); err != nil {
			s.log.Warn("failed to record display stat",
				zap.String("object_id", objectID), zap.Error(err))
		}
	}
}

func (s *ContentService) onClosed(contentType models.ContentType, objectID string) {
	s.broadcast("content.closed", ginPayload(contentType, objectID, nil))
	s.publish("content.closed", ginPayload(contentType, objectID, nil))
}

func (s *ContentService) onCompleted(objectID string, success bool) {
	data := map[string]any{"object_id": objectID, "success": success}
	s.broadcast("content.completed", data)
	s.publish("content.completed", data)
	if s.Stats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := s.Stats.RecordCompleted(ctx, objectID, success); err != nil {
			s.log.Warn("failed to record completion stat",
				zap.String("object_id", objectID), zap.Error(err))
		}
	}
}

func (s *ContentService) onFallback(objectID string, contentType models.ContentType, payload models.ContentPayload) {
	s.log.Warn("falling back to placeholder presentation",
		zap.String("object_id", objectID),
		zap.String("content_type", string(contentType)))
	s.broadcast("content.fallback", ginPayload(contentType, objectID, payload))
}

func ginPayload(contentType models.ContentType, objectID string, payload models.ContentPayload) map[string]any {
	out := map[string]any{
		"object_id":    objectID,
		"content_type": string(contentType),
	}
	if payload != nil {
		out["payload"] = payload
	}
	return out
}

func (s *ContentService) broadcast(msgType string, data any) {
	if s.hub != nil {
		s.hub.BroadcastMessage(msgType, data)
	}
}

func (s *ContentService) publish(eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(eventType, payload); err != nil {
		s.log.Warn("failed to publish event",
			zap.String("type", eventType), zap.Error(err))
	}
}

// DisplayObject loads the stored content bound to a scene object and
// displays it.
func (s *ContentService) DisplayObject(ctx context.Context, objectID string) error {
	content, err := s.Contents.FindByObjectID(ctx, objectID)
	if err != nil {
		return err
	}
	return s.dispatcher.Display(content.ObjectID, content.ContentType, content.Payload)
}

// DisplayPayload displays a raw payload without touching the library.
func (s *ContentService) DisplayPayload(objectID string, contentType models.ContentType, payload models.ContentPayload) error {
	return s.dispatcher.Display(objectID, contentType, payload)
}

// CloseCurrent closes the active flow; a no-op when nothing is active.
func (s *ContentService) CloseCurrent() {
	s.dispatcher.CloseCurrentContent()
}

// Status reports the active flow and its render snapshot.
func (s *ContentService) Status() map[string]any {
	status := map[string]any{"active": false, "language": s.locale.Current()}
	contentType, objectID, ok := s.dispatcher.Active()
	if !ok {
		return status
	}
	status["active"] = true
	status["content_type"] = string(contentType)
	status["object_id"] = objectID
	switch contentType {
	case models.ContentTypeQuestion:
		if view, ok := s.dispatcher.Quiz().View(); ok {
			status["view"] = view
		}
	case models.ContentTypeDialogue:
		if view, ok := s.dispatcher.Dialogue().View(); ok {
			status["view"] = view
		}
	case models.ContentTypeProcedure:
		if view, ok := s.dispatcher.Procedure().View(); ok {
			status["view"] = view
		}
	case models.ContentTypeText:
		if view, ok := s.dispatcher.Text().View(); ok {
			status["view"] = view
		}
	}
	return status
}

// Quiz interactions.

func (s *ContentService) SelectOption(index int) {
	s.dispatcher.Quiz().SelectOption(index)
}

func (s *ContentService) ValidateAnswer() {
	s.dispatcher.Quiz().Validate()
}

// Dialogue interactions.

func (s *ContentService) ContinueDialogue() {
	s.dispatcher.Dialogue().Continue()
}

func (s *ContentService) ChooseDialogue(choiceID string) {
	s.dispatcher.Dialogue().Choose(choiceID)
}

// Procedure interactions.

func (s *ContentService) ClickObject(objectName string) {
	s.dispatcher.Procedure().HandleClick(objectName)
}

func (s *ContentService) EnterZone(zoneName string) {
	s.dispatcher.Procedure().EnterZone(zoneName)
}

func (s *ContentService) ValidateStep() {
	s.dispatcher.Procedure().ValidateStep()
}

// Text interactions.

func (s *ContentService) AcknowledgeText() {
	s.dispatcher.Text().Acknowledge()
}

// Language returns the active language code.
func (s *ContentService) Language() string {
	return s.locale.Current()
}

// SetLanguage switches the active language; open flows re-render their
// current state in the new language on the next view.
func (s *ContentService) SetLanguage(lang string) {
	s.locale.SetLanguage(lang)
	s.broadcast("language.changed", map[string]any{"language": s.locale.Current()})
}

// RegisterSceneObject makes an object resolvable for procedure targets
// and decoys.
func (s *ContentService) RegisterSceneObject(name string, tags ...string) {
	s.registry.Add(name, tags...)
}

// ActiveHighlights reports how many highlight effects are currently
// applied, for diagnostics.
func (s *ContentService) ActiveHighlights() int {
	return s.effects.ActiveCount()
}

// Content library.

func (s *ContentService) ListContents(ctx context.Context) ([]models.Content, error) {
	return s.Contents.FindAll(ctx)
}

func (s *ContentService) GetContent(ctx context.Context, objectID string) (*models.Content, error) {
	return s.Contents.FindByObjectID(ctx, objectID)
}

func (s *ContentService) SaveContent(ctx context.Context, content *models.Content) error {
	return s.Contents.Upsert(ctx, content)
}

func (s *ContentService) DeleteContent(ctx context.Context, objectID string) error {
	return s.Contents.Delete(ctx, objectID)
}

// Interaction records and stats.

func (s *ContentService) ObjectRecords(ctx context.Context, objectID string) ([]models.InteractionRecord, error) {
	return s.Records.FindByObjectID(ctx, objectID)
}

func (s *ContentService) RecentRecords(ctx context.Context, limit int64) ([]models.InteractionRecord, error) {
	return s.Records.FindRecent(ctx, limit)
}

func (s *ContentService) ObjectStats(ctx context.Context, objectID string) (*repository.ObjectStats, error) {
	if s.Stats == nil {
		return &repository.ObjectStats{}, nil
	}
	return s.Stats.GetStats(ctx, objectID)
}
