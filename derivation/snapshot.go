package derivation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lifelog/core/lifelog"
	"github.com/lifelog/core/registry"
	"github.com/lifelog/core/tollbooth/proxy"
)

// SnapshotSchedule is the prudent-context refresh cadence: 06:00, 12:00,
// 18:00, and 22:00 local time.
var SnapshotSchedule = []string{"0 0 6 * * *", "0 0 12 * * *", "0 0 18 * * *", "0 0 22 * * *"}

const snapshotCurationPrompt = "You are curating a compact context digest for an AI assistant. Given the " +
	"user's values, tasks, habits, and calendar/activity data below, produce a JSON object with exactly " +
	"these keys: time_context (a short string describing what time of day/week it is and what's " +
	"imminent), values (an array of the user's active telos/virtues relevant right now), facts (an " +
	"array of concrete facts worth remembering), cross_references (an array of connections between the " +
	"data points above), and summary (one or two sentences tying it together). Respond with JSON only."

// AxiologyProvider supplies the axiology-layer rows (telos, tasks, habits,
// virtues, vices) the snapshot curates alongside ontology data. The
// collaborative editor and wiki CRUD surface those tables live behind is
// out of scope here; the concrete store is a collaborator outside this
// repo, so callers supply their own implementation.
type AxiologyProvider interface {
	// GatherAxiologyContext returns a rendered text blob describing the
	// user's telos/tasks/habits/virtues/vices state as of now. An empty
	// string is valid (no axiology data configured yet).
	GatherAxiologyContext(ctx context.Context, userID string) (string, error)
}

// PrudentContextSnapshot is the curated digest persisted on each scheduled
// refresh, the relational counterpart of the original's prudent_context
// table.
type PrudentContextSnapshot struct {
	UserID       string `gorm:"primaryKey"`
	TimeContext  string
	Values       string `gorm:"column:value_list"` // JSON array
	Facts        string // JSON array
	CrossRefs    string // JSON array
	Summary      string
	PromptTokens int
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (PrudentContextSnapshot) TableName() string { return "prudent_context_snapshot" }

// snapshotPayload is the JSON shape the curation prompt demands.
type snapshotPayload struct {
	TimeContext     string   `json:"time_context"`
	Values          []string `json:"values"`
	Facts           []string `json:"facts"`
	CrossReferences []string `json:"cross_references"`
	Summary         string   `json:"summary"`
}

// SnapshotStore persists PrudentContextSnapshot rows.
type SnapshotStore interface {
	Upsert(ctx context.Context, snap *PrudentContextSnapshot) error
}

// GormSnapshotStore is the relational SnapshotStore.
type GormSnapshotStore struct{ db *gorm.DB }

func NewGormSnapshotStore(db *gorm.DB) *GormSnapshotStore { return &GormSnapshotStore{db: db} }

func (s *GormSnapshotStore) Upsert(ctx context.Context, snap *PrudentContextSnapshot) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"time_context", "value_list", "facts", "cross_refs", "summary", "prompt_tokens", "created_at", "expires_at",
		}),
	}).Create(snap).Error
}

// SnapshotGenerator orchestrates the prudent-context refresh. Rate-limited
// to one refresh attempt per scheduled slot; a call the limiter rejects
// fails with RateLimitExceeded rather than silently no-op'ing.
type SnapshotGenerator struct {
	db        *gorm.DB
	registry  *registry.Registry
	store     SnapshotStore
	axiology  AxiologyProvider
	llm       ChatCompleter
	chatModel string
	logger    *zap.Logger

	limiter *rate.Limiter
}

// NewSnapshotGenerator constructs a SnapshotGenerator. The limiter admits
// one request per scheduled slot (one per 4 hours, the shortest gap between
// the default slots, 18:00 to 22:00) with no burst, so a manual trigger
// within four hours of the last refresh is rejected rather than silently
// re-running the curation prompt.
func NewSnapshotGenerator(db *gorm.DB, reg *registry.Registry, store SnapshotStore, axiology AxiologyProvider, llm ChatCompleter, chatModel string, logger *zap.Logger) *SnapshotGenerator {
	return &SnapshotGenerator{
		db: db, registry: reg, store: store, axiology: axiology, llm: llm, chatModel: chatModel, logger: logger,
		limiter: rate.NewLimiter(rate.Every(4*time.Hour), 1),
	}
}

// Generate runs one prudent-context refresh for userID, curating the next
// expiry from nextScheduledRun (the caller, typically the cron dispatcher,
// knows which of the four daily slots just fired).
func (g *SnapshotGenerator) Generate(ctx context.Context, userID string, nextScheduledRun time.Time) (*PrudentContextSnapshot, error) {
	if !g.limiter.Allow() {
		return nil, lifelog.New(lifelog.KindRateLimit, "prudent-context refresh rate limit exceeded")
	}

	axiologyText := ""
	if g.axiology != nil {
		text, err := g.axiology.GatherAxiologyContext(ctx, userID)
		if err != nil {
			if g.logger != nil {
				g.logger.Warn("axiology gather failed, continuing with ontology data only", zap.Error(err))
			}
		} else {
			axiologyText = text
		}
	}

	now := time.Now()
	todayStart, todayEnd := DayBoundariesUTC(now, "")
	upcomingEnd := todayEnd.Add(7 * 24 * time.Hour)

	var b strings.Builder
	if axiologyText != "" {
		appendSection(&b, promptSection{Heading: "Values, Telos, Tasks & Habits", Body: axiologyText})
	}
	if cal, _ := extractCalendarEvents(ctx, g.db, ontologyFor(g.registry, "calendar_event"), todayStart, todayEnd); cal != "" {
		appendSection(&b, promptSection{Heading: "Today's Calendar", Body: cal})
	}
	if upcoming, _ := extractCalendarEvents(ctx, g.db, ontologyFor(g.registry, "calendar_event"), todayEnd, upcomingEnd); upcoming != "" {
		appendSection(&b, promptSection{Heading: "Upcoming Events", Body: upcoming})
	}
	if recent, _ := extractAppUsage(ctx, g.db, ontologyFor(g.registry, "activity_app_usage"), now.Add(-24*time.Hour), now); recent != "" {
		appendSection(&b, promptSection{Heading: "Recent Activity", Body: recent})
	}
	prompt := truncateTotal(b.String())

	payload, usage, err := g.callLLM(ctx, userID, prompt)
	if err != nil {
		return nil, err
	}

	values, _ := json.Marshal(payload.Values)
	facts, _ := json.Marshal(payload.Facts)
	crossRefs, _ := json.Marshal(payload.CrossReferences)

	snap := &PrudentContextSnapshot{
		UserID:       userID,
		TimeContext:  payload.TimeContext,
		Values:       string(values),
		Facts:        string(facts),
		CrossRefs:    string(crossRefs),
		Summary:      payload.Summary,
		PromptTokens: usage,
		CreatedAt:    now,
		ExpiresAt:    nextScheduledRun,
	}
	if err := g.store.Upsert(ctx, snap); err != nil {
		return nil, lifelog.Wrap(lifelog.KindDatabase, "persisting prudent-context snapshot", err)
	}
	return snap, nil
}

func (g *SnapshotGenerator) callLLM(ctx context.Context, userID, prompt string) (snapshotPayload, int, error) {
	maxTokens := 800
	temperature := float32(0.2)
	resp, err := g.llm.Complete(ctx, userID, proxy.ChatRequest{
		Model: g.chatModel,
		Messages: []proxy.Message{
			{Role: "system", Content: snapshotCurationPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return snapshotPayload{}, 0, err
	}
	if len(resp.Choices) == 0 {
		return snapshotPayload{}, 0, lifelog.New(lifelog.KindInternal, "LLM returned no choices")
	}

	var payload snapshotPayload
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return snapshotPayload{}, 0, lifelog.Wrap(lifelog.KindEncoding,
			fmt.Sprintf("parsing curation response: %s", content), err)
	}
	return payload, resp.Usage.TotalTokens, nil
}

// ontologyFor looks up an ontology by name, returning the zero value (an
// empty table name, which the extractor queries harmlessly find nothing
// for) if it isn't registered.
func ontologyFor(reg *registry.Registry, name string) registry.Ontology {
	ont, _ := reg.Ontology(name)
	return ont
}
