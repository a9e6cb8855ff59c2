package derivation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lifelog/core/dayscore"
	"github.com/lifelog/core/dayscore/embedding"
	"github.com/lifelog/core/lifelog"
	"github.com/lifelog/core/registry"
	"github.com/lifelog/core/tollbooth/proxy"
)

// summarySystemPrompt is the fixed curation instruction for the daily diary
// entry.
const summarySystemPrompt = "You are writing a brief first-person diary entry for a personal journal. " +
	"Write 2-5 sentences that capture what mattered about this day — not a log of every event, but the " +
	"through-line or shape of the day. Prioritize the most meaningful events and interactions over " +
	"comprehensive coverage. Be direct and concrete, never poetic or flowery. If the data is sparse, " +
	"write less — even a single sentence is fine. Never infer emotions, motivations, or details not " +
	"present in the data."

// Day is one date's derived artifact: the diary entry plus the W6H context
// vector and chaos score.
type Day struct {
	DayDate                string `gorm:"primaryKey"` // YYYY-MM-DD
	Autobiography          string
	LastEditedBy           string
	ContextVector          string // JSON-encoded {who,whom,what,when,where,why,how}
	ChaosScore             *float64
	EntropyCalibrationDays int
	StartTimezone          string
	UpdatedAt              time.Time
}

func (Day) TableName() string { return "derived_day" }

// DayStore persists Day rows.
type DayStore interface {
	GetOrCreate(ctx context.Context, dayDate string) (*Day, error)
	Update(ctx context.Context, day *Day) error
}

// GormDayStore is the relational DayStore.
type GormDayStore struct{ db *gorm.DB }

func NewGormDayStore(db *gorm.DB) *GormDayStore { return &GormDayStore{db: db} }

func (s *GormDayStore) GetOrCreate(ctx context.Context, dayDate string) (*Day, error) {
	day := Day{DayDate: dayDate, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day_date"}},
		DoNothing: true,
	}).Create(&day).Error
	if err != nil {
		return nil, err
	}
	var out Day
	if err := s.db.WithContext(ctx).First(&out, "day_date = ?", dayDate).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormDayStore) Update(ctx context.Context, day *Day) error {
	day.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Save(day).Error
}

// ChatCompleter is the seam derivation calls the tollbooth proxy through;
// satisfied directly by *proxy.Handler when wired in-process, since the
// proxy runs cooperatively in the same process rather than as a separate
// service.
type ChatCompleter interface {
	Complete(ctx context.Context, userID string, req proxy.ChatRequest) (proxy.ChatResponse, error)
}

// SummaryGenerator orchestrates the daily-summary pipeline.
type SummaryGenerator struct {
	db        *gorm.DB
	registry  *registry.Registry
	days      DayStore
	llm       ChatCompleter
	embedder  embedding.Provider
	chatModel string
	logger    *zap.Logger
}

// NewSummaryGenerator constructs a SummaryGenerator. chatModel names the
// model passed to the proxy; this repo takes it as configuration rather
// than reading it from a per-user assistant profile, since that profile's
// CRUD surface is out of scope here.
func NewSummaryGenerator(db *gorm.DB, reg *registry.Registry, days DayStore, llm ChatCompleter, embedder embedding.Provider, chatModel string, logger *zap.Logger) *SummaryGenerator {
	return &SummaryGenerator{db: db, registry: reg, days: days, llm: llm, embedder: embedder, chatModel: chatModel, logger: logger}
}

// contextVectorJSON is the wire shape persisted alongside a Day.
type contextVectorJSON struct {
	Who, Whom, What, When, Where, Why, How float64
}

// DayBoundariesUTC computes a day's [start, end) window in UTC, interpreting
// date in timezone when given and valid; falls back to a wide UTC window
// otherwise (00:00 through noon the next day).
func DayBoundariesUTC(date time.Time, timezone string) (start, end time.Time) {
	y, m, d := date.Date()
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err == nil {
			startLocal := time.Date(y, m, d, 0, 0, 0, 0, loc)
			return startLocal.UTC(), startLocal.AddDate(0, 0, 1).UTC()
		}
	}
	start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end = time.Date(y, m, d, 12, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return start, end
}

// Generate builds and persists the day summary for date, for userID (the
// budget/subscription identity the proxy call is billed against). Returns
// the unchanged Day row, without calling the LLM, when no ontology has any
// data for the day — the original's "zero ontology data" short-circuit.
func (g *SummaryGenerator) Generate(ctx context.Context, userID string, date time.Time, timezone string) (*Day, error) {
	dayDate := date.Format("2006-01-02")
	day, err := g.days.GetOrCreate(ctx, dayDate)
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindDatabase, "loading day row", err)
	}

	start, end := DayBoundariesUTC(date, timezone)

	texts := collectOntologyTexts(ctx, g.db, g.registry, start, end)
	if len(texts) == 0 {
		if g.logger != nil {
			g.logger.Debug("no ontology data for day, skipping summary generation", zap.String("date", dayDate))
		}
		return day, nil
	}

	contextVector, err := dayscore.ComputeContextVector(ctx, g.db, g.registry, start, end)
	if err != nil {
		return nil, lifelog.Wrap(lifelog.KindDatabase, "computing context vector", err)
	}

	prompt := buildPrompt(date, texts)
	summary, err := g.callLLM(ctx, userID, prompt)
	if err != nil {
		return nil, err
	}

	chaos, err := g.scoreChaos(ctx, dayDate, texts)
	if err != nil && g.logger != nil {
		g.logger.Warn("chaos scoring failed, skipping", zap.Error(err))
		chaos = dayscore.ChaosScoreResult{}
	}

	vectorJSON, _ := json.Marshal(contextVectorJSON{
		Who: contextVector[0], Whom: contextVector[1], What: contextVector[2],
		When: contextVector[3], Where: contextVector[4], Why: contextVector[5], How: contextVector[6],
	})

	day.Autobiography = summary
	day.LastEditedBy = "ai"
	day.ContextVector = string(vectorJSON)
	day.ChaosScore = chaos.Score
	day.EntropyCalibrationDays = chaos.CalibrationDays
	day.StartTimezone = timezone
	if err := g.days.Update(ctx, day); err != nil {
		return nil, lifelog.Wrap(lifelog.KindDatabase, "persisting day summary", err)
	}
	return day, nil
}

// buildPrompt assembles the date header plus every section (structured
// sources, then supplemental sections), ending with the total-character
// truncation.
func buildPrompt(date time.Time, texts []ontologyText) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Date: %s, %s\n", date.Format("Monday"), date.Format("January 2, 2006")))
	for _, t := range texts {
		appendSection(&b, promptSection{Heading: sectionHeading(t.OntologyName), Body: t.Text})
	}
	return truncateTotal(b.String())
}

func sectionHeading(ontologyName string) string {
	switch ontologyName {
	case "calendar_event":
		return "Schedule"
	case "communication_email":
		return "Emails"
	case "location_visit":
		return "Places"
	case "health_workout":
		return "Workouts"
	case "health_sleep":
		return "Sleep"
	case "health_heart_rate", "health_steps":
		return "Health Snapshot"
	case "financial_transaction":
		return "Transactions"
	case "communication_transcription":
		return "Voice Recordings"
	case "communication_message":
		return "Messages"
	case "content_document":
		return "Knowledge & Documents"
	case "content_bookmark":
		return "Bookmarks"
	case "activity_app_usage":
		return "App Usage"
	case "activity_web_browsing":
		return "Web Browsing"
	default:
		return ontologyName
	}
}

func (g *SummaryGenerator) callLLM(ctx context.Context, userID, prompt string) (string, error) {
	maxTokens := 500
	temperature := float32(0.3)
	resp, err := g.llm.Complete(ctx, userID, proxy.ChatRequest{
		Model: g.chatModel,
		Messages: []proxy.Message{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", lifelog.New(lifelog.KindInternal, "LLM returned empty summary")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// scoreChaos embeds each ontology's rendered text and folds the results into
// dayscore.ScoreDay's duration-weighted centroid, the Go counterpart of
// generate_embeddings_and_score's event-embedding centroid approach.
func (g *SummaryGenerator) scoreChaos(ctx context.Context, dayDate string, texts []ontologyText) (dayscore.ChaosScoreResult, error) {
	if g.embedder == nil {
		return dayscore.ChaosScoreResult{}, nil
	}
	events := make([]dayscore.EventEmbedding, 0, len(texts))
	for _, t := range texts {
		vec, err := g.embedder.Embed(ctx, t.Text)
		if err != nil {
			continue
		}
		events = append(events, dayscore.EventEmbedding{Vector: vec, DurationMinutes: t.EventMinutes})
	}
	return dayscore.ScoreDay(ctx, g.db, dayDate, events, "hash-v1")
}
