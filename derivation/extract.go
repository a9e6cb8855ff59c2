package derivation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lifelog/core/registry"
)

// ontologyText is one ontology's rendered text for a day, paired with the
// W6H weights its rows contributed — the unit both the day-summary prompt
// and the per-event embedding collector for chaos scoring are built from.
type ontologyText struct {
	OntologyName   string
	Text           string
	ContextWeights registry.ContextWeights
	// EventMinutes is the approximate duration this ontology's rows
	// occupied, used as the embedding's centroid weight. Point-in-time
	// ontologies (a message, a heart-rate reading) default to 1.
	EventMinutes float64
}

// w6hWeightThreshold: an ontology whose every context weight is below
// this is skipped entirely — it carries no summarizable semantic weight
// for any of the 7 axes.
const w6hWeightThreshold = 0.05

// collectOntologyTexts renders one text blob per registered ontology that
// has data in [start, end), skipping ontologies with negligible W6H weight
// and ontologies this collector has no renderer for.
func collectOntologyTexts(ctx context.Context, db *gorm.DB, reg *registry.Registry, start, end time.Time) []ontologyText {
	var out []ontologyText
	for _, ont := range reg.Ontologies() {
		if maxWeight(ont.ContextWeights) < w6hWeightThreshold {
			continue
		}
		extractor, ok := extractors[ont.Name]
		if !ok {
			continue
		}
		text, minutes := extractor(ctx, db, ont, start, end)
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, ontologyText{
			OntologyName:   ont.Name,
			Text:           text,
			ContextWeights: ont.ContextWeights,
			EventMinutes:   minutes,
		})
	}
	return out
}

func maxWeight(w registry.ContextWeights) float64 {
	max := 0.0
	for _, v := range w {
		if v > max {
			max = v
		}
	}
	return max
}

// ontologyExtractor queries one ontology's rows for the window and renders
// them as a prompt-ready text blob, plus the total minutes its rows
// occupied (for the event-embedding duration weight).
type ontologyExtractor func(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (text string, minutes float64)

var extractors = map[string]ontologyExtractor{
	"communication_message":       extractMessages,
	"communication_email":         extractEmails,
	"communication_transcription": extractTranscriptions,
	"calendar_event":               extractCalendarEvents,
	"health_workout":               extractWorkouts,
	"health_sleep":                 extractSleep,
	"health_heart_rate":            extractHeartRate,
	"health_steps":                 extractSteps,
	"location_visit":               extractVisits,
	"financial_transaction":        extractTransactions,
	"activity_app_usage":           extractAppUsage,
	"activity_web_browsing":        extractWebBrowsing,
	"content_document":             extractDocuments,
	"content_bookmark":             extractBookmarks,
}

// genericRow scans the handful of columns every extractor below reads —
// not every column exists on every ontology table, so each extractor
// selects only the columns its query names.
type genericRow struct {
	Name      string
	Body      string
	Category  string
	StartTime time.Time
	EndTime   *time.Time
	Amount    float64
}

func queryRows(ctx context.Context, db *gorm.DB, query string, limit int, start, end time.Time) []genericRow {
	var rows []genericRow
	_ = db.WithContext(ctx).Raw(query+" LIMIT ?", start, end, limit).Scan(&rows).Error
	return rows
}

func totalMinutes(rows []genericRow) float64 {
	total := 0.0
	for _, r := range rows {
		if r.EndTime != nil && r.EndTime.After(r.StartTime) {
			total += r.EndTime.Sub(r.StartTime).Minutes()
		} else {
			total += 1
		}
	}
	return total
}

func extractMessages(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT from_name AS name, body, sent_at AS start_time FROM %s WHERE sent_at >= ? AND sent_at < ? ORDER BY sent_at ASC", ont.TableName),
		30, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		preview, _ := truncateRunes(r.Body, 200)
		lines[i] = fmt.Sprintf("- %s: \"%s\"", r.Name, preview)
	}
	return fmt.Sprintf("Messages (%d total)\n%s", len(rows), capLines(lines, len(rows), "messages")), totalMinutes(rows)
}

func extractEmails(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT from_name AS name, subject AS body, sent_at AS start_time FROM %s WHERE sent_at >= ? AND sent_at < ? ORDER BY sent_at ASC", ont.TableName),
		20, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		preview, _ := truncateRunes(r.Body, 150)
		lines[i] = fmt.Sprintf("- Email from %s: %s", r.Name, preview)
	}
	return capLines(lines, len(rows), "emails"), totalMinutes(rows)
}

func extractTranscriptions(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT title AS name, text AS body, recorded_at AS start_time FROM %s WHERE recorded_at >= ? AND recorded_at < ? ORDER BY recorded_at ASC", ont.TableName),
		20, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		preview, _ := truncateRunes(r.Body, 500)
		if r.Name != "" {
			lines[i] = fmt.Sprintf("- %s: \"%s\"", r.Name, preview)
		} else {
			lines[i] = fmt.Sprintf("- \"%s\"", preview)
		}
	}
	return fmt.Sprintf("Voice Transcriptions (%d recordings)\n%s", len(rows), capLines(lines, len(rows), "transcriptions")), totalMinutes(rows)
}

func extractCalendarEvents(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT title AS name, starts_at AS start_time, ends_at AS end_time FROM %s WHERE starts_at >= ? AND starts_at < ? ORDER BY starts_at ASC", ont.TableName),
		50, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("- %s %s", r.StartTime.Format("15:04"), r.Name)
	}
	return capLines(lines, len(rows), "events"), totalMinutes(rows)
}

func extractWorkouts(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT kind AS name, started_at AS start_time, ended_at AS end_time FROM %s WHERE started_at >= ? AND started_at < ? ORDER BY started_at ASC", ont.TableName),
		20, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		minutes := 0.0
		if r.EndTime != nil {
			minutes = r.EndTime.Sub(r.StartTime).Minutes()
		}
		lines[i] = fmt.Sprintf("- %s (%d min)", r.Name, int(minutes))
	}
	return capLines(lines, len(rows), "workouts"), totalMinutes(rows)
}

func extractSleep(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT started_at AS start_time, ended_at AS end_time FROM %s WHERE started_at >= ? AND started_at < ? ORDER BY started_at ASC", ont.TableName),
		5, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		hours := 0.0
		if r.EndTime != nil {
			hours = r.EndTime.Sub(r.StartTime).Hours()
		}
		lines[i] = fmt.Sprintf("- Slept %.1f hours", hours)
	}
	return capLines(lines, len(rows), "sleep sessions"), totalMinutes(rows)
}

func extractHeartRate(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	var agg struct {
		Min, Max, Avg float64
		Count         int
	}
	q := fmt.Sprintf("SELECT MIN(bpm) AS min, MAX(bpm) AS max, AVG(bpm) AS avg, COUNT(*) AS count FROM %s WHERE recorded_at >= ? AND recorded_at < ?", ont.TableName)
	_ = db.WithContext(ctx).Raw(q, start, end).Scan(&agg).Error
	if agg.Count == 0 {
		return "", 0
	}
	return fmt.Sprintf("Heart rate: avg %.0f, min %.0f, max %.0f (%d readings)", agg.Avg, agg.Min, agg.Max, agg.Count), 0
}

func extractSteps(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	var total int64
	q := fmt.Sprintf("SELECT COALESCE(SUM(step_count),0) FROM %s WHERE recorded_at >= ? AND recorded_at < ?", ont.TableName)
	_ = db.WithContext(ctx).Raw(q, start, end).Scan(&total).Error
	if total == 0 {
		return "", 0
	}
	return fmt.Sprintf("Steps: %d", total), 0
}

func extractVisits(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT place_id AS name, arrival_time AS start_time, departure_time AS end_time FROM %s WHERE arrival_time >= ? AND arrival_time < ? ORDER BY arrival_time ASC", ont.TableName),
		30, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		label := r.Name
		if label == "" {
			label = "unresolved place"
		}
		minutes := 0.0
		if r.EndTime != nil {
			minutes = r.EndTime.Sub(r.StartTime).Minutes()
		}
		lines[i] = fmt.Sprintf("- %s at %s for %d min", label, r.StartTime.Format("15:04"), int(minutes))
	}
	return capLines(lines, len(rows), "visits"), totalMinutes(rows)
}

func extractTransactions(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT merchant AS name, amount, occurred_at AS start_time FROM %s WHERE occurred_at >= ? AND occurred_at < ? ORDER BY occurred_at ASC", ont.TableName),
		30, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("- %s: $%.2f", r.Name, r.Amount)
	}
	return capLines(lines, len(rows), "transactions"), totalMinutes(rows)
}

func extractAppUsage(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT app_name AS name, started_at AS start_time, ended_at AS end_time FROM %s WHERE started_at >= ? AND started_at < ? ORDER BY started_at ASC", ont.TableName),
		200, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	byApp := map[string]float64{}
	for _, r := range rows {
		minutes := 1.0
		if r.EndTime != nil && r.EndTime.After(r.StartTime) {
			minutes = r.EndTime.Sub(r.StartTime).Minutes()
		}
		byApp[r.Name] += minutes
	}
	lines := make([]string, 0, len(byApp))
	for app, minutes := range byApp {
		if minutes > 0 {
			lines = append(lines, fmt.Sprintf("- %s — %d min", app, int(minutes)))
		}
	}
	return capLines(lines, len(lines), "apps"), totalMinutes(rows)
}

func extractWebBrowsing(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT title AS name, visited_at AS start_time FROM %s WHERE visited_at >= ? AND visited_at < ? ORDER BY visited_at ASC", ont.TableName),
		10, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("- %s", r.Name)
	}
	return capLines(lines, len(rows), "pages"), totalMinutes(rows)
}

func extractDocuments(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT title AS name, document_type AS category, edited_at AS start_time FROM %s WHERE edited_at >= ? AND edited_at < ? ORDER BY edited_at ASC", ont.TableName),
		10, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("- [%s] %s", r.Category, r.Name)
	}
	return capLines(lines, len(rows), "documents"), totalMinutes(rows)
}

func extractBookmarks(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (string, float64) {
	rows := queryRows(ctx, db,
		fmt.Sprintf("SELECT title AS name, saved_at AS start_time FROM %s WHERE saved_at >= ? AND saved_at < ? ORDER BY saved_at ASC", ont.TableName),
		10, start, end)
	if len(rows) == 0 {
		return "", 0
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("- %s", r.Name)
	}
	return capLines(lines, len(rows), "bookmarks"), totalMinutes(rows)
}
