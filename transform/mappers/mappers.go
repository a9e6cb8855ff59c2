// Package mappers implements transform.Mapper for the ontologies whose
// source providers are actually wired (ingestion/providers/{google,strava,
// github}). Each Mapper here parses the provider's raw JSON payload shape,
// not a shared envelope, because the raw payload IS what the provider wrote
// verbatim to the Data Source (see e.g. providers/google/calendar.go's
// calendarEvent type) — there is nothing to generalise across providers,
// only per-ontology rules.
package mappers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/lifelog/core/datasource"
	"github.com/lifelog/core/lifelog"
)

// CalendarEventRow is the calendar_event ontology row, populated from
// Google Calendar's events.list payload or iOS EventKit (SourceStreams
// "calendar" and "eventkit" both target this table per the catalogue).
type CalendarEventRow struct {
	ID        string `gorm:"primaryKey"`
	SourceID  string
	Title     string
	StartsAt  time.Time
	EndsAt    time.Time
	UpdatedAt time.Time
}

func (CalendarEventRow) TableName() string { return "calendar_event" }

// CalendarEventMapper maps Google Calendar's events.list JSON shape.
type CalendarEventMapper struct{ SourceID string }

type calendarEventPayload struct {
	ID      string `json:"id"`
	Updated string `json:"updated"`
	Start   struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"end"`
	Summary string `json:"summary"`
}

func (m CalendarEventMapper) Map(record datasource.Record) (any, string, error) {
	var p calendarEventPayload
	if err := json.Unmarshal(record.Payload, &p); err != nil {
		return nil, "", lifelog.Wrap(lifelog.KindEncoding, "decode calendar event", err)
	}
	starts, err := parseCalendarTime(p.Start.DateTime, p.Start.Date)
	if err != nil {
		return nil, "", err
	}
	ends, err := parseCalendarTime(p.End.DateTime, p.End.Date)
	if err != nil {
		return nil, "", err
	}
	updated, err := time.Parse(time.RFC3339, p.Updated)
	if err != nil {
		updated = starts
	}
	row := &CalendarEventRow{
		ID: p.ID, SourceID: m.SourceID, Title: p.Summary,
		StartsAt: starts, EndsAt: ends, UpdatedAt: updated,
	}
	return row, row.ID, nil
}

func parseCalendarTime(dateTime, date string) (time.Time, error) {
	if dateTime != "" {
		t, err := time.Parse(time.RFC3339, dateTime)
		if err != nil {
			return time.Time{}, lifelog.Wrap(lifelog.KindInvalidInput, "unparseable event time", err)
		}
		return t, nil
	}
	if date != "" {
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, lifelog.Wrap(lifelog.KindInvalidInput, "unparseable event date", err)
		}
		return t, nil
	}
	return time.Time{}, lifelog.New(lifelog.KindInvalidInput, "calendar event has no start/end time")
}

// HealthWorkoutRow is the health_workout ontology row, populated from
// Strava's athlete/activities payload.
type HealthWorkoutRow struct {
	ID         string `gorm:"primaryKey"`
	SourceID   string
	Title      string
	Kind       string
	DistanceM  float64
	StartedAt  time.Time
	EndedAt    time.Time
}

func (HealthWorkoutRow) TableName() string { return "health_workout" }

// HealthWorkoutMapper maps Strava's activity JSON shape. Strava reports
// only a start time and no duration in the summary payload, so EndedAt
// mirrors StartedAt; a richer mapping would need the activity-detail
// endpoint, which this provider does not call.
type HealthWorkoutMapper struct{ SourceID string }

type stravaActivityPayload struct {
	ID        int64   `json:"id"`
	StartDate string  `json:"start_date"`
	Name      string  `json:"name"`
	Distance  float64 `json:"distance"`
	Type      string  `json:"type"`
}

func (m HealthWorkoutMapper) Map(record datasource.Record) (any, string, error) {
	var p stravaActivityPayload
	if err := json.Unmarshal(record.Payload, &p); err != nil {
		return nil, "", lifelog.Wrap(lifelog.KindEncoding, "decode strava activity", err)
	}
	started, err := time.Parse(time.RFC3339, p.StartDate)
	if err != nil {
		return nil, "", lifelog.Wrap(lifelog.KindInvalidInput, "unparseable activity start", err)
	}
	id := strconv.FormatInt(p.ID, 10)
	row := &HealthWorkoutRow{
		ID: id, SourceID: m.SourceID, Title: p.Name, Kind: p.Type,
		DistanceM: p.Distance, StartedAt: started, EndedAt: started,
	}
	return row, row.ID, nil
}

// ActivityAppUsageRow is the activity_app_usage ontology row. The github
// stream target this table (catalogue: github "events" -> activity_app_usage)
// standing in for "coding activity" until a richer app-usage source exists.
type ActivityAppUsageRow struct {
	ID        string `gorm:"primaryKey"`
	SourceID  string
	AppName   string
	StartedAt time.Time
	EndedAt   time.Time
}

func (ActivityAppUsageRow) TableName() string { return "activity_app_usage" }

// GitHubEventMapper maps GitHub's /users/{username}/events JSON shape,
// using the event's repo name as the "app" the user was active in.
type GitHubEventMapper struct{ SourceID string }

type ghEventPayload struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Repo      struct {
		Name string `json:"name"`
	} `json:"repo"`
}

func (m GitHubEventMapper) Map(record datasource.Record) (any, string, error) {
	var p ghEventPayload
	if err := json.Unmarshal(record.Payload, &p); err != nil {
		return nil, "", lifelog.Wrap(lifelog.KindEncoding, "decode github event", err)
	}
	at, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		return nil, "", lifelog.Wrap(lifelog.KindInvalidInput, "unparseable event time", err)
	}
	row := &ActivityAppUsageRow{
		ID: p.ID, SourceID: m.SourceID, AppName: p.Repo.Name,
		StartedAt: at, EndedAt: at,
	}
	return row, row.ID, nil
}
