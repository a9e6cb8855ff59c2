package registry

// defaultSources enumerates the provider surface: Google (Calendar,
// Gmail), Notion, Plaid, Strava, GitHub, and the iOS/macOS device push
// sources.
func defaultSources() []Source {
	return []Source{
		{Name: "google", DisplayName: "Google", AuthKind: AuthOAuth2,
			Streams: []string{"calendar", "gmail"}},
		{Name: "notion", DisplayName: "Notion", AuthKind: AuthOAuth2,
			Streams: []string{"pages"}},
		{Name: "plaid", DisplayName: "Plaid", AuthKind: AuthOAuth2,
			Streams: []string{"accounts", "transactions", "liabilities", "investments"}},
		{Name: "strava", DisplayName: "Strava", AuthKind: AuthOAuth2,
			Streams: []string{"activities"}},
		{Name: "github", DisplayName: "GitHub", AuthKind: AuthOAuth2,
			Streams: []string{"events"}},
		{Name: "ios", DisplayName: "iOS Device", AuthKind: AuthDeviceToken,
			Streams: []string{"healthkit", "location", "eventkit", "financekit", "microphone", "contacts"}},
		{Name: "macos", DisplayName: "macOS Device", AuthKind: AuthDeviceToken,
			Streams: []string{"apps", "browser", "imessage"}},
	}
}

func defaultStreams() []Stream {
	return []Stream{
		{Source: "google", Name: "calendar", TableName: "google_calendar_events_raw",
			TargetOntologies: []string{"calendar_event"}, SupportsIncremental: true,
			SupportsFullRefresh: true, DefaultCron: "0 */15 * * * *", EnabledByDefault: true, Tier: "starter"},
		{Source: "google", Name: "gmail", TableName: "google_gmail_messages_raw",
			TargetOntologies: []string{"communication_email"}, SupportsIncremental: true,
			SupportsFullRefresh: true, DefaultCron: "0 */15 * * * *", EnabledByDefault: true, Tier: "starter"},

		{Source: "notion", Name: "pages", TableName: "notion_pages_raw",
			TargetOntologies: []string{"content_document"}, SupportsIncremental: true,
			SupportsFullRefresh: true, DefaultCron: "0 0 * * * *", EnabledByDefault: false, Tier: "pro"},

		{Source: "plaid", Name: "accounts", TableName: "plaid_accounts_raw",
			TargetOntologies: []string{"financial_account"}, SupportsIncremental: false,
			SupportsFullRefresh: true, DefaultCron: "0 0 6 * * *", EnabledByDefault: true, Tier: "pro"},
		{Source: "plaid", Name: "transactions", TableName: "plaid_transactions_raw",
			TargetOntologies: []string{"financial_transaction"}, SupportsIncremental: true,
			SupportsFullRefresh: true, DefaultCron: "0 0 6 * * *", EnabledByDefault: true, Tier: "pro"},
		{Source: "plaid", Name: "liabilities", TableName: "plaid_liabilities_raw",
			TargetOntologies: []string{"financial_liability"}, SupportsIncremental: false,
			SupportsFullRefresh: true, DefaultCron: "0 0 6 * * *", EnabledByDefault: false, Tier: "pro"},
		{Source: "plaid", Name: "investments", TableName: "plaid_investments_raw",
			TargetOntologies: []string{"financial_account"}, SupportsIncremental: false,
			SupportsFullRefresh: true, DefaultCron: "0 0 6 * * *", EnabledByDefault: false, Tier: "pro"},

		{Source: "strava", Name: "activities", TableName: "strava_activities_raw",
			TargetOntologies: []string{"health_workout"}, SupportsIncremental: true,
			SupportsFullRefresh: true, DefaultCron: "0 0 */2 * * *", EnabledByDefault: true, Tier: "starter"},

		{Source: "github", Name: "events", TableName: "github_events_raw",
			TargetOntologies: []string{"activity_app_usage"}, SupportsIncremental: true,
			SupportsFullRefresh: true, DefaultCron: "0 */30 * * * *", EnabledByDefault: false, Tier: "pro"},

		{Source: "ios", Name: "healthkit", TableName: "ios_healthkit_raw",
			TargetOntologies: []string{"health_heart_rate", "health_hrv", "health_steps", "health_sleep", "health_workout"},
			SupportsIncremental: true, SupportsFullRefresh: false, DefaultCron: "0 */5 * * * *",
			EnabledByDefault: true, Tier: "starter"},
		{Source: "ios", Name: "location", TableName: "ios_location_raw",
			TargetOntologies: []string{"location_point"}, SupportsIncremental: true,
			SupportsFullRefresh: false, DefaultCron: "0 * * * * *", EnabledByDefault: true, Tier: "starter"},
		{Source: "ios", Name: "eventkit", TableName: "ios_eventkit_raw",
			TargetOntologies: []string{"calendar_event"}, SupportsIncremental: true,
			SupportsFullRefresh: true, DefaultCron: "0 */15 * * * *", EnabledByDefault: false, Tier: "starter"},
		{Source: "ios", Name: "financekit", TableName: "ios_financekit_raw",
			TargetOntologies: []string{"financial_transaction"}, SupportsIncremental: true,
			SupportsFullRefresh: false, DefaultCron: "0 0 */1 * * *", EnabledByDefault: false, Tier: "pro"},
		{Source: "ios", Name: "microphone", TableName: "ios_microphone_raw",
			TargetOntologies: []string{"communication_transcription"}, SupportsIncremental: true,
			SupportsFullRefresh: false, DefaultCron: "0 */10 * * * *", EnabledByDefault: false, Tier: "pro"},
		{Source: "ios", Name: "contacts", TableName: "ios_contacts_raw",
			TargetOntologies: []string{"communication_message"}, SupportsIncremental: false,
			SupportsFullRefresh: true, DefaultCron: "0 0 6 * * *", EnabledByDefault: false, Tier: "starter"},

		{Source: "macos", Name: "apps", TableName: "macos_apps_raw",
			TargetOntologies: []string{"activity_app_usage"}, SupportsIncremental: true,
			SupportsFullRefresh: false, DefaultCron: "0 */5 * * * *", EnabledByDefault: true, Tier: "starter"},
		{Source: "macos", Name: "browser", TableName: "macos_browser_raw",
			TargetOntologies: []string{"activity_web_browsing", "content_bookmark"}, SupportsIncremental: true,
			SupportsFullRefresh: false, DefaultCron: "0 */5 * * * *", EnabledByDefault: true, Tier: "starter"},
		{Source: "macos", Name: "imessage", TableName: "macos_imessage_raw",
			TargetOntologies: []string{"communication_message"}, SupportsIncremental: true,
			SupportsFullRefresh: false, DefaultCron: "0 */10 * * * *", EnabledByDefault: false, Tier: "starter"},
	}
}

// defaultOntologies is the full domain catalogue, including
// financial_liability alongside the other financial ontologies.
func defaultOntologies() []Ontology {
	return []Ontology{
		{Name: "health_heart_rate", Domain: "health", TableName: "health_heart_rate",
			SourceStreams: []string{"healthkit"}, TimestampColumn: "recorded_at",
			ContextWeights: ContextWeights{0, 0, 0.2, 0.3, 0, 0, 0.1}},
		{Name: "health_hrv", Domain: "health", TableName: "health_hrv",
			SourceStreams: []string{"healthkit"}, TimestampColumn: "recorded_at",
			ContextWeights: ContextWeights{0, 0, 0.2, 0.3, 0, 0, 0.1}},
		{Name: "health_steps", Domain: "health", TableName: "health_steps",
			SourceStreams: []string{"healthkit"}, TimestampColumn: "recorded_at",
			ContextWeights: ContextWeights{0, 0, 0.3, 0.3, 0.2, 0, 0.1}},
		{Name: "health_sleep", Domain: "health", TableName: "health_sleep",
			SourceStreams: []string{"healthkit"}, TimestampColumn: "started_at", EndTimestampColumn: "ended_at",
			ContextWeights: ContextWeights{0, 0, 0.3, 0.4, 0, 0, 0.1}},
		{Name: "health_workout", Domain: "health", TableName: "health_workout",
			SourceStreams: []string{"healthkit"}, TimestampColumn: "started_at", EndTimestampColumn: "ended_at",
			ContextWeights: ContextWeights{0.1, 0, 0.4, 0.3, 0.2, 0.1, 0.2}},

		{Name: "location_point", Domain: "location", TableName: "location_point",
			SourceStreams: []string{"location"}, TimestampColumn: "recorded_at",
			ContextWeights: ContextWeights{0, 0, 0, 0.1, 0.5, 0, 0}},
		// location_visit has no raw source stream: it is derived by the
		// clustering transform from location_point, not ingested directly.
		{Name: "location_visit", Domain: "location", TableName: "location_visit",
			SourceStreams: nil, TimestampColumn: "arrival_time", EndTimestampColumn: "departure_time",
			ContextWeights: ContextWeights{0, 0, 0.2, 0.3, 0.7, 0, 0.1}},

		{Name: "communication_email", Domain: "communication", TableName: "communication_email",
			SourceStreams: []string{"gmail"}, TimestampColumn: "sent_at",
			ContextWeights: ContextWeights{0.6, 0.6, 0.4, 0.2, 0, 0.3, 0}},
		{Name: "communication_message", Domain: "communication", TableName: "communication_message",
			SourceStreams: []string{"contacts", "imessage"}, TimestampColumn: "sent_at",
			ContextWeights: ContextWeights{0.7, 0.7, 0.3, 0.2, 0, 0.1, 0}},
		{Name: "communication_transcription", Domain: "communication", TableName: "communication_transcription",
			SourceStreams: []string{"microphone"}, TimestampColumn: "recorded_at",
			ContextWeights: ContextWeights{0.5, 0.5, 0.5, 0.2, 0.2, 0.2, 0.1}},

		{Name: "calendar_event", Domain: "calendar", TableName: "calendar_event",
			SourceStreams: []string{"calendar", "eventkit"}, TimestampColumn: "starts_at", EndTimestampColumn: "ends_at",
			ContextWeights: ContextWeights{0.5, 0.5, 0.5, 0.6, 0.3, 0.2, 0.1}},

		{Name: "activity_app_usage", Domain: "activity", TableName: "activity_app_usage",
			SourceStreams: []string{"apps", "events"}, TimestampColumn: "started_at", EndTimestampColumn: "ended_at",
			ContextWeights: ContextWeights{0, 0, 0.6, 0.2, 0, 0.2, 0.3}},
		{Name: "activity_web_browsing", Domain: "activity", TableName: "activity_web_browsing",
			SourceStreams: []string{"browser"}, TimestampColumn: "visited_at",
			ContextWeights: ContextWeights{0, 0, 0.5, 0.2, 0, 0.3, 0.2}},

		{Name: "content_document", Domain: "content", TableName: "content_document",
			SourceStreams: []string{"pages"}, TimestampColumn: "edited_at",
			ContextWeights: ContextWeights{0.1, 0, 0.6, 0.1, 0, 0.3, 0.2}},
		{Name: "content_bookmark", Domain: "content", TableName: "content_bookmark",
			SourceStreams: []string{"browser"}, TimestampColumn: "saved_at",
			ContextWeights: ContextWeights{0, 0, 0.4, 0.1, 0, 0.2, 0.1}},

		{Name: "financial_account", Domain: "financial", TableName: "financial_account",
			SourceStreams: []string{"accounts", "investments"}, TimestampColumn: "updated_at",
			ContextWeights: ContextWeights{0, 0, 0.1, 0, 0, 0.3, 0}},
		{Name: "financial_transaction", Domain: "financial", TableName: "financial_transaction",
			SourceStreams: []string{"transactions", "financekit"}, TimestampColumn: "occurred_at",
			ContextWeights: ContextWeights{0.2, 0.3, 0.3, 0.2, 0.3, 0.4, 0}},
		{Name: "financial_liability", Domain: "financial", TableName: "financial_liability",
			SourceStreams: []string{"liabilities"}, TimestampColumn: "updated_at",
			ContextWeights: ContextWeights{0, 0, 0.1, 0, 0, 0.4, 0}},
	}
}
