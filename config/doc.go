// Copyright 2026 Lifelog Core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config provides configuration loading for the lifelog core.

Configuration is merged in priority order: built-in defaults, then an
optional YAML file, then environment variables (LIFELOG_ prefix). Use
[NewLoader] to build a [Config]:

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("LIFELOG").
		Load()

[Config] aggregates the Server, Database, Redis, Archive, Ingestion,
Scheduler, Location, Atlas, OAuthProxy, Tollbooth, Proxy, Log, and
Telemetry sections. Call
[Config.Validate] after loading to abort startup on malformed values.
*/
package config
