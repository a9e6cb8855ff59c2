// Package derivation implements the orchestrators that turn ontology rows
// into higher-level daily artifacts: the day summary (a first-person diary
// entry plus a W6H context vector and chaos score) and the prudent-context
// snapshot (a curated JSON digest of axiology/ontology state, refreshed on a
// fixed schedule). Both call out to the tollbooth proxy for the LLM step and
// never persist prompt or completion bodies beyond the derived artifact
// itself.
package derivation
