package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validate(t *testing.T) {
	r := New()
	require.NoError(t, r.Validate())
}

func TestRegistry_Sources_Sorted(t *testing.T) {
	r := New()
	sources := r.Sources()
	require.NotEmpty(t, sources)
	for i := 1; i < len(sources); i++ {
		assert.LessOrEqual(t, sources[i-1].Name, sources[i].Name)
	}
}

func TestRegistry_Streams_Sorted(t *testing.T) {
	r := New()
	streams := r.Streams()
	require.NotEmpty(t, streams)
	for i := 1; i < len(streams); i++ {
		prev, cur := streams[i-1], streams[i]
		if prev.Source == cur.Source {
			assert.LessOrEqual(t, prev.Name, cur.Name)
		} else {
			assert.Less(t, prev.Source, cur.Source)
		}
	}
}

func TestRegistry_Stream_Lookup(t *testing.T) {
	r := New()
	s, ok := r.Stream("google", "calendar")
	require.True(t, ok)
	assert.Equal(t, "google_calendar_events_raw", s.TableName)

	_, ok = r.Stream("google", "nonexistent")
	assert.False(t, ok)
}

func TestRegistry_Ontology_Lookup(t *testing.T) {
	r := New()
	o, ok := r.Ontology("health_heart_rate")
	require.True(t, ok)
	assert.Equal(t, "health", o.Domain)

	o2, ok := r.OntologyByTable("health_heart_rate")
	require.True(t, ok)
	assert.Equal(t, o.Name, o2.Name)
}

func TestRegistry_OntologiesByDomain(t *testing.T) {
	r := New()
	health := r.OntologiesByDomain("health")
	require.NotEmpty(t, health)
	for _, o := range health {
		assert.Equal(t, "health", o.Domain)
	}
}

func TestValidate_DetectsUnknownSource(t *testing.T) {
	r := &Registry{
		sources:    map[string]Source{},
		streams:    map[string]Stream{"ghost/x": {Source: "ghost", Name: "x"}},
		ontologies: map[string]Ontology{},
		byTable:    map[string]Ontology{},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestValidate_DetectsUnknownTargetOntology(t *testing.T) {
	r := &Registry{
		sources: map[string]Source{"s": {Name: "s"}},
		streams: map[string]Stream{
			"s/x": {Source: "s", Name: "x", TargetOntologies: []string{"missing_ontology"}},
		},
		ontologies: map[string]Ontology{},
		byTable:    map[string]Ontology{},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ontology")
}

func TestValidate_DetectsAsymmetricOntologyStream(t *testing.T) {
	r := &Registry{
		sources: map[string]Source{"s": {Name: "s"}},
		streams: map[string]Stream{
			"s/x": {Source: "s", Name: "x", TargetOntologies: []string{"o"}},
		},
		ontologies: map[string]Ontology{
			"o": {Name: "o", SourceStreams: nil},
		},
		byTable: map[string]Ontology{},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bidirectional consistency failure")
}

func TestValidate_DetectsOutOfRangeWeight(t *testing.T) {
	r := &Registry{
		sources: map[string]Source{},
		streams: map[string]Stream{},
		ontologies: map[string]Ontology{
			"o": {Name: "o", ContextWeights: ContextWeights{1.5, 0, 0, 0, 0, 0, 0}},
		},
		byTable: map[string]Ontology{},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out-of-range context weight")
}

func TestValidate_DetectsDanglingOntologySourceStream(t *testing.T) {
	r := &Registry{
		sources: map[string]Source{},
		streams: map[string]Stream{},
		ontologies: map[string]Ontology{
			"o": {Name: "o", SourceStreams: []string{"ghost-stream"}},
		},
		byTable: map[string]Ontology{},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not target it back")
}
