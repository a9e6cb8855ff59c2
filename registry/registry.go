// Package registry is the process-wide, statically initialised catalogue of
// sources, streams, and ontologies. It is read-only after Validate
// succeeds at startup.
package registry

import (
	"fmt"
	"sort"

	"github.com/lifelog/core/lifelog"
)

// Context-weight vector axis ordering is fixed across the whole system.
const (
	DimWho = iota
	DimWhom
	DimWhat
	DimWhen
	DimWhere
	DimWhy
	DimHow
	numDims
)

// AuthKind enumerates how a source authenticates.
type AuthKind string

const (
	AuthOAuth2     AuthKind = "oauth2"
	AuthDeviceToken AuthKind = "device-token"
	AuthNone       AuthKind = "none"
)

// Source describes a provider instance the core can ingest from.
type Source struct {
	Name        string
	DisplayName string
	AuthKind    AuthKind
	Streams     []string // stream names belonging to this source
}

// Stream describes a per-(source, name) feed configuration.
type Stream struct {
	Source                string
	Name                   string
	TableName              string
	TargetOntologies       []string
	SupportsIncremental    bool
	SupportsFullRefresh    bool
	DefaultCron            string // 6-field cron expression
	EnabledByDefault       bool
	Tier                   string
}

// EmbeddingConfig names the embedding model and dimensionality used for an
// ontology's event-level vectors.
type EmbeddingConfig struct {
	Model     string
	Dimension int
}

// ContextWeights is the fixed 7-axis [who,whom,what,when,where,why,how]
// weight vector used to score an event's contribution to each axis.
type ContextWeights [numDims]float64

// Ontology describes a normalised domain table.
type Ontology struct {
	Name              string
	DisplayName       string
	Domain            string
	TableName         string
	SourceStreams     []string
	TimestampColumn   string
	EndTimestampColumn string // empty when the ontology has no interval end
	Embedding         *EmbeddingConfig
	ContextWeights    ContextWeights
}

// Registry is the read-only catalogue. Construct with New then Validate.
type Registry struct {
	sources    map[string]Source
	streams    map[string]Stream // key: source+"/"+name
	ontologies map[string]Ontology
	byTable    map[string]Ontology
}

// New builds an (unvalidated) Registry from the static catalogue.
func New() *Registry {
	r := &Registry{
		sources:    map[string]Source{},
		streams:    map[string]Stream{},
		ontologies: map[string]Ontology{},
		byTable:    map[string]Ontology{},
	}
	for _, s := range defaultSources() {
		r.sources[s.Name] = s
	}
	for _, s := range defaultStreams() {
		r.streams[streamKey(s.Source, s.Name)] = s
	}
	for _, o := range defaultOntologies() {
		r.ontologies[o.Name] = o
		r.byTable[o.TableName] = o
	}
	return r
}

func streamKey(source, name string) string { return source + "/" + name }

// Sources returns every registered source, sorted by name.
func (r *Registry) Sources() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Streams returns every registered stream, sorted by (source, name).
func (r *Registry) Streams() []Stream {
	out := make([]Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Ontologies returns every registered ontology, sorted by name.
func (r *Registry) Ontologies() []Ontology {
	out := make([]Ontology, 0, len(r.ontologies))
	for _, o := range r.ontologies {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stream looks up a stream by (source, name).
func (r *Registry) Stream(source, name string) (Stream, bool) {
	s, ok := r.streams[streamKey(source, name)]
	return s, ok
}

// Ontology looks up an ontology by name.
func (r *Registry) Ontology(name string) (Ontology, bool) {
	o, ok := r.ontologies[name]
	return o, ok
}

// OntologyByTable looks up an ontology by its table name.
func (r *Registry) OntologyByTable(table string) (Ontology, bool) {
	o, ok := r.byTable[table]
	return o, ok
}

// OntologiesByDomain filters ontologies by domain, sorted by name.
func (r *Registry) OntologiesByDomain(domain string) []Ontology {
	var out []Ontology
	for _, o := range r.Ontologies() {
		if o.Domain == domain {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks bidirectional source-stream-ontology consistency: for
// every ontology O listing source stream S, S must list O in its
// target_ontologies, and vice versa. It also checks that every stream's
// table_name target exists among registered ontologies and that every
// ontology's context_weights has exactly 7 entries in [0,1] (enforced by
// the fixed-size array type; this checks the range).
func (r *Registry) Validate() error {
	for _, s := range r.streams {
		if _, ok := r.sources[s.Source]; !ok {
			return lifelog.New(lifelog.KindConfiguration,
				fmt.Sprintf("stream %s/%s references unknown source", s.Source, s.Name))
		}
		for _, ontName := range s.TargetOntologies {
			ont, ok := r.ontologies[ontName]
			if !ok {
				return lifelog.New(lifelog.KindConfiguration,
					fmt.Sprintf("stream %s/%s targets unknown ontology %q", s.Source, s.Name, ontName))
			}
			if !containsString(ont.SourceStreams, s.Name) {
				return lifelog.New(lifelog.KindConfiguration,
					fmt.Sprintf("ontology %q does not list stream %q among its source streams (bidirectional consistency failure)", ontName, s.Name))
			}
		}
	}

	for _, o := range r.ontologies {
		for _, streamName := range o.SourceStreams {
			found := false
			for _, s := range r.streams {
				if s.Name == streamName && containsString(s.TargetOntologies, o.Name) {
					found = true
					break
				}
			}
			if !found {
				return lifelog.New(lifelog.KindConfiguration,
					fmt.Sprintf("ontology %q lists source stream %q which does not target it back", o.Name, streamName))
			}
		}
		for _, w := range o.ContextWeights {
			if w < 0 || w > 1 {
				return lifelog.New(lifelog.KindConfiguration,
					fmt.Sprintf("ontology %q has out-of-range context weight %v", o.Name, w))
			}
		}
	}

	return nil
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
