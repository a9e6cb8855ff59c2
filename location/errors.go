package location

import "github.com/lifelog/core/lifelog"

var (
	errNoPOIService = lifelog.New(lifelog.KindConfiguration, "no POI service configured, visit left place-less")
	errNoCandidate  = lifelog.New(lifelog.KindNotFound, "no POI candidate found within search radius")
)
