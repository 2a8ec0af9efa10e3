package pull

import "errors"

// ErrMultipleManifests is returned when manifest.json contains more than
// one entry — pocky only supports single-manifest (single-architecture)
// images (spec.md §1 Non-goals: "no multi-architecture manifest handling").
var ErrMultipleManifests = errors.New("manifest.json has more than one entry")
