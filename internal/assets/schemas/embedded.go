// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time so validation works regardless of the
// working directory or installation location.
package schemasassets

import _ "embed"

// ItemsManifestSchema is the embedded items-manifest JSON schema.
//
//go:embed items-manifest.schema.json
var ItemsManifestSchema []byte
