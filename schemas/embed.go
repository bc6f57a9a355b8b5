// Package schemas embeds the JSON Schema documents that guard parametric
// programs and vision output.
package schemas

import _ "embed"

// Instructions validates a parametric instruction program (a JSON array).
//
//go:embed instructions.schema.json
var Instructions string

// Polygons validates the contour document returned by the vision capability.
//
//go:embed polygons.schema.json
var Polygons string
