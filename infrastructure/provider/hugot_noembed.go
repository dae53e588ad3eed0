//go:build !embed_model

package provider

import "embed"

// Without the embed_model build tag the binary carries no model; the
// zero FS is never read because hasEmbeddedModel gates extraction.
var embeddedModelFS embed.FS

const hasEmbeddedModel = false
