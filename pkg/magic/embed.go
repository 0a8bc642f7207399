package magic

import "embed"

// builtinSignaturesFS embeds the built-in signature database.
//
//go:embed signatures/*.yml
var builtinSignaturesFS embed.FS
