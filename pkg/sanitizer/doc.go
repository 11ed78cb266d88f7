// Package sanitizer provides the input normalization helpers the identity
// core applies before anything touches storage: e-mail normalization, handle
// normalization, and Turkish-aware lowercasing.
//
// Lowercasing goes through the Turkish caser deliberately. The user base is
// Turkish and ASCII folding mishandles the dotted/dotless i pair ("İSTANBUL"
// must fold to "istanbul", "KULÜP" to "kulüp"); reservation keys and the
// club-keyword heuristic both depend on getting this right.
package sanitizer
