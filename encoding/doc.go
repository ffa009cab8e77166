// Package encoding converts formula trees into encoded token sequences and back.
//
// Two encoders share one implementation and differ in how they treat
// variables and the dictionary:
//
//	harvest, _ := encoding.NewHarvestEncoder(d)   // variables -> hvars, Put meanings
//	query, _ := encoding.NewQueryEncoder(d)       // variables -> qvars, Get meanings
//
//	f, info, err := query.Encode(cmml.MustParse("apply(ci:f, ?x, ?x)"))
//
// Variables are numbered per formula by first occurrence, so the n-th
// distinct variable always receives index n regardless of its name. The
// Decoder reverses constants through the dictionary and renders variables
// positionally ("qvar#0", "hvar#1", ...).
package encoding
