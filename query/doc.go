// Package query implements unification search over a formula index.
//
// A query is an encoded formula that may contain query variables (qvars),
// anonymous wildcards and numeric ranges. The index may itself contain
// generalization variables (hvars) stored at build time. Run walks the query
// against the index through an index.Accessor and reports every formula that
// unifies with it:
//
//	q, info, err := enc.Encode(cmml.MustParse("apply(csymbol:plus, ?x, ?x)"))
//	...
//	c := query.Collect(10)
//	status, err := query.Run(acc, q, c, query.WithRanges(info.Ranges, dec))
//
// The engine keeps all of its state in per-call frames, so a loaded index can
// serve any number of concurrent queries.
package query
