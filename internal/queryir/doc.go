// Package queryir is a small query representation over the trace store.
//
// Trace queries select rows from a named source (the event timeline or
// the failure log), filter them with conjunctions of equality predicates
// and return explicit fields. Backends compile a Query into their own
// language; querysql turns it into parameterized SQLite.
//
//	[--where flags] -> ParseFilter -> [Query] -> querysql -> SQL + params
//
// Query and Predicate are sealed: only types in this package implement
// them, so backends can switch over them exhaustively.
//
//	switch q := query.(type) {
//	case Select:
//	    // the only query form
//	}
//
// Every source declares its fields, their kinds and a total order. A
// query that names an unknown source or field is rejected by Validate
// before any backend sees it.
package queryir
