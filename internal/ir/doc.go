// Package ir holds the structural types of the rule-firing core: LHS tests
// and conditions, RHS actions and values, working-memory elements, tokens,
// preferences, instantiations and productions.
//
// ir contains type definitions, rendering and content hashing only. It
// imports symtab and nothing else internal, so every other package can
// depend on it without cycles.
//
// Key constraints:
//   - Test and Value are sealed interfaces (tagged unions); a type switch
//     over them is exhaustive within this module.
//   - Reference counts on Preference and Production are manipulated only
//     by the engine and the registry.
//   - Rendering is deterministic and is the basis of Fingerprint.
package ir
