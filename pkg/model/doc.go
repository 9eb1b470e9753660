// Package model defines the typed form rule model shared by the validation,
// logic and lookup engines. JSON field names mirror the schema contract
// consumed by renderers (required, pattern, minLength, custom.rule, when, and,
// or, ...) so documents round-trip without translation.
//
// Condition is a tagged variant: a leaf comparison, an `and` group or an `or`
// group. Decoding rejects shapes that are neither, while unknown operators are
// kept so the evaluator can fail closed and report them through diagnostics
// instead of aborting a whole form.
package model
