// Package orchestrator runs the engines over a whole form schema in the order
// a renderer needs them: logic first (which fields are visible, required and
// disabled), then validation of the visible fields, then option lookups for
// lookup-backed fields.
package orchestrator
