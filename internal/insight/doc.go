// Package insight defines the claim domain model shared by the gate
// evaluator, review queue, and knowledge store: categories, importance
// levels, provenance, content-key normalization, and heuristic confidence
// scoring for unscored sources.
package insight
