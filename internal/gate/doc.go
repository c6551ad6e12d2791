// Package gate implements the multi-gate decision evaluator for insight
// claims: a confidence check, a two-tier duplicate gate (exact-match cache
// then semantic search, failing open on search errors), and an importance
// routing policy that decides between auto-commit and human review.
package gate
