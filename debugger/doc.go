// Package debugger implements the escalation variant of the dispatcher: a
// Resolver that asks a Remediator for a fix a bounded number of times and
// escalates with a structured report when the ceiling is reached.
//
// A fix is accepted only when the remediator reports it as resolved; no
// heuristic is applied to the remedy text itself. No code is modified and no
// fix is verified against a live system.
package debugger
