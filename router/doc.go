// Package router classifies free-text tasks into category labels and hands
// them to the agent registered for that category, creating the agent from a
// descriptor on first use.
//
// Dispatch flow:
//
//	Classify -> Registry lookup -> Factory on miss -> Perform -> audit
//
// A route never returns an error. Failures are rendered into the result text
// and reported through the structured RouteResult returned by Dispatch.
package router
