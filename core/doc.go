// Package core provides the foundational domain types shared by every
// taskmesh component:
//
//   - Agent (a named unit bundling a role label and a single task function)
//   - TaskFunc (the callback signature agents wrap)
//   - TaskError / FailureKind (the closed set of recognised task failures)
//
// The package deliberately keeps orchestration (registry, factory, router)
// out of scope so that those packages can depend on a small, stable surface.
package core
