// Package model defines the provider-agnostic abstraction taskmesh uses to
// reach text-generation services.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface in sub packages
// so task functions remain decoupled from vendor SDKs. The dispatcher treats
// every model as an opaque collaborator: only the returned text and the
// success or failure of the call matter.
package model
