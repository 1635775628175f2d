package debugger

import (
	"context"
	"fmt"

	"github.com/hupe1980/taskmesh/model"
)

// ModelInstructions is the system prompt used by ModelRemediator.
const ModelInstructions = "You are a debugging expert. Given an error message or traceback, reply with one concise, concrete fix."

// ModelRemediator asks a text-generation model for a fix. A non-empty answer
// is reported as resolved; a failed call is returned as error so the
// resolver counts the attempt and retries.
type ModelRemediator struct {
	model model.Model
}

// NewModelRemediator creates a remediator backed by m.
func NewModelRemediator(m model.Model) *ModelRemediator {
	return &ModelRemediator{model: m}
}

// Remediate implements Remediator.
func (r *ModelRemediator) Remediate(ctx context.Context, problem string, attempt int) (Remedy, error) {
	prompt := problem
	if attempt > 1 {
		prompt = fmt.Sprintf("Previous suggestions did not resolve this (attempt %d). %s", attempt, problem)
	}

	text, err := model.Collect(ctx, r.model, model.Request{
		Instructions: ModelInstructions,
		Prompt:       prompt,
	})
	if err != nil {
		return Remedy{}, err
	}
	return Remedy{Text: text, Resolved: true}, nil
}

// ChainRemediator tries each remediator in order and returns the first
// resolved remedy.
type ChainRemediator []Remediator

// Remediate implements Remediator.
func (c ChainRemediator) Remediate(ctx context.Context, problem string, attempt int) (Remedy, error) {
	var lastErr error
	for _, r := range c {
		remedy, err := r.Remediate(ctx, problem, attempt)
		if err != nil {
			lastErr = err
			continue
		}
		if remedy.Resolved {
			return remedy, nil
		}
	}
	return Remedy{}, lastErr
}
