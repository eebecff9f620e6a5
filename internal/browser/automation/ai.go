// internal/browser/automation/ai.go
package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/api/schemas"
)

// Act resolves a natural-language instruction into a single page operation
// and executes it.
func (p *chromePage) Act(ctx context.Context, instruction string) (*schemas.ActResult, error) {
	if p.inf == nil {
		return nil, ErrNoInferencer
	}

	snap, err := Snapshot(ctx, p)
	if err != nil {
		return nil, err
	}

	action, err := p.inf.InferAct(ctx, instruction, snap)
	if err != nil {
		return nil, fmt.Errorf("act inference: %w", err)
	}

	p.logger.Debug("executing inferred action",
		zap.String("method", action.Method),
		zap.String("selector", action.Selector))

	if err := p.execute(ctx, action); err != nil {
		return nil, fmt.Errorf("act execution (%s on %q): %w", action.Method, action.Selector, err)
	}

	return &schemas.ActResult{
		Success:     true,
		Method:      action.Method,
		Selector:    action.Selector,
		Description: action.Description,
	}, nil
}

// execute maps an inferred action onto a page primitive.
func (p *chromePage) execute(ctx context.Context, action *schemas.InferredAction) error {
	switch action.Method {
	case "click":
		return p.Click(ctx, action.Selector)
	case "fill":
		return p.Fill(ctx, action.Selector, action.Value)
	case "goto":
		return p.Goto(ctx, action.Value, nil)
	default:
		return fmt.Errorf("unsupported inferred method %q", action.Method)
	}
}

// Extract pulls structured data out of the current page per the instruction
// and optional JSON schema.
func (p *chromePage) Extract(ctx context.Context, instruction string, schema json.RawMessage) (json.RawMessage, error) {
	if p.inf == nil {
		return nil, ErrNoInferencer
	}

	markup, err := p.Content(ctx)
	if err != nil {
		return nil, err
	}

	result, err := p.inf.InferExtract(ctx, instruction, schema, PageText(markup))
	if err != nil {
		return nil, fmt.Errorf("extract inference: %w", err)
	}
	return result, nil
}

// Observe lists candidate actions available on the current page.
func (p *chromePage) Observe(ctx context.Context, instruction string) ([]schemas.ObservedAction, error) {
	if p.inf == nil {
		return nil, ErrNoInferencer
	}

	snap, err := Snapshot(ctx, p)
	if err != nil {
		return nil, err
	}

	actions, err := p.inf.InferObserve(ctx, instruction, snap)
	if err != nil {
		return nil, fmt.Errorf("observe inference: %w", err)
	}
	return actions, nil
}
