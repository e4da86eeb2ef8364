package script

import (
	"context"
	"io"

	"github.com/kmol-editor/kmol/pkg/domain"
)

// Disabled is an evaluator that refuses to run anything.
type Disabled struct{}

// Eval always fails with domain.ErrScriptDisabled.
func (Disabled) Eval(_ context.Context, _ string, _, _ io.Writer) error {
	return domain.ErrScriptDisabled
}
