// Package cognitive defines the port for the external proposal analysis service.
package cognitive

import (
	"context"

	"github.com/Strob0t/GovForge/internal/domain/cognitive"
)

// Analyzer requests an advisory analysis of a proposal.
type Analyzer interface {
	Analyze(ctx context.Context, req cognitive.Request) (*cognitive.Summary, error)
}
