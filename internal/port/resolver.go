package port

import (
	"context"

	"wikiaudio/internal/domain"
)

// AudioResolver discovers audio candidates attached to a named page. Implementations
// must be stateless: Resolve is idempotent, has no side effects, and is safe for
// concurrent use.
type AudioResolver interface {
	Resolve(ctx context.Context, pageTitle string) ([]domain.AudioCandidate, error)
}
