package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

// DefaultPIIPatterns match e-mail addresses and phone numbers.
var DefaultPIIPatterns = []string{
	`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
	`\+?\d[\d\s().-]{7,}\d`,
}

type redactingRepository struct {
	ports.Repository
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks matches of patterns in message bodies before they are stored.
// The running conversation keeps the original text; only the persisted copy is masked.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pii pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.Repository) ports.Repository {
		return &redactingRepository{Repository: next, patterns: compiled}
	}, nil
}

func (r *redactingRepository) CreateMessage(ctx context.Context, projectID string, m domain.Message) error {
	for _, p := range r.patterns {
		m.Content = p.ReplaceAllString(m.Content, Mask)
	}
	return r.Repository.CreateMessage(ctx, projectID, m)
}
