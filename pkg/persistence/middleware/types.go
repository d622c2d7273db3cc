// Package middleware decorates a ports.Repository with at-rest protections
// for chat history: encryption and redaction.
package middleware

import "github.com/aretw0/deckflow/pkg/ports"

// Middleware wraps a Repository to add behavior.
type Middleware func(ports.Repository) ports.Repository

// Chain applies mws so that the first one sees calls first.
func Chain(repo ports.Repository, mws ...Middleware) ports.Repository {
	for i := len(mws) - 1; i >= 0; i-- {
		repo = mws[i](repo)
	}
	return repo
}
