// Package middleware composes the units every inbound interaction passes
// through before reaching its handler.
package middleware

import (
	"context"
	"errors"

	"github.com/lukadfagundes/bwaincell-sub004/internal/interaction"
)

// ErrNextCalledTwice is returned when a unit invokes next more than once.
var ErrNextCalledTwice = errors.New("middleware: next called more than once")

// Handler is the terminal step of a chain.
type Handler func(ctx context.Context, ic *interaction.Context) error

// Next runs the remainder of the chain.
type Next func() error

// Middleware observes, enriches, short-circuits or passes through a request.
// A unit that does not call next stops the chain and its return value
// becomes the chain's result.
type Middleware func(ctx context.Context, ic *interaction.Context, next Next) error

// Chain wraps h with units, outermost first.
func Chain(h Handler, units ...Middleware) Handler {
	units = append([]Middleware(nil), units...)

	return func(ctx context.Context, ic *interaction.Context) error {
		var run func(i int) error
		run = func(i int) error {
			if i == len(units) {
				return h(ctx, ic)
			}
			called := false
			return units[i](ctx, ic, func() error {
				if called {
					return ErrNextCalledTwice
				}
				called = true
				return run(i + 1)
			})
		}
		return run(0)
	}
}
