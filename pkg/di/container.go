// Package di provides dependency injection container
package di

import (
	"context"

	"github.com/ssargent/freyja-vlog/pkg/api" //nolint:depguard
	"github.com/ssargent/freyja-vlog/pkg/store"
)

// StoreOpener opens the segment store a command works against
type StoreOpener func(ctx context.Context, config store.Config) (*store.Store, error)

// Container holds all the dependencies for the application
type Container struct {
	serverFactory api.ServerFactory
	storeOpener   StoreOpener
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory: api.NewServerFactory(),
		storeOpener:   store.Open,
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// OpenStore opens the store through the configured opener
func (c *Container) OpenStore(ctx context.Context, config store.Config) (*store.Store, error) {
	return c.storeOpener(ctx, config)
}

// SetStoreOpener allows overriding how the store is opened (for testing)
func (c *Container) SetStoreOpener(opener StoreOpener) {
	c.storeOpener = opener
}
