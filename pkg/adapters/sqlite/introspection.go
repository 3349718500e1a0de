package sqlite

import (
	"github.com/aretw0/introspection"
)

// GatewayState exposes internal state for observability.
type GatewayState struct {
	DSN    string `json:"dsn"`
	Open   bool   `json:"open"`
	Seed   bool   `json:"seed"`
	Seeded bool   `json:"seeded"`
}

// State implements introspection.Introspectable.
func (g *Gateway) State() any {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return GatewayState{
		DSN:    g.dsn,
		Open:   g.db != nil,
		Seed:   g.seed,
		Seeded: g.seeded,
	}
}

// ComponentType implements introspection.Component.
func (g *Gateway) ComponentType() string {
	return "sqlite"
}

var _ introspection.Introspectable = (*Gateway)(nil)
var _ introspection.Component = (*Gateway)(nil)
