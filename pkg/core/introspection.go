package core

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Notes       int            `json:"notes"`
	Relations   int            `json:"relations"`
	Couples     map[string]int `json:"couples"`
	Active      map[string]int `json:"active"`
	Archived    int            `json:"archived"`
	Trashed     int            `json:"trashed"`
	GatewayType string         `json:"gateway_type"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := StoreState{
		Notes:       len(s.notes),
		Relations:   len(s.relations),
		Couples:     make(map[string]int, len(s.relations)),
		Active:      make(map[string]int, len(Kinds)),
		GatewayType: "memory",
	}
	for name, r := range s.relations {
		st.Couples[name] = r.Len()
	}
	for _, k := range Kinds {
		st.Active[k.String()] = s.active[k]
	}
	for _, n := range s.notes {
		switch n.State() {
		case StateArchived:
			st.Archived++
		case StateTrashed:
			st.Trashed++
		}
	}
	if _, ok := s.gw.(memoryGateway); !ok {
		st.GatewayType = "gateway"
		// Try to get component type if the gateway implements introspection.Component
		if comp, ok := s.gw.(introspection.Component); ok {
			st.GatewayType = comp.ComponentType()
		}
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
