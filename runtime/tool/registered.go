package tool

import (
	"encoding/json"
	"time"
)

// RegisteredAction is discovered capability metadata: what a provider exposes
// for an integration, classified into an action type and stamped with a
// discovery time and TTL. Records are keyed by (integration id, capability
// id) in the durable store.
type RegisteredAction struct {
	IntegrationID string `json:"integrationId" bson:"integration_id"`
	CapabilityID  string `json:"capabilityId" bson:"capability_id"`
	// Name is the display name shown to operators.
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	// Type is the classified action type (declared type wins over the verb
	// heuristic).
	Type ActionType `json:"actionType" bson:"action_type"`
	// RequiredScopes lists the OAuth scopes the capability needs.
	RequiredScopes []string `json:"requiredScopes,omitempty" bson:"required_scopes,omitempty"`
	// InputSchema and OutputSchema describe the capability payloads.
	InputSchema  json.RawMessage `json:"inputSchema,omitempty" bson:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty" bson:"output_schema,omitempty"`
	// ProviderAction is the provider-native action name invoked on execute.
	ProviderAction string `json:"providerAction" bson:"provider_action"`
	// Resource is the provider resource the capability operates on.
	Resource string `json:"resource,omitempty" bson:"resource,omitempty"`
	// DiscoveredAt and TTLHours bound the record's freshness.
	DiscoveredAt time.Time `json:"discoveredAt" bson:"discovered_at"`
	TTLHours     int       `json:"ttlHours" bson:"ttl_hours"`
}

// Stale reports whether the record has outlived its TTL at the given time.
// Records with a non-positive TTL never go stale.
func (a RegisteredAction) Stale(now time.Time) bool {
	if a.TTLHours <= 0 {
		return false
	}
	return now.Sub(a.DiscoveredAt) > time.Duration(a.TTLHours)*time.Hour
}
