package tool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSpecificationJSON(t *testing.T) {
	t.Parallel()
	spec, err := ParseSpecification([]byte(`{
		"name": "inbox",
		"entities": [{"name": "email", "fields": [{"name": "subject"}], "sourceIntegration": "gmail"}],
		"integrations": [{"id": "gmail", "capabilities": ["LIST_EMAILS"]}],
		"actions": [{"id": "fetch", "integrationId": "gmail", "capabilityId": "LIST_EMAILS", "type": "READ"}]
	}`))
	require.NoError(t, err)
	require.Equal(t, "inbox", spec.Name)
	require.Len(t, spec.Actions, 1)
	require.Equal(t, ActionRead, spec.Actions[0].Type)
}

func TestParseSpecificationYAML(t *testing.T) {
	t.Parallel()
	spec, err := ParseSpecification([]byte(`
name: inbox
entities:
  - name: email
    fields:
      - name: subject
        type: string
    sourceIntegration: gmail
integrations:
  - id: gmail
    capabilities: [LIST_EMAILS]
actions:
  - id: fetch
    integrationId: gmail
    capabilityId: LIST_EMAILS
    type: READ
`))
	require.NoError(t, err)
	require.Equal(t, "inbox", spec.Name)
	require.Equal(t, "gmail", spec.Entities[0].SourceIntegration)
	require.Equal(t, "LIST_EMAILS", spec.Actions[0].CapabilityID)
}

func TestParseSpecificationEmpty(t *testing.T) {
	t.Parallel()
	_, err := ParseSpecification([]byte("   \n"))
	require.Error(t, err)
}

func TestParseSpecificationBadJSON(t *testing.T) {
	t.Parallel()
	_, err := ParseSpecification([]byte(`{"name": `))
	require.Error(t, err)
}
