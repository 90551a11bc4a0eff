package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/toolforge/runtime/tool"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		declared string
		capName  string
		want     tool.ActionType
	}{
		{name: "declared create", declared: "create", capName: "whatever", want: tool.ActionWrite},
		{name: "declared update", declared: "update", capName: "SEND_EMAIL", want: tool.ActionMutate},
		{name: "declared delete", declared: "delete", capName: "x", want: tool.ActionMutate},
		{name: "declared list", declared: "list", capName: "x", want: tool.ActionRead},
		{name: "declared get", declared: "get", capName: "x", want: tool.ActionRead},
		{name: "declared search", declared: "search", capName: "x", want: tool.ActionRead},
		{name: "declared wins over verb", declared: "list", capName: "SEND_EMAIL", want: tool.ActionRead},
		{name: "declared case insensitive", declared: " Create ", capName: "x", want: tool.ActionWrite},
		{name: "verb send", declared: "", capName: "SEND_EMAIL", want: tool.ActionNotify},
		{name: "verb post", declared: "", capName: "post_message", want: tool.ActionNotify},
		{name: "verb notify", declared: "", capName: "NOTIFY_CHANNEL", want: tool.ActionNotify},
		{name: "verb create", declared: "", capName: "CREATE_ISSUE", want: tool.ActionWrite},
		{name: "verb add", declared: "", capName: "ADD_ROW", want: tool.ActionWrite},
		{name: "verb update", declared: "", capName: "UPDATE_ROW", want: tool.ActionMutate},
		{name: "verb delete", declared: "", capName: "DELETE_ROW", want: tool.ActionMutate},
		{name: "verb remove", declared: "", capName: "REMOVE_LABEL", want: tool.ActionMutate},
		{name: "notify beats mutate on mixed name", declared: "", capName: "SEND_UPDATE", want: tool.ActionNotify},
		{name: "no verb defaults to read", declared: "", capName: "LIST_EMAILS", want: tool.ActionRead},
		{name: "unknown declared falls through", declared: "upsert", capName: "FETCH_ROWS", want: tool.ActionRead},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Classify(tt.declared, tt.capName))
		})
	}
}
