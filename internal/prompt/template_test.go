package prompt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMistralSingleUser(t *testing.T) {
	got, err := RenderID("mistral", []Message{{Role: RoleUser, Content: "Hi"}}, "/")
	require.NoError(t, err)
	assert.Equal(t, "<s>[INST] Hi [/INST]</s>", got)
}

func TestRenderZephyrSingleUser(t *testing.T) {
	got, err := RenderID("zephyr", []Message{{Role: RoleUser, Content: "Hi"}}, "/")
	require.NoError(t, err)
	assert.Equal(t, "<s>/<|user|>/Hi</s>", got)
}

func TestRenderConversation(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "Be brief."},
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello"},
		{Role: RoleUser, Content: "Bye"},
	}
	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "mistral passes non-user roles through", id: "mistral", want: "<s>Be brief.[INST] Hi [/INST]Hello[INST] Bye [/INST]</s>"},
		{name: "zephyr tags every role", id: "zephyr", want: "<s>/<|system|>/Be brief./<|user|>/Hi/<|assistant|>/Hello/<|user|>/Bye</s>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderID(tt.id, msgs, "/")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderCollapsesEmbeddedNewlines(t *testing.T) {
	got, err := RenderID("mistral", []Message{{Role: RoleUser, Content: "line1\nline2\n"}}, "\\")
	require.NoError(t, err)
	assert.Equal(t, "<s>[INST] line1\\line2\\ [/INST]</s>", got)
	assert.NotContains(t, got, "\n")
}

func TestRenderEmptyList(t *testing.T) {
	got, err := RenderID("zephyr", nil, "/")
	require.NoError(t, err)
	assert.Equal(t, "<s></s>", got)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("llama2")
	require.Error(t, err)
	var ute UnknownTemplateError
	assert.True(t, errors.As(err, &ute))
	assert.Equal(t, "llama2", ute.ID)
	assert.Equal(t, []string{"mistral", "zephyr"}, Names())
}
