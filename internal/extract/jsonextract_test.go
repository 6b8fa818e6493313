package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstJSONObjectPlain(t *testing.T) {
	obj, err := firstJSONObject(`{"a": 1, "b": {"c": "д"}}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, obj["a"])
}

func TestFirstJSONObjectWrappedInProse(t *testing.T) {
	text := "Вот результат анализа:\n{\"schema_version\": \"1.0\"}\nНадеюсь, это поможет."
	obj, err := firstJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, "1.0", obj["schema_version"])
}

func TestFirstJSONObjectSkipsFalseStarts(t *testing.T) {
	// A stray brace before the actual object.
	text := "см. п. {a} выше... {\"ok\": true}"
	obj, err := firstJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, true, obj["ok"])
}

func TestFirstJSONObjectFencedBlock(t *testing.T) {
	text := "```json\n{\"ok\": true}\n```"
	obj, err := firstJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, true, obj["ok"])
}

func TestFirstJSONObjectNoneFound(t *testing.T) {
	_, err := firstJSONObject("здесь нет никакого объекта")
	require.Error(t, err)
}

func TestFirstJSONObjectEmptyInput(t *testing.T) {
	_, err := firstJSONObject("   ")
	require.Error(t, err)
}
