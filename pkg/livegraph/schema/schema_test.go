package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentSchema = `{
	model:        string
	temperature?: number & >=0 & <=2
	tools?: [...string]
}`

func TestCompile(t *testing.T) {
	s, err := Compile(agentSchema)
	require.NoError(t, err)
	assert.Equal(t, []string{"model", "temperature", "tools"}, s.Fields())
	assert.Equal(t, agentSchema, s.Source())
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile(`{ model: string`)
	assert.Error(t, err)

	_, err = Compile(`"just a string"`)
	assert.Error(t, err)
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile(`{`) })
}

func TestValidate_OK(t *testing.T) {
	s := MustCompile(agentSchema)
	assert.NoError(t, s.Validate(map[string]any{"model": "m", "temperature": 0.7}))
	assert.NoError(t, s.Validate(map[string]any{"model": "m", "tools": []any{"search"}}))
}

func TestValidate_UnrecognizedKeys(t *testing.T) {
	s := MustCompile(agentSchema)

	err := s.Validate(map[string]any{"model": "m", "legacy": true, "apiKey": "x"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	keys, ok := verr.UnrecognizedTopLevelKeys()
	assert.True(t, ok)
	assert.Equal(t, []string{"apiKey", "legacy"}, keys)
}

func TestValidate_MixedIssues(t *testing.T) {
	s := MustCompile(agentSchema)

	err := s.Validate(map[string]any{"model": 42, "legacy": true})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	_, ok := verr.UnrecognizedTopLevelKeys()
	assert.False(t, ok, "a type error must not be treated as key-only")

	var sawInvalid bool
	for _, is := range verr.Issues {
		if is.Code == IssueInvalid {
			sawInvalid = true
			assert.Equal(t, []string{"model"}, is.Path)
		}
	}
	assert.True(t, sawInvalid)
}

func TestValidate_MissingRequired(t *testing.T) {
	s := MustCompile(agentSchema)

	err := s.Validate(map[string]any{})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Issues)
	assert.Equal(t, IssueInvalid, verr.Issues[0].Code)
}

func TestValidate_NestedUnknownIsNotTopLevel(t *testing.T) {
	s := MustCompile(`{
		retry?: close({ attempts?: int })
	}`)

	err := s.Validate(map[string]any{"retry": map[string]any{"attempts": 2, "jitter": true}})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	_, ok := verr.UnrecognizedTopLevelKeys()
	assert.False(t, ok)

	require.Len(t, verr.Issues, 1)
	assert.Equal(t, IssueUnrecognizedKeys, verr.Issues[0].Code)
	assert.Equal(t, []string{"retry"}, verr.Issues[0].Path)
	assert.Equal(t, []string{"jitter"}, verr.Issues[0].Keys)
	assert.Contains(t, err.Error(), "retry: unrecognized key(s): jitter")
}

func TestValidate_NestedClosedStructs(t *testing.T) {
	s := MustCompile(`{
		retry?: close({
			attempts?: int
			backoff?: close({ base?: string })
		})
		labels?: { [string]: string }
	}`)

	t.Run("allowed nested keys pass", func(t *testing.T) {
		assert.NoError(t, s.Validate(map[string]any{
			"retry":  map[string]any{"attempts": 2, "backoff": map[string]any{"base": "1s"}},
			"labels": map[string]any{"team": "infra"},
		}))
	})

	t.Run("deep unknown key carries full path", func(t *testing.T) {
		err := s.Validate(map[string]any{
			"retry": map[string]any{"backoff": map[string]any{"base": "1s", "cap": "9s"}},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Issues, 1)
		assert.Equal(t, []string{"retry", "backoff"}, verr.Issues[0].Path)
		assert.Equal(t, []string{"cap"}, verr.Issues[0].Keys)
	})

	t.Run("nested type error is still invalid", func(t *testing.T) {
		err := s.Validate(map[string]any{"retry": map[string]any{"attempts": "two"}})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.NotEmpty(t, verr.Issues)
		assert.Equal(t, IssueInvalid, verr.Issues[0].Code)
	})
}

func TestUnrecognizedKeysHelper(t *testing.T) {
	err := UnrecognizedKeys("a", "b")
	keys, ok := err.UnrecognizedTopLevelKeys()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Contains(t, err.Error(), "unrecognized key(s): a, b")
}

func TestUnrecognizedTopLevelKeys_Empty(t *testing.T) {
	_, ok := (&ValidationError{}).UnrecognizedTopLevelKeys()
	assert.False(t, ok)

	nested := &ValidationError{Issues: []Issue{{Code: IssueUnrecognizedKeys, Path: []string{"opts"}, Keys: []string{"x"}}}}
	_, ok = nested.UnrecognizedTopLevelKeys()
	assert.False(t, ok)
}
