package pathtemplate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootFileTemplate = "{root[work]}/{project[name]}/{hierarchy}/{folder[name]}/publish/usd/{folder[name]}_USD_v{version:0>5}.usda"

func testData() Data {
	return Data{
		"root":      map[string]string{"work": "/mnt/work"},
		"project":   map[string]any{"name": "demo"},
		"hierarchy": "assets/characters",
		"folder":    map[string]any{"name": "hero", "id": "f-1"},
		"version":   1,
	}
}

func TestResolveRootFileTemplate(t *testing.T) {
	path, err := Resolve(rootFileTemplate, testData())
	require.NoError(t, err)
	assert.Equal(t, "/mnt/work/demo/assets/characters/hero/publish/usd/hero_USD_v00001.usda", path)
}

func TestFormatPadding(t *testing.T) {
	tests := []struct {
		name     string
		template string
		value    any
		want     string
	}{
		{name: "fill right align", template: "v{version:0>3}", value: 7, want: "v007"},
		{name: "fill wider value untouched", template: "v{version:0>3}", value: 12345, want: "v12345"},
		{name: "fill on string", template: "{version:0>4}", value: "12", want: "0012"},
		{name: "zero padded integer", template: "v{version:03d}", value: 5, want: "v005"},
		{name: "zero padded without d", template: "v{version:04}", value: 42, want: "v0042"},
		{name: "integer from float", template: "{version:03d}", value: float64(9), want: "009"},
		{name: "negative integer", template: "{version:04d}", value: -7, want: "-007"},
		{name: "plain d", template: "{version:d}", value: int64(3), want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.template, Data{"version": tt.value})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMissingKeysFailStrictly(t *testing.T) {
	data := testData()
	delete(data, "hierarchy")
	data["folder"] = map[string]any{"id": "f-1"}

	path, err := Resolve(rootFileTemplate, data)
	require.Error(t, err)
	assert.Empty(t, path)

	var unresolved *UnresolvedPlaceholderError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, rootFileTemplate, unresolved.Template)
	assert.Equal(t, []string{"hierarchy", "folder[name]", "folder[name]"}, unresolved.Keys)
	assert.Contains(t, err.Error(), "folder[name]")
}

func TestFormatMissingTopLevelContext(t *testing.T) {
	_, err := Resolve("{root[work]}/x", Data{})
	var unresolved *UnresolvedPlaceholderError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"root[work]"}, unresolved.Keys)
}

func TestFormatMappingIsNotALeaf(t *testing.T) {
	_, err := Resolve("{folder}", testData())
	var unresolved *UnresolvedPlaceholderError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"folder"}, unresolved.Keys)
}

func TestFormatIndexIntoScalar(t *testing.T) {
	_, err := Resolve("{hierarchy[name]}", testData())
	var unresolved *UnresolvedPlaceholderError
	require.ErrorAs(t, err, &unresolved)
}

func TestEscapedBraces(t *testing.T) {
	tmpl, err := Parse("{{folder[name]}}_{folder[name]}")
	require.NoError(t, err)
	got, err := tmpl.Format(testData())
	require.NoError(t, err)
	assert.Equal(t, "{folder[name]}_hero", got)
	assert.Equal(t, []string{"folder[name]"}, tmpl.Keys())
}

func TestParseErrors(t *testing.T) {
	for _, raw := range []string{
		"{root[work]",
		"{}",
		"{root[]}",
		"{root[work]x}",
		"{version:>5}",
		"{version:0>x}",
		"stray }",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			assert.Error(t, err)
		})
	}
}

func TestNonIntegerWithIntegerSpec(t *testing.T) {
	_, err := Resolve("{version:03d}", Data{"version": "abc"})
	require.Error(t, err)
	var unresolved *UnresolvedPlaceholderError
	assert.False(t, errors.As(err, &unresolved))
}

func TestFormatIsDeterministic(t *testing.T) {
	tmpl, err := Parse(rootFileTemplate)
	require.NoError(t, err)
	first, err := tmpl.Format(testData())
	require.NoError(t, err)
	second, err := tmpl.Format(testData())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, rootFileTemplate, tmpl.String())
}
