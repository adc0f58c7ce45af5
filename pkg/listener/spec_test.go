package listener

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSpec(t *testing.T) {
	spec, err := DefaultSpec()
	require.NoError(t, err)

	reg, ok := spec.ByMethod("void setOnClickListener(android.view.View$OnClickListener)")
	require.True(t, ok)
	assert.Equal(t, clickIface, reg.Interface)
	require.Len(t, reg.Handlers, 1)
	i, ok := reg.Handlers[0].ViewParam()
	assert.True(t, ok)
	assert.Zero(t, i)
	_, ok = reg.Handlers[0].MenuParam()
	assert.False(t, ok)

	reg, ok = spec.ByInterface(contextIface)
	require.True(t, ok)
	assert.True(t, reg.ContextMenu)
	menu, ok := reg.Handlers[0].MenuParam()
	assert.True(t, ok)
	assert.Zero(t, menu)

	ifaces := spec.Interfaces()
	assert.IsIncreasing(t, ifaces)
	assert.Contains(t, ifaces, clickIface)
}

func TestParseSpec_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing interface", `
registrations:
  - method: "void setOnFoo(Foo)"
    handlers: [{method: "void onFoo()"}]
`},
		{"no handlers", `
registrations:
  - method: "void setOnFoo(Foo)"
    interface: Foo
`},
		{"duplicate", `
registrations:
  - method: "void setOnFoo(Foo)"
    interface: Foo
    handlers: [{method: "void onFoo()"}]
  - method: "void setOnFoo(Foo)"
    interface: Foo
    handlers: [{method: "void onFoo()"}]
`},
		{"not yaml", "registrations: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpec([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listeners.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
registrations:
  - method: "void setOnFoo(Foo)"
    interface: Foo
    handlers:
      - method: "void onFoo(android.view.View)"
        view: 0
`), 0o644))

	spec, err := LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo"}, spec.Interfaces())

	_, err = LoadSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
