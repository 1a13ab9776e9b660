package streams

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{Branding, Labs, TLM}, r.Names())
	assert.True(t, r.IsKnown("labs"))
	assert.False(t, r.IsKnown("Labs"))
	assert.Equal(t, []string{"/tlm", "/tlm/portfolio"}, r.Paths(TLM))
}

func TestRegistry_Parse(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"exact", "branding", "branding", nil},
		{"case and space", "  Branding ", "branding", nil},
		{"typo", "brandng", "", ErrUnknown},
		{"empty", "", "", ErrMissing},
		{"blank", "   ", "", ErrMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Parse(tt.in)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: " Studio ", DisplayName: "Studio"}))

	d, ok := r.Get("studio")
	require.True(t, ok)
	assert.Equal(t, "Studio", d.DisplayName)
	assert.Equal(t, []string{"/studio", "/studio/portfolio"}, d.Paths)

	assert.Error(t, r.Register(Definition{Name: "bad_name!"}))
	assert.ErrorIs(t, r.Register(Definition{Name: ""}), ErrMissing)
	assert.False(t, r.IsKnown("bad_name!"))
}

func TestRegistry_PathsAreCopied(t *testing.T) {
	r := DefaultRegistry()
	p := r.Paths(Labs)
	p[0] = "/mutated"
	assert.Equal(t, "/labs", r.Paths(Labs)[0])
}

func TestLoadRegistryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streams.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
streams:
  - name: studio
    displayName: Studio
    paths: ["/studio", "/studio/work"]
  - name: labs
    displayName: Innovation Labs
`), 0o600))

	r, err := LoadRegistryFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{Branding, Labs, "studio", TLM}, r.Names())
	assert.Equal(t, []string{"/studio", "/studio/work"}, r.Paths("studio"))

	d, _ := r.Get(Labs)
	assert.Equal(t, "Innovation Labs", d.DisplayName)

	defs := r.Definitions()
	require.Len(t, defs, 4)
	assert.Equal(t, Branding, defs[0].Name)
}

func TestLoadRegistryFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRegistryFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("streams: [name: ["), 0o600))
	_, err = LoadRegistryFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("streams:\n  - name: \"Not Valid\"\n"), 0o600))
	_, err = LoadRegistryFile(invalid)
	assert.Error(t, err)
}

func TestLoadRegistryFile_DuplicateNames(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"same name twice", "streams:
  - name: studio
  - name: studio
", true},
		{"differs only by case", "streams:
  - name: studio
  - name: " Studio "
", true},
		{"built-in redefined once", "streams:
  - name: labs
    displayName: Labs Two
", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "streams.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			r, err := LoadRegistryFile(path)
			if tt.wantErr {
				assert.ErrorContains(t, err, "more than once")
				return
			}
			require.NoError(t, err)
			assert.Len(t, r.Names(), 3)
		})
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "studio", DisplayName: "Studio"}))
	require.NoError(t, r.Register(Definition{Name: "STUDIO", DisplayName: "Studio Two"}))

	assert.Equal(t, []string{"studio"}, r.Names())
	assert.True(t, r.IsKnown("studio"))
	d, ok := r.Get("studio")
	require.True(t, ok)
	assert.Equal(t, "Studio Two", d.DisplayName)
}
