package style

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
)

func newTestStore(t *testing.T) (*Store, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewStore(t.TempDir(), logging.New(&buf)), &buf
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	store, buf := newTestStore(t)

	assert.Equal(t, Defaults(), store.Load())
	assert.Empty(t, buf.String())
}

func TestLoadOverlaysSingleKey(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"f_size": 40}`), 0o644))

	want := Defaults()
	want.FontSize = 40
	assert.Equal(t, want, store.Load())
}

func TestLoadAcceptsOutOfRangeValues(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"f_size": -3, "color": "red"}`), 0o644))

	cfg := store.Load()
	assert.Equal(t, -3, cfg.FontSize)
	assert.Equal(t, "red", cfg.Color)
}

func TestLoadCorruptReturnsDefaults(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated json", content: `{"f_size": 40, "color": `},
		{name: "not json", content: `f_size = 40`},
		{name: "wrong type", content: `{"f_size": "huge", "color": "#00FF00"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, buf := newTestStore(t)
			require.NoError(t, os.WriteFile(store.Path(), []byte(tt.content), 0o644))

			assert.Equal(t, Defaults(), store.Load())
			assert.Contains(t, buf.String(), "Ignoring unreadable style config")
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "style"), nil)
	want := Config{FontSize: 32, MarginV: 80, Color: "#FFD700", Border: "#101010", FontStyle: "Liberation Serif"}

	require.NoError(t, store.Save(want))
	assert.Equal(t, want, store.Load())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"font_style": "Liberation Serif"`)
}

func TestResolveFontPath(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Equal(t, "Arial", store.ResolveFontPath("Arial"))
	// no upload yet: marker passes through
	assert.Equal(t, FontCustomUpload, store.ResolveFontPath(FontCustomUpload))

	path, err := store.SaveCustomFont(bytes.NewReader(goregular.TTF), "Cormorant.TTF")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "custom_font.ttf", filepath.Base(path))

	assert.Equal(t, path, store.ResolveFontPath(FontCustomUpload))
	assert.Equal(t, "Arial", store.ResolveFontPath("Arial"))
}

func TestSaveCustomFontReplacesPrevious(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.SaveCustomFont(bytes.NewReader(goregular.TTF), "one.ttf")
	require.NoError(t, err)
	second, err := store.SaveCustomFont(bytes.NewReader(gomono.TTF), "two.otf")
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(store.dir, "custom_font.*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, second, store.ResolveFontPath(FontCustomUpload))

	family, dir := store.ResolveFont(FontCustomUpload)
	assert.Equal(t, "Go Mono", family)
	assert.Equal(t, filepath.Dir(second), dir)
}

func TestResolveFontUsesEmbeddedFamily(t *testing.T) {
	store, _ := newTestStore(t)

	family, dir := store.ResolveFont("Arial")
	assert.Equal(t, "Arial", family)
	assert.Empty(t, dir)

	// no upload yet
	family, dir = store.ResolveFont(FontCustomUpload)
	assert.Equal(t, FontCustomUpload, family)
	assert.Empty(t, dir)

	path, err := store.SaveCustomFont(bytes.NewReader(goregular.TTF), "Liturgica.ttf")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.dir, familyFile))
	require.NoError(t, err)
	assert.Equal(t, "Go", string(data))

	family, dir = store.ResolveFont(FontCustomUpload)
	assert.Equal(t, "Go", family)
	assert.Equal(t, filepath.Dir(path), dir)
}

func TestResolveFontWithoutFamilyRecord(t *testing.T) {
	store, buf := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, "custom_font.ttf"), goregular.TTF, 0o644))

	family, _ := store.ResolveFont(FontCustomUpload)
	assert.Equal(t, "Go", family)

	require.NoError(t, os.WriteFile(filepath.Join(store.dir, "custom_font.ttf"), []byte("junk"), 0o644))
	family, dir := store.ResolveFont(FontCustomUpload)
	assert.Equal(t, "custom_font", family)
	assert.NotEmpty(t, dir)
	assert.Contains(t, buf.String(), "Custom font family unknown")
}

func TestSaveCustomFontRejectsUnparsableData(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.SaveCustomFont(strings.NewReader("font-bytes"), "font.ttf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a usable font")

	_, ok := store.customFont()
	assert.False(t, ok)
}

func TestSaveCustomFontRejectsExtension(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.SaveCustomFont(strings.NewReader("x"), "font.exe")
	assert.Error(t, err)
}
