package style

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/image/font/sfnt"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
)

const (
	documentName   = "style.json"
	customFontBase = "custom_font"
	// familyFile records the family name read from the uploaded font
	familyFile = "custom_font_family"

	maxFontSize = 32 << 20
)

// ConfigParseError reports a persisted style document that could not be used.
// It never leaves the Store; Load logs it and falls back to defaults.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("style config %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// Store persists the style document and uploaded fonts in one directory
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore creates a store rooted at dir
func NewStore(dir string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{dir: dir, logger: logger.WithComponent("style")}
}

// Path returns the location of the style document
func (s *Store) Path() string {
	return filepath.Join(s.dir, documentName)
}

// Load returns the persisted style overlaid on Defaults. A missing file
// yields defaults; an unreadable one yields defaults and a warning.
func (s *Store) Load() Config {
	cfg, err := s.read()
	if err != nil {
		var parseErr *ConfigParseError
		if errors.As(err, &parseErr) {
			s.logger.WithError(parseErr.Err).WithField("path", parseErr.Path).Warn("Ignoring unreadable style config")
		}
		return Defaults()
	}
	return cfg
}

func (s *Store) read() (Config, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Config{}, &ConfigParseError{Path: s.Path(), Err: err}
	}

	v := viper.New()
	v.SetConfigType("json")
	def := Defaults()
	v.SetDefault("f_size", def.FontSize)
	v.SetDefault("margin_v", def.MarginV)
	v.SetDefault("color", def.Color)
	v.SetDefault("border", def.Border)
	v.SetDefault("font_style", def.FontStyle)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Config{}, &ConfigParseError{Path: s.Path(), Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &ConfigParseError{Path: s.Path(), Err: err}
	}
	return cfg, nil
}

// Save overwrites the style document with the full record
func (s *Store) Save(cfg Config) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create style dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode style config: %w", err)
	}

	if err := os.WriteFile(s.Path(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write style config: %w", err)
	}
	return nil
}

// SaveCustomFont stores an uploaded font, replacing any previous upload.
// The file keeps the extension of filename. The font must parse so its
// family name can be recorded for the renderer.
func (s *Store) SaveCustomFont(r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".ttf", ".otf", ".ttc":
	default:
		return "", fmt.Errorf("unsupported font file extension %q", ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxFontSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read font file: %w", err)
	}
	if len(data) > maxFontSize {
		return "", fmt.Errorf("font file is larger than %d bytes", maxFontSize)
	}
	family, err := fontFamily(data, ext)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create style dir: %w", err)
	}

	if old, ok := s.customFont(); ok {
		_ = os.Remove(old)
	}

	path := filepath.Join(s.dir, customFontBase+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write font file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, familyFile), []byte(family), 0o644); err != nil {
		return "", fmt.Errorf("failed to write font family: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

func (s *Store) customFont() (string, bool) {
	matches, err := filepath.Glob(filepath.Join(s.dir, customFontBase+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// ResolveFontPath maps a font_style choice to what the encoder should use:
// the uploaded font's absolute path for FontCustomUpload when one exists,
// otherwise the choice itself as a family name.
func (s *Store) ResolveFontPath(choice string) string {
	if choice != FontCustomUpload {
		return choice
	}

	path, ok := s.customFont()
	if !ok {
		return choice
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return choice
	}
	return abs
}

// ResolveFont maps a font_style choice to the family name the renderer
// selects by and, for the uploaded font, the directory it loads fonts from.
func (s *Store) ResolveFont(choice string) (family, dir string) {
	resolved := s.ResolveFontPath(choice)
	if !filepath.IsAbs(resolved) {
		return resolved, ""
	}

	if data, err := os.ReadFile(filepath.Join(s.dir, familyFile)); err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			return name, filepath.Dir(resolved)
		}
	}

	// uploads saved without a family record are read again
	if data, err := os.ReadFile(resolved); err == nil {
		if name, err := fontFamily(data, filepath.Ext(resolved)); err == nil {
			return name, filepath.Dir(resolved)
		}
	}

	s.logger.WithField("path", resolved).Warn("Custom font family unknown, using file name")
	return FontFace(resolved)
}

// fontFamily reads the family name of the first face in a font file
func fontFamily(data []byte, ext string) (string, error) {
	var (
		f   *sfnt.Font
		err error
	)
	if strings.EqualFold(ext, ".ttc") {
		var c *sfnt.Collection
		if c, err = sfnt.ParseCollection(data); err == nil {
			f, err = c.Font(0)
		}
	} else {
		f, err = sfnt.Parse(data)
	}
	if err != nil {
		return "", fmt.Errorf("not a usable font file: %w", err)
	}

	family, err := f.Name(nil, sfnt.NameIDFamily)
	if err != nil || strings.TrimSpace(family) == "" {
		if family, err = f.Name(nil, sfnt.NameIDTypographicFamily); err != nil {
			return "", fmt.Errorf("font has no family name: %w", err)
		}
	}
	family = strings.TrimSpace(family)
	if family == "" {
		return "", errors.New("font has an empty family name")
	}
	return family, nil
}
