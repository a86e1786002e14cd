package style

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/subtitle"
)

// FontCustomUpload is the font_style value selecting the uploaded font file
const FontCustomUpload = "custom upload"

// Config is the persisted subtitle style document
type Config struct {
	FontSize  int    `mapstructure:"f_size" json:"f_size"`
	MarginV   int    `mapstructure:"margin_v" json:"margin_v"`
	Color     string `mapstructure:"color" json:"color"`
	Border    string `mapstructure:"border" json:"border"`
	FontStyle string `mapstructure:"font_style" json:"font_style"`
}

// Defaults returns the hardcoded style record
func Defaults() Config {
	return Config{
		FontSize:  24,
		MarginV:   60,
		Color:     "#FFFFFF",
		Border:    "#000000",
		FontStyle: "Arial",
	}
}

// Keys lists the document keys in display order
func Keys() []string {
	return []string{"f_size", "margin_v", "color", "border", "font_style"}
}

// Get returns the value stored under a document key
func (c Config) Get(key string) (string, error) {
	switch key {
	case "f_size":
		return strconv.Itoa(c.FontSize), nil
	case "margin_v":
		return strconv.Itoa(c.MarginV), nil
	case "color":
		return c.Color, nil
	case "border":
		return c.Border, nil
	case "font_style":
		return c.FontStyle, nil
	default:
		return "", fmt.Errorf("unknown style key %q", key)
	}
}

// Set updates one document key from its string form. Values are not range checked.
func (c *Config) Set(key, value string) error {
	switch key {
	case "f_size", "margin_v":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		if key == "f_size" {
			c.FontSize = n
		} else {
			c.MarginV = n
		}
	case "color":
		c.Color = value
	case "border":
		c.Border = value
	case "font_style":
		c.FontStyle = value
	default:
		return fmt.Errorf("unknown style key %q", key)
	}
	return nil
}

// ASSStyle renders the force_style value for the subtitles filter.
func (c Config) ASSStyle(fontName string) string {
	return fmt.Sprintf(
		"FontName=%s,FontSize=%d,PrimaryColour=%s,OutlineColour=%s,MarginV=%d,BorderStyle=1,Outline=2,Alignment=2",
		fontName,
		c.FontSize,
		subtitle.HexToASSColor(c.Color),
		subtitle.HexToASSColor(c.Border),
		c.MarginV,
	)
}

// FontFace splits a resolved font into the family name handed to the
// renderer and, for font files, the directory to load it from.
func FontFace(resolved string) (name, dir string) {
	if !filepath.IsAbs(resolved) {
		return resolved, ""
	}
	base := filepath.Base(resolved)
	return strings.TrimSuffix(base, filepath.Ext(base)), filepath.Dir(resolved)
}
