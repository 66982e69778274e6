// Package present turns analytics kinds into Swahili or English display
// text. Analytics and report results carry only kinds and numbers; every
// user-facing string lives in the embedded catalog.
package present

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultMessages []byte

// Lang is a catalog language code.
type Lang string

// Supported languages. Swahili is the default display language.
const (
	Swahili Lang = "sw"
	English Lang = "en"

	DefaultLang = Swahili
	fallback    = English
)

// ParseLang resolves a language code. An empty code yields DefaultLang.
func ParseLang(code string) (Lang, error) {
	switch Lang(strings.ToLower(strings.TrimSpace(code))) {
	case "":
		return DefaultLang, nil
	case Swahili:
		return Swahili, nil
	case English:
		return English, nil
	}
	return "", fmt.Errorf("unsupported language %q", code)
}

// Catalog maps language, group and key to a message template.
type Catalog struct {
	Version   int                                   `yaml:"version"`
	Languages map[Lang]map[string]map[string]string `yaml:"languages"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultMessages)
	if err != nil {
		panic(fmt.Sprintf("embedded message catalog: %v", err))
	}
	return c
}

// Parse decodes a YAML catalog. The fallback language must be present.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode message catalog: %w", err)
	}
	if c.Version <= 0 {
		return nil, errors.New("message catalog: version is required")
	}
	if _, ok := c.Languages[fallback]; !ok {
		return nil, fmt.Errorf("message catalog: %s messages are required", fallback)
	}
	return &c, nil
}

// Missing lists group.key entries present in the fallback language but
// absent from lang.
func (c *Catalog) Missing(lang Lang) []string {
	var out []string
	for group, msgs := range c.Languages[fallback] {
		for key := range msgs {
			if _, ok := c.Languages[lang][group][key]; !ok {
				out = append(out, group+"."+key)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Text renders group.key in lang, substituting {name} placeholders from
// args. Unknown keys fall back to English and then to the key itself.
func (c *Catalog) Text(lang Lang, group, key string, args map[string]string) string {
	tmpl, ok := c.Languages[lang][group][key]
	if !ok {
		tmpl, ok = c.Languages[fallback][group][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(args)*2)
	for name, v := range args {
		pairs = append(pairs, "{"+name+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
