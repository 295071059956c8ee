package templates

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/courier/pkg/notification"
)

// FallbackCode is used for unknown codes unless the catalogue overrides it.
const FallbackCode = "notification"

//go:embed default.yaml
var defaultCatalog []byte

// Definition is one template as written in the catalogue file.
type Definition struct {
	Subject   string            `yaml:"subject"`
	BodyText  string            `yaml:"body_text"`
	BodyHTML  string            `yaml:"body_html"`
	Title     string            `yaml:"title"`
	Body      string            `yaml:"body"`
	Data      map[string]string `yaml:"data"`
	Variables []string          `yaml:"variables"`
}

type catalogFile struct {
	Fallback string                `yaml:"fallback"`
	Email    map[string]Definition `yaml:"email"`
	Push     map[string]Definition `yaml:"push"`
}

type compiled struct {
	subject, bodyText, title, body *template.Template
	bodyHTML                       *htmltemplate.Template
	data                           map[string]*template.Template
	required                       []string
}

// Catalog renders templates parsed from YAML.
type Catalog struct {
	fallback  string
	templates map[notification.Channel]map[string]*compiled
}

// DefaultCatalog returns the built-in catalogue.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads and compiles a catalogue file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog compiles a YAML catalogue. Every template is parsed up front
// so syntax errors surface at startup.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}

	c := &Catalog{
		fallback:  f.Fallback,
		templates: make(map[notification.Channel]map[string]*compiled, 2),
	}
	if c.fallback == "" {
		c.fallback = FallbackCode
	}

	for ch, defs := range map[notification.Channel]map[string]Definition{
		notification.ChannelEmail: f.Email,
		notification.ChannelPush:  f.Push,
	} {
		c.templates[ch] = make(map[string]*compiled, len(defs))
		for code, def := range defs {
			t, err := compile(string(ch)+"/"+code, def)
			if err != nil {
				return nil, errors.Join(ErrInvalidCatalog, err)
			}
			c.templates[ch][code] = t
		}
	}
	return c, nil
}

// Codes lists the template codes defined for a channel.
func (c *Catalog) Codes(ch notification.Channel) []string {
	codes := make([]string, 0, len(c.templates[ch]))
	for code := range c.templates[ch] {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (c *Catalog) Render(_ context.Context, ch notification.Channel, code string, vars map[string]any) (Content, error) {
	byCode := c.templates[ch]
	t, ok := byCode[code]
	if !ok {
		t, ok = byCode[c.fallback]
	}
	if !ok {
		return Content{}, errors.Join(ErrRenderFailed, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, ch, code))
	}

	if missing := missingVariables(t.required, vars); len(missing) > 0 {
		return Content{}, fmt.Errorf("%w: missing required variables: %s", ErrRenderFailed, strings.Join(missing, ", "))
	}
	if vars == nil {
		vars = map[string]any{}
	}

	out, err := t.execute(vars)
	if err != nil {
		return Content{}, errors.Join(ErrRenderFailed, err)
	}
	return out, nil
}

func (t *compiled) execute(vars map[string]any) (Content, error) {
	var (
		out Content
		err error
	)
	if out.Subject, err = run(t.subject, vars); err != nil {
		return Content{}, err
	}
	if out.BodyText, err = run(t.bodyText, vars); err != nil {
		return Content{}, err
	}
	if t.bodyHTML != nil {
		var buf bytes.Buffer
		if err = t.bodyHTML.Execute(&buf, vars); err != nil {
			return Content{}, err
		}
		out.BodyHTML = strings.TrimSpace(buf.String())
	}
	if out.Title, err = run(t.title, vars); err != nil {
		return Content{}, err
	}
	if out.Body, err = run(t.body, vars); err != nil {
		return Content{}, err
	}
	if len(t.data) > 0 {
		out.Data = make(map[string]any, len(t.data))
		for k, dt := range t.data {
			v, err := run(dt, vars)
			if err != nil {
				return Content{}, err
			}
			out.Data[k] = v
		}
	}
	return out, nil
}

func run(t *template.Template, vars map[string]any) (string, error) {
	if t == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func compile(name string, def Definition) (*compiled, error) {
	t := &compiled{required: def.Variables}

	parse := func(field, src string) (*template.Template, error) {
		if src == "" {
			return nil, nil
		}
		return template.New(name + "." + field).Option("missingkey=zero").Funcs(funcs).Parse(src)
	}

	var err error
	if t.subject, err = parse("subject", def.Subject); err != nil {
		return nil, err
	}
	if t.bodyText, err = parse("body_text", def.BodyText); err != nil {
		return nil, err
	}
	if def.BodyHTML != "" {
		t.bodyHTML, err = htmltemplate.New(name + ".body_html").Option("missingkey=zero").Funcs(htmltemplate.FuncMap(funcs)).Parse(def.BodyHTML)
		if err != nil {
			return nil, err
		}
	}
	if t.title, err = parse("title", def.Title); err != nil {
		return nil, err
	}
	if t.body, err = parse("body", def.Body); err != nil {
		return nil, err
	}
	if len(def.Data) > 0 {
		t.data = make(map[string]*template.Template, len(def.Data))
		for k, src := range def.Data {
			if t.data[k], err = parse("data."+k, src); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

var funcs = template.FuncMap{
	"default": func(def string, v any) any {
		if v == nil {
			return def
		}
		if s, ok := v.(string); ok && s == "" {
			return def
		}
		return v
	},
	"required": func(name string, v any) (any, error) {
		if v == nil {
			return nil, fmt.Errorf("variable %q is required", name)
		}
		return v, nil
	},
}

func missingVariables(required []string, vars map[string]any) []string {
	var missing []string
	for _, name := range required {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
