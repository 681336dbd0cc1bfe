// Package portfolio carrega o documento do portfólio (JSON ou YAML) e monta o
// contexto enviado ao modelo junto com cada pergunta.
package portfolio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document é o portfólio carregado. O JSON servido em /api/portfolio fica em raw, com
// qualquer formato; os campos tipados alimentam o contexto do chat e só recebem o que
// encaixa (o resto vira aviso em Warnings).
type Document struct {
	raw      []byte
	warnings []string

	Education Education
	// Skills mantém a ordem das categorias no arquivo.
	Skills   []SkillCategory
	Projects []Project
}

type Education struct {
	Program     string
	Institution string
}

type SkillCategory struct {
	Name   string
	Skills []string
}

type Project struct {
	Name         string
	Description  string
	Details      []string
	Technologies []string
}

// Empty é o documento usado quando o arquivo não pôde ser lido.
func Empty() *Document {
	return &Document{raw: []byte("{}")}
}

// JSON devolve o documento completo como JSON.
func (d *Document) JSON() []byte {
	if d == nil || len(d.raw) == 0 {
		return []byte("{}")
	}
	return d.raw
}

// Warnings lista os campos ignorados ao montar a visão tipada.
func (d *Document) Warnings() []string {
	if d == nil {
		return nil
	}
	return d.warnings
}

// IsEmpty indica que não há nada para montar contexto.
func (d *Document) IsEmpty() bool {
	return d == nil || (d.Education == Education{} && len(d.Skills) == 0 && len(d.Projects) == 0)
}

// Load lê path; .yaml/.yml vira YAML, o resto é JSON.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON aceita qualquer objeto JSON. Só JSON inválido ou topo que não seja objeto é erro.
func ParseJSON(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, errors.New("portfolio: invalid json")
	}
	fields, ok := jsonValue(trimmed).Object()
	if !ok {
		return nil, errors.New("portfolio: top-level JSON value must be an object")
	}

	doc := &Document{raw: trimmed}
	doc.fill(fields)
	return doc, nil
}

// ParseYAML aceita qualquer mapping YAML e guarda a versão JSON para servir.
func ParseYAML(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("portfolio: decode yaml: %w", err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind == 0 {
		return Empty(), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("portfolio: top-level YAML value must be a mapping")
	}

	var generic map[string]any
	if err := node.Decode(&generic); err != nil {
		return nil, fmt.Errorf("portfolio: decode yaml: %w", err)
	}
	if generic == nil {
		generic = map[string]any{}
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("portfolio: yaml to json: %w", err)
	}

	fields, _ := yamlValue{node}.Object()
	doc := &Document{raw: raw}
	doc.fill(fields)
	return doc, nil
}

// value é um nó de JSON ou YAML já validado.
type value interface {
	Decode(v any) error
	Null() bool
	// Object devolve os pares na ordem do arquivo; ok=false se não for objeto/mapping.
	Object() (fields []field, ok bool)
	List() (items []value, ok bool)
}

type field struct {
	key string
	val value
}

type jsonValue json.RawMessage

func (j jsonValue) Decode(v any) error { return json.Unmarshal(j, v) }

func (j jsonValue) Null() bool { return bytes.Equal(bytes.TrimSpace(j), []byte("null")) }

func (j jsonValue) Object() ([]field, bool) {
	dec := json.NewDecoder(bytes.NewReader(j))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, false
	}

	var out []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		out = append(out, field{key: key, val: jsonValue(raw)})
	}
	return out, true
}

func (j jsonValue) List() ([]value, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal(j, &raw); err != nil {
		return nil, false
	}
	out := make([]value, len(raw))
	for i, r := range raw {
		out[i] = jsonValue(r)
	}
	return out, true
}

type yamlValue struct {
	n *yaml.Node
}

func (y yamlValue) node() *yaml.Node {
	if y.n.Kind == yaml.AliasNode && y.n.Alias != nil {
		return y.n.Alias
	}
	return y.n
}

func (y yamlValue) Decode(v any) error { return y.node().Decode(v) }

func (y yamlValue) Null() bool {
	n := y.node()
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func (y yamlValue) Object() ([]field, bool) {
	n := y.node()
	if n.Kind != yaml.MappingNode {
		return nil, false
	}
	var out []field
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, field{key: n.Content[i].Value, val: yamlValue{n.Content[i+1]}})
	}
	return out, true
}

func (y yamlValue) List() ([]value, bool) {
	n := y.node()
	if n.Kind != yaml.SequenceNode {
		return nil, false
	}
	out := make([]value, len(n.Content))
	for i, c := range n.Content {
		out[i] = yamlValue{c}
	}
	return out, true
}

// fill monta a visão tipada a partir dos campos de topo; o que não encaixa é ignorado.
func (d *Document) fill(fields []field) {
	for _, f := range fields {
		if f.val.Null() {
			continue
		}
		switch f.key {
		case "education":
			d.Education = d.education(f.val)
		case "skills":
			d.Skills = d.skills(f.val)
		case "projects":
			d.Projects = d.projects(f.val)
		}
	}
}

func (d *Document) warn(format string, args ...any) {
	d.warnings = append(d.warnings, fmt.Sprintf(format, args...))
}

func (d *Document) education(v value) Education {
	fields, ok := v.Object()
	if !ok {
		d.warn("education is not an object, ignored")
		return Education{}
	}
	var e Education
	for _, f := range fields {
		switch f.key {
		case "program":
			e.Program = d.str(f.val, "education.program")
		case "institution":
			e.Institution = d.str(f.val, "education.institution")
		}
	}
	return e
}

func (d *Document) skills(v value) []SkillCategory {
	fields, ok := v.Object()
	if !ok {
		d.warn("skills is not an object, ignored")
		return nil
	}
	var out []SkillCategory
	for _, f := range fields {
		out = append(out, SkillCategory{Name: f.key, Skills: d.strList(f.val, "skills."+f.key)})
	}
	return out
}

func (d *Document) projects(v value) []Project {
	items, ok := v.List()
	if !ok {
		d.warn("projects is not a list, ignored")
		return nil
	}
	var out []Project
	for i, item := range items {
		fields, ok := item.Object()
		if !ok {
			d.warn("projects[%d] is not an object, ignored", i)
			continue
		}
		var p Project
		for _, f := range fields {
			where := fmt.Sprintf("projects[%d].%s", i, f.key)
			switch f.key {
			case "name":
				p.Name = d.str(f.val, where)
			case "description":
				p.Description = d.str(f.val, where)
			case "details":
				p.Details = d.strList(f.val, where)
			case "technologies":
				p.Technologies = d.strList(f.val, where)
			}
		}
		out = append(out, p)
	}
	return out
}

func (d *Document) str(v value, where string) string {
	if v.Null() {
		return ""
	}
	var s string
	if err := v.Decode(&s); err != nil {
		d.warn("%s is not a string, ignored", where)
		return ""
	}
	return s
}

// strList mantém os itens string e descarta o resto.
func (d *Document) strList(v value, where string) []string {
	if v.Null() {
		return nil
	}
	items, ok := v.List()
	if !ok {
		d.warn("%s is not a list, ignored", where)
		return nil
	}
	var out []string
	skipped := 0
	for _, item := range items {
		var s string
		if err := item.Decode(&s); err != nil {
			skipped++
			continue
		}
		out = append(out, s)
	}
	if skipped > 0 {
		d.warn("%s: %d non-string items ignored", where, skipped)
	}
	return out
}
