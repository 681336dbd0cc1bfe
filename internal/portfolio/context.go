package portfolio

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SystemPrompt apresenta o assistente e as regras de resposta.
const SystemPrompt = `You are an AI assistant representing Adam El Amrani, known as "The Avatar", a 21-year-old computer engineering student at the International University of Rabat (UIR), specializing in Artificial Intelligence and Big Data.

## About Adam El Amrani

Adam combines AI, data, and automation to build scalable, intelligent systems. He balances his technical expertise with physical discipline through martial arts and fitness.

## Response Guidelines

### General Interactions
- Provide short, direct, and accurate answers about Adam
- Stay grounded in verified information only
- Maintain an energetic yet professional tone
- Reflect Adam's curiosity, discipline, and drive for innovation
- Never use uncertain language (avoid "probably," "maybe," "might")
- Never invent or exaggerate details about Adam

### Project-Specific Questions
When asked about one of Adam's projects:
- Focus exclusively on that project's details
- Describe its purpose, technologies, and features
- Don't discuss Adam's general background unless directly relevant
- Use only the project data provided

## Key Principle

You represent a real person. Always prioritize truth and accuracy over creativity or elaboration when describing Adam and his work.`

// Prompt junta o SystemPrompt e o contexto (quando houver).
func Prompt(context string) string {
	if context == "" {
		return SystemPrompt
	}
	return SystemPrompt + "\n\nContext from portfolio:\n" + context
}

// IsProjectQuery reconhece "tell me about ... project ...".
func IsProjectQuery(message string) bool {
	lower := strings.ToLower(message)
	return strings.HasPrefix(lower, "tell me about") && strings.Contains(lower, "project")
}

// BuildContext escolhe o contexto para a mensagem: só o projeto citado para perguntas
// sobre projeto, ou um resumo (formação + habilidades) para o resto.
func (d *Document) BuildContext(message string) string {
	if d.IsEmpty() {
		return ""
	}
	if IsProjectQuery(message) {
		p, ok := d.FindProject(message)
		if !ok {
			return ""
		}
		return p.Context()
	}
	return d.Summary()
}

// FindProject procura o primeiro projeto cujo nome aparece no trecho citado
// (depois de "project:" ou, sem ele, depois do último "about").
func (d *Document) FindProject(message string) (Project, bool) {
	lower := strings.ToLower(message)

	var wanted string
	if i := strings.LastIndex(lower, "project:"); i >= 0 {
		wanted = lower[i+len("project:"):]
	} else if i := strings.LastIndex(lower, "about"); i >= 0 {
		wanted = lower[i+len("about"):]
	}
	wanted = strings.TrimSpace(wanted)

	for _, p := range d.Projects {
		if p.Name == "" {
			continue
		}
		if strings.Contains(wanted, strings.ToLower(p.Name)) {
			return p, true
		}
	}
	return Project{}, false
}

// Context formata os detalhes do projeto para o prompt.
func (p Project) Context() string {
	var b strings.Builder
	b.WriteString("Project Details:\n")
	b.WriteString("Name: " + p.Name + "\n")
	b.WriteString("Description: " + p.Description + "\n")
	if len(p.Details) > 0 {
		b.WriteString("Features:\n- " + strings.Join(p.Details, "\n- ") + "\n")
	}
	if len(p.Technologies) > 0 {
		b.WriteString("Technologies: " + strings.Join(p.Technologies, ", "))
	}
	return b.String()
}

// Summary resume formação e habilidades, uma linha por item.
func (d *Document) Summary() string {
	var lines []string

	education := d.Education.Program
	if education == "" {
		education = d.Education.Institution
	}
	if education != "" {
		lines = append(lines, "Education: "+education)
	}

	title := cases.Title(language.English)
	for _, c := range d.Skills {
		if len(c.Skills) == 0 {
			continue
		}
		name := title.String(strings.ReplaceAll(c.Name, "_", " "))
		lines = append(lines, name+": "+strings.Join(c.Skills, ", "))
	}
	return strings.Join(lines, "\n")
}
