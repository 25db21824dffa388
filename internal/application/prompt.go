package application

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ahrav/go-verso/internal/domain"
)

// defaultSystemTemplate instructs the judge and pins the exact JSON shape
// the response parser expects. The commentary language names are rendered
// from the profile's language pair.
const defaultSystemTemplate = `You are an expert evaluator of literary translation. Judge how faithfully and how well the translated passage renders the source passage.

Score each rubric criterion from 0 to 100:
- Accuracy: semantic fidelity to the source, with no omissions or additions.
- Fluency: naturalness and readability in the target language.
- Style: preservation of the source's register, voice, and literary effect.
- Terminology: consistency and correctness of names and recurring terms.

Also give an overall score from 0 to 100 and four qualitative sections: assessment, strengths, weaknesses, suggestions.

Write every commentary and qualitative section twice: "primary" in {{.PrimaryLanguage}} and "secondary" in {{.SecondaryLanguage}}.

IMPORTANT: You must respond with valid JSON in exactly this format:
{
  "quantitative": {
    "Accuracy": {"score": 0, "commentary": {"primary": "", "secondary": ""}},
    "Fluency": {"score": 0, "commentary": {"primary": "", "secondary": ""}},
    "Style": {"score": 0, "commentary": {"primary": "", "secondary": ""}},
    "Terminology": {"score": 0, "commentary": {"primary": "", "secondary": ""}}
  },
  "qualitative": {
    "assessment": {"primary": "", "secondary": ""},
    "strengths": {"primary": "", "secondary": ""},
    "weaknesses": {"primary": "", "secondary": ""},
    "suggestions": {"primary": "", "secondary": ""}
  },
  "overallScore": 0
}
Return only the JSON object, with no surrounding text and no code fences.`

// defaultUserTemplate carries one chunk's source and translation, plus the
// author's intention notes when the request supplied them.
const defaultUserTemplate = `Evaluate the following translated passage against its source.

SOURCE PASSAGE:
{{.Source}}

TRANSLATED PASSAGE:
{{.Translation}}
{{- if .AuthorIntention}}

AUTHOR INTENTION:
{{trim .AuthorIntention}}
{{- end}}`

// promptFuncMap returns the helper functions available to prompt
// templates, including overrides from a profile. The functions are
// stateless and safe for concurrent template execution.
func promptFuncMap() template.FuncMap {
	return template.FuncMap{
		// add offsets integers, e.g. for 1-based chunk labels.
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },

		"trim": strings.TrimSpace,

		// truncate limits a string to length runes, appending "..." when
		// text was cut. Rune-based so CJK text is never split mid-glyph.
		"truncate": func(s string, length int) string {
			if length <= 0 {
				return ""
			}
			runes := []rune(s)
			if len(runes) <= length {
				return s
			}
			if length > 3 {
				return string(runes[:length-3]) + "..."
			}
			return string(runes[:length])
		},

		"join":     strings.Join,
		"contains": strings.Contains,

		// lower and upper fold case for comparisons in templates.
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
	}
}

// systemPromptData is the data rendered into the system template.
type systemPromptData struct {
	// PrimaryLanguage and SecondaryLanguage are human-readable names of
	// the commentary languages, e.g. "English" and "Chinese".
	PrimaryLanguage   string
	SecondaryLanguage string
}

// userPromptData is the data rendered into the user template for one
// chunk.
type userPromptData struct {
	Source            string
	Translation       string
	AuthorIntention   string
	PrimaryLanguage   string
	SecondaryLanguage string
}

// PromptBuilder renders the judge prompts for a run. The system prompt is
// static per profile and rendered once; the user prompt is rendered per
// chunk. The builder is immutable after construction and safe for
// concurrent use by scheduler workers.
type PromptBuilder struct {
	systemPrompt  string
	userTmpl      *template.Template
	primaryName   string
	secondaryName string
}

// NewPromptBuilder compiles the profile's prompt templates, falling back
// to the built-in defaults, and resolves the display names of the
// commentary language pair.
func NewPromptBuilder(profile EvaluationProfile) (*PromptBuilder, error) {
	primaryName, err := languageName(profile.Languages.Primary)
	if err != nil {
		return nil, err
	}
	secondaryName, err := languageName(profile.Languages.Secondary)
	if err != nil {
		return nil, err
	}

	systemSrc := profile.Prompts.System
	if systemSrc == "" {
		systemSrc = defaultSystemTemplate
	}
	systemTmpl, err := template.New("system").Funcs(promptFuncMap()).Parse(systemSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse system prompt template: %w", err)
	}

	var buf bytes.Buffer
	data := systemPromptData{PrimaryLanguage: primaryName, SecondaryLanguage: secondaryName}
	if err := systemTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}

	userSrc := profile.Prompts.User
	if userSrc == "" {
		userSrc = defaultUserTemplate
	}
	userTmpl, err := template.New("user").Funcs(promptFuncMap()).Parse(userSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user prompt template: %w", err)
	}

	return &PromptBuilder{
		systemPrompt:  buf.String(),
		userTmpl:      userTmpl,
		primaryName:   primaryName,
		secondaryName: secondaryName,
	}, nil
}

// System returns the rendered system prompt shared by every chunk of a
// run.
func (b *PromptBuilder) System() string { return b.systemPrompt }

// User renders the per-chunk user prompt carrying the chunk's source,
// translation, and the run's author intention notes.
func (b *PromptBuilder) User(d domain.ChunkDescriptor, authorIntention string) (string, error) {
	var buf bytes.Buffer
	data := userPromptData{
		Source:            d.SourceChunk,
		Translation:       d.TranslationChunk,
		AuthorIntention:   authorIntention,
		PrimaryLanguage:   b.primaryName,
		SecondaryLanguage: b.secondaryName,
	}
	if err := b.userTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render user prompt for chunk %d: %w", d.Index, err)
	}
	return buf.String(), nil
}

// languageName resolves a BCP-47 tag to its English display name, e.g.
// "zh" to "Chinese". An unnamed but well-formed tag falls back to the tag
// itself.
func languageName(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	if name := display.English.Languages().Name(parsed); name != "" {
		return name, nil
	}
	return tag, nil
}
