package summarizer

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template selects the analysis angle for a submission.
type Template string

const (
	TemplateAuto    Template = "auto"
	TemplateMeeting Template = "meeting"
	TemplateEmail   Template = "email"
	TemplateProject Template = "project"
)

// ValidTemplate reports whether the template name is known.
func ValidTemplate(t Template) bool {
	switch t {
	case TemplateAuto, TemplateMeeting, TemplateEmail, TemplateProject:
		return true
	default:
		return false
	}
}

// templateIntros are the per-template analysis instructions, in Finnish
// like the rest of the prompt.
var templateIntros = map[Template]string{
	TemplateAuto:    "Analysoi seuraava sisältö ja tunnista automaattisesti sen tyyppi (sähköposti, kokous, dokumentti tai yleinen teksti).",
	TemplateMeeting: "Analysoi seuraava KOKOUSMUISTIO ja keskity erityisesti päätöksiin, toimenpiteisiin ja vastuuhenkilöihin.",
	TemplateEmail:   "Analysoi seuraava SÄHKÖPOSTI ja luo vastausluonnos sekä poimii toimenpiteet.",
	TemplateProject: "Analysoi seuraava PROJEKTISUUNNITELMA tai -dokumentti ja keskity aikatauluihin, vastuualueisiin ja virstanpylväisiin.",
}

// SummaryPrompt is the template for structured summarization.
const SummaryPrompt = `{{.Intro}} Luo sitten JSON-vastaus tiivistelmällä, tärkeimmillä asioilla, toimenpiteillä, deadlineilla ja avoimilla päätöksillä.

SISÄLTÖ:
{{.Content}}

Tunnista ja analysoi:
- Sisällön tyyppi (email/meeting/document/general)
- Pääkohdat ja tärkeimmät asiat
- Selkeät TODO-tehtävät
- Vastuuhenkilöt ja deadlinet
- Avoimet päätökset tai epäselvyydet
- Jos sähköposti, luo vastausluonnos

TÄRKEÄÄ: Analysoi VAIN annettu sisältö. Älä käytä esimerkkejä tai aiempia vastauksia. Jos ei ole avoimia päätöksiä, jätä pendingDecisions tyhjäksi [].

Vastaa VAIN kelvollisella JSON:lla tässä tarkassa muodossa:
{
  "contentType": "meeting|email|document|general",
  "summary": "Lyhyt tiivistelmä pääsisällöstä ja päätöksistä",
  "keyPoints": ["Ensimmäinen tärkeä asia", "Toinen tärkeä asia"],
  "actionItems": ["Henkilö: Tehtävä", "Seuraava kokous/tapaaminen: aika"],
  "deadlines": [
    {"task": "Tehtävän kuvaus", "person": "Vastuuhenkilö", "deadline": "pe 24.1.", "priority": "high|medium|low"}
  ],
  "pendingDecisions": ["Kuvaus avoimesta päätöksestä"],
  "responseTemplate": "Vastausluonnos jos sisältö on sähköposti, muuten null"
}`

var summaryTemplate = template.Must(template.New("summary").Parse(SummaryPrompt))

// RenderSummaryPrompt renders the summarization prompt for a submission.
func RenderSummaryPrompt(content string, tmpl Template) (string, error) {
	intro, ok := templateIntros[tmpl]
	if !ok {
		intro = templateIntros[TemplateAuto]
	}

	var buf bytes.Buffer
	err := summaryTemplate.Execute(&buf, struct {
		Intro   string
		Content string
	}{Intro: intro, Content: content})
	if err != nil {
		return "", fmt.Errorf("failed to render summary prompt: %w", err)
	}

	return buf.String(), nil
}
