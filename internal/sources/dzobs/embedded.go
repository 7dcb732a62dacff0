package dzobs

import (
	"encoding/json"
	"strings"

	"github.com/jonathan/jobstage/internal/fetch"
	"github.com/jonathan/jobstage/internal/posting"
	"github.com/jonathan/jobstage/internal/schemas"
	jsonschemas "github.com/jonathan/jobstage/schemas"
)

// nextData is the part of the __NEXT_DATA__ blob that carries the job.
type nextData struct {
	Props struct {
		PageProps struct {
			Job json.RawMessage `json:"job"`
		} `json:"pageProps"`
	} `json:"props"`
}

// job is the permissive projection of the embedded job. Every field may be
// missing or null.
type job struct {
	AboutCompany   *string `json:"oKompaniji"`
	Description    *string `json:"opisPosla"`
	Qualifications *string `json:"kvalifikacije"`
	Additional     *string `json:"informacije"`
	CTA            *string `json:"cta"`
	TagsList       []struct {
		Name *string `json:"name"`
	} `json:"tagsList"`
}

// draft is a Draft.js raw content state.
type draft struct {
	Blocks []struct {
		Text string `json:"text"`
	} `json:"blocks"`
}

// embeddedJob decodes the job from the page's __NEXT_DATA__ script. It
// reports false when the blob is absent, malformed or fails the schema.
func embeddedJob(doc *fetch.Document) (*job, bool) {
	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if raw == "" {
		return nil, false
	}

	var data nextData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false
	}
	blob := data.Props.PageProps.Job
	if len(blob) == 0 || string(blob) == "null" {
		return nil, false
	}
	if err := schemas.Validate(jsonschemas.DzobsJob, blob); err != nil {
		return nil, false
	}

	var j job
	if err := json.Unmarshal(blob, &j); err != nil {
		return nil, false
	}
	return &j, true
}

// description joins the rich-text sections under the site's labels.
func (j *job) description() string {
	sections := []struct {
		label string
		raw   *string
	}{
		{"O kompaniji:", j.AboutCompany},
		{"Opis posla:", j.Description},
		{"Kvalifikacije:", j.Qualifications},
		{"Dodatne Informacije:", j.Additional},
	}

	var parts []string
	for _, s := range sections {
		if text := draftText(s.raw); text != "" {
			parts = append(parts, s.label+"\n"+text)
		}
	}
	return posting.CleanMultiline(strings.Join(parts, "\n\n"))
}

func (j *job) tags() []string {
	var out []string
	for _, t := range j.TagsList {
		if t.Name != nil && strings.TrimSpace(*t.Name) != "" {
			out = append(out, strings.TrimSpace(*t.Name))
		}
	}
	return out
}

func (j *job) applicationURL() string {
	if j.CTA == nil {
		return ""
	}
	cta := strings.TrimSpace(*j.CTA)
	if strings.HasPrefix(cta, "http") {
		return cta
	}
	return ""
}

// draftText returns the block texts of a Draft.js document joined by spaces.
func draftText(raw *string) string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return ""
	}
	var d draft
	if err := json.Unmarshal([]byte(*raw), &d); err != nil {
		return ""
	}
	var texts []string
	for _, b := range d.Blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}
