package notice

import (
	"bytes"
	"context"
	"html/template"

	"github.com/microcosm-cc/bluemonday"

	widgetModels "consentd/internal/widget/models"
)

const noticeTemplate = `<section class="privacy-notice" data-domain="{{.Domain}}">
<h2>Privacy notice for {{.Domain}}</h2>
{{range .Activities}}<article class="activity" data-activity-id="{{.ID}}">
<h3>{{.Name}}</h3>
{{if .Description}}<p>{{.Description}}</p>{{end}}
{{if .Purposes}}<ul class="purposes">{{range .Purposes}}<li data-purpose-id="{{.ID}}">{{.Name}}{{if .Description}}: {{.Description}}{{end}}</li>{{end}}</ul>{{end}}
{{if .DataCategories}}<p class="data-categories">Data collected: {{range $i, $c := .DataCategories}}{{if $i}}, {{end}}{{$c}}{{end}}</p>{{end}}
</article>
{{end}}</section>`

// TemplateRenderer renders the notice from the widget's activity list.
type TemplateRenderer struct {
	tmpl *template.Template
}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{tmpl: template.Must(template.New("notice").Parse(noticeTemplate))}
}

// GeneratePrivacyNoticeHTML renders activities for domain.
func (r *TemplateRenderer) GeneratePrivacyNoticeHTML(ctx context.Context, activities []widgetModels.Activity, domain string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Domain     string
		Activities []widgetModels.Activity
	}{Domain: domain, Activities: activities})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PolicySanitizer strips anything outside the user-generated-content policy.
type PolicySanitizer struct {
	policy *bluemonday.Policy
}

func NewPolicySanitizer() *PolicySanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowDataAttributes()
	p.AllowAttrs("class").Globally()
	p.AllowElements("section", "article")
	return &PolicySanitizer{policy: p}
}

func (s *PolicySanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
