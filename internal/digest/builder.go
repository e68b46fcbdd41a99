// Package digest renders and delivers the citation alert email.
package digest

import (
	"fmt"
	html "html/template"
	"strings"
	text "text/template"
)

// Item is one article entry in the digest, ranked by citation count.
type Item struct {
	Rank          int
	Title         string
	Journal       string
	ImpactFactor  string
	PublishedDate string
	PMID          string
	DOI           string
	CitationCount int
	Summary       string
	PubMedURL     string
}

// Digest is a fully rendered email, ready to send.
type Digest struct {
	Subject  string
	HTMLBody string
	TextBody string
}

type templateData struct {
	Period string
	Items  []Item
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Georgia, serif; max-width: 720px; margin: 0 auto; color: #1a1a1a;">
  <h2 style="border-bottom: 2px solid #2c5f8a; padding-bottom: 8px;">Highly Cited Articles</h2>
  <p>Articles published {{.Period}} that have crossed the citation threshold:</p>
  {{range .Items}}
  <div style="margin-bottom: 24px; padding: 12px; border-left: 3px solid #2c5f8a; background: #f7f9fb;">
    <h3 style="margin: 0 0 6px 0;">{{.Rank}}. <a href="{{.PubMedURL}}" style="color: #2c5f8a;">{{.Title}}</a></h3>
    <p style="margin: 4px 0; font-size: 14px; color: #555;">
      <em>{{.Journal}}</em> (IF: {{.ImpactFactor}}) &middot; Published {{.PublishedDate}} &middot; <strong>{{.CitationCount}} citations</strong>
    </p>
    <p style="margin: 4px 0; font-size: 13px; color: #777;">PMID: {{.PMID}}{{if .DOI}} &middot; DOI: {{.DOI}}{{end}}</p>
    <p style="margin: 8px 0 0 0;">{{.Summary}}</p>
  </div>
  {{end}}
  <p style="font-size: 12px; color: #999;">Generated by the citation alert service.</p>
</body>
</html>
`

const textTemplate = `HIGHLY CITED ARTICLES
Articles published {{.Period}} that have crossed the citation threshold:

{{range .Items}}{{.Rank}}. {{.Title}}
   Journal: {{.Journal}} (IF: {{.ImpactFactor}})
   Published: {{.PublishedDate}} | Citations: {{.CitationCount}}
   PMID: {{.PMID}}{{if .DOI}} | DOI: {{.DOI}}{{end}}
   Link: {{.PubMedURL}}
   {{.Summary}}

{{end}}Generated by the citation alert service.
`

// Builder renders the digest email from ranked items.
type Builder struct {
	htmlTmpl *html.Template
	textTmpl *text.Template
}

// NewBuilder parses the built-in templates. Template errors are programming
// errors, so this panics rather than returning one.
func NewBuilder() *Builder {
	return &Builder{
		htmlTmpl: html.Must(html.New("digest").Parse(htmlTemplate)),
		textTmpl: text.Must(text.New("digest").Parse(textTemplate)),
	}
}

// Build renders the digest for the given detection period label. Items are
// expected in rank order; ranks are assigned here so callers only sort.
func (b *Builder) Build(period string, items []Item) (*Digest, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("digest: no items to render")
	}

	for i := range items {
		items[i].Rank = i + 1
	}

	data := templateData{Period: period, Items: items}

	var htmlBuf strings.Builder
	if err := b.htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("digest: rendering html body: %w", err)
	}

	var textBuf strings.Builder
	if err := b.textTmpl.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("digest: rendering text body: %w", err)
	}

	return &Digest{
		Subject:  fmt.Sprintf("Citation alerts: %d highly cited articles (%s)", len(items), period),
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	}, nil
}
