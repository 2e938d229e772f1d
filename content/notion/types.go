package notion

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pipeaalzamora/el-blog-del-ceo/content"
)

type queryResponse struct {
	Results    []page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

type blocksResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}

type page struct {
	ID             string              `json:"id"`
	CreatedTime    time.Time           `json:"created_time"`
	LastEditedTime time.Time           `json:"last_edited_time"`
	Cover          *file               `json:"cover"`
	Properties     map[string]property `json:"properties"`
}

type file struct {
	Type     string `json:"type"`
	File     *link  `json:"file"`
	External *link  `json:"external"`
}

type link struct {
	URL string `json:"url"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type option struct {
	Name string `json:"name"`
}

type property struct {
	Type        string     `json:"type"`
	Title       []richText `json:"title"`
	RichText    []richText `json:"rich_text"`
	Select      *option    `json:"select"`
	MultiSelect []option   `json:"multi_select"`
	Date        *struct {
		Start string `json:"start"`
	} `json:"date"`
	Checkbox bool   `json:"checkbox"`
	URL      string `json:"url"`
}

func plain(parts []richText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return b.String()
}

func (p property) text() string {
	switch p.Type {
	case "title":
		return plain(p.Title)
	case "rich_text":
		return plain(p.RichText)
	case "select":
		if p.Select != nil {
			return p.Select.Name
		}
	case "url":
		return p.URL
	case "date":
		if p.Date != nil {
			return p.Date.Start
		}
	}
	return ""
}

func (p property) names() []string {
	if p.Type != "multi_select" {
		return nil
	}
	out := make([]string, 0, len(p.MultiSelect))
	for _, o := range p.MultiSelect {
		out = append(out, o.Name)
	}
	return out
}

// lookup returns the first property present under any of names. Databases
// use either the Spanish or the English column names.
func (p page) lookup(names ...string) (property, bool) {
	for _, n := range names {
		if prop, ok := p.Properties[n]; ok {
			return prop, true
		}
	}
	return property{}, false
}

func (p page) text(names ...string) string {
	prop, _ := p.lookup(names...)
	return strings.TrimSpace(prop.text())
}

func (p page) coverURL() string {
	if p.Cover == nil {
		return ""
	}
	if p.Cover.Type == "file" && p.Cover.File != nil {
		return p.Cover.File.URL
	}
	if p.Cover.External != nil {
		return p.Cover.External.URL
	}
	return ""
}

func toPost(p page, body string) content.Post {
	title := p.text("Título", "Title", "title")
	author := p.text("Autor", "Author", "author")
	if author == "" {
		author = DefaultAuthor
	}
	category := content.Personal
	if strings.EqualFold(p.text("Categoría", "Category", "category"), "startup") {
		category = content.Startup
	}
	tagsProp, _ := p.lookup("Tags", "tags", "Etiquetas")
	tags := tagsProp.names()
	if tags == nil {
		tags = []string{}
	}
	featuredProp, _ := p.lookup("Destacado", "Featured", "featured")

	published := p.CreatedTime
	if raw := p.text("Fecha", "Date", "date"); raw != "" {
		if t, err := parseDate(raw); err == nil {
			published = t
		}
	}

	return content.Post{
		ID:          p.ID,
		Title:       title,
		Slug:        Slugify(title),
		Excerpt:     p.text("Resumen", "Excerpt", "excerpt"),
		Content:     body,
		PublishedAt: published.UTC(),
		UpdatedAt:   p.LastEditedTime.UTC(),
		Author:      author,
		Category:    category,
		Tags:        tags,
		Featured:    featuredProp.Type == "checkbox" && featuredProp.Checkbox,
		CoverImage:  p.coverURL(),
		ReadingTime: content.ReadingTime(body),
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

var blockPrefix = map[string]string{
	"heading_1":          "# ",
	"heading_2":          "## ",
	"heading_3":          "### ",
	"bulleted_list_item": "- ",
	"numbered_list_item": "1. ",
	"quote":              "> ",
	"to_do":              "- [ ] ",
	"paragraph":          "",
	"callout":            "",
	"code":               "",
}

// renderBlock flattens a text-bearing block to one markdown-ish line.
// Blocks without rich text, such as images or dividers, are dropped.
func renderBlock(raw json.RawMessage) (string, bool) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", false
	}
	prefix, ok := blockPrefix[head.Type]
	if !ok {
		return "", false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", false
	}
	var body struct {
		RichText []richText `json:"rich_text"`
		Language string     `json:"language"`
	}
	if err := json.Unmarshal(fields[head.Type], &body); err != nil {
		return "", false
	}
	text := plain(body.RichText)
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	if head.Type == "code" {
		return "```" + body.Language + "\n" + text + "\n```", true
	}
	return prefix + text, true
}
