// Package notion reads blog posts from a Notion database over the REST API.
package notion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"
	DefaultAuthor  = "CEO"

	pageSize = 100
)

var ErrNotConfigured = errors.New("notion: token and database id are required")

type Options struct {
	Token      string
	DatabaseID string
	BaseURL    string
	Version    string
	Timeout    time.Duration
	Retries    int
	Logger     *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Version == "" {
		o.Version = DefaultVersion
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// Source implements content.Source on top of a Notion database whose pages
// carry the blog's properties.
type Source struct {
	client     *httpx.Client
	token      string
	databaseID string
	logger     zerolog.Logger
}

var _ content.Source = (*Source)(nil)

func New(opts Options) (*Source, error) {
	opts = opts.withDefaults()
	if opts.Token == "" || opts.DatabaseID == "" {
		return nil, ErrNotConfigured
	}
	client := httpx.NewClient(
		httpx.WithBaseURL(opts.BaseURL),
		httpx.WithClientTimeout(opts.Timeout),
		httpx.WithRetries(opts.Retries),
		httpx.WithHeaders(map[string]string{
			"Notion-Version": opts.Version,
			"Content-Type":   "application/json",
		}),
	)
	return &Source{
		client:     client,
		token:      opts.Token,
		databaseID: opts.DatabaseID,
		logger:     *opts.Logger,
	}, nil
}

// Posts queries published pages, optionally filtered by category, newest
// first. Pages whose body cannot be read are logged and skipped.
func (s *Source) Posts(ctx context.Context, category content.Category) ([]content.Post, error) {
	pages, err := s.queryPages(ctx, category)
	if err != nil {
		return nil, err
	}

	posts := make([]content.Post, 0, len(pages))
	for _, p := range pages {
		body, err := s.pageContent(ctx, p.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Err(err).Str("page_id", p.ID).Msg("skipping page")
			continue
		}
		posts = append(posts, toPost(p, body))
	}
	return posts, nil
}

func (s *Source) queryPages(ctx context.Context, category content.Category) ([]page, error) {
	published := map[string]any{
		"property": "Publicado",
		"checkbox": map[string]any{"equals": true},
	}
	filter := published
	if category != "" && category != content.All {
		filter = map[string]any{
			"and": []any{
				published,
				map[string]any{
					"property": "Categoría",
					"select":   map[string]any{"equals": categoryName(category)},
				},
			},
		}
	}

	var pages []page
	cursor := ""
	for {
		req := map[string]any{
			"filter":    filter,
			"sorts":     []any{map[string]any{"property": "Fecha", "direction": "descending"}},
			"page_size": pageSize,
		}
		if cursor != "" {
			req["start_cursor"] = cursor
		}
		var resp queryResponse
		path := "/v1/databases/" + s.databaseID + "/query"
		if _, err := s.client.Post(ctx, path, req, &resp, httpx.WithBearer(s.token)); err != nil {
			return nil, fmt.Errorf("notion: query database: %w", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

func (s *Source) pageContent(ctx context.Context, pageID string) (string, error) {
	var lines []string
	cursor := ""
	for {
		query := map[string]string{"page_size": fmt.Sprint(pageSize)}
		if cursor != "" {
			query["start_cursor"] = cursor
		}
		var resp blocksResponse
		path := "/v1/blocks/" + pageID + "/children"
		if _, err := s.client.Get(ctx, path, &resp, httpx.WithBearer(s.token), httpx.WithQuery(query)); err != nil {
			return "", fmt.Errorf("notion: read blocks: %w", err)
		}
		for _, raw := range resp.Results {
			if line, ok := renderBlock(raw); ok {
				lines = append(lines, line)
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return strings.Join(lines, "\n\n"), nil
		}
		cursor = resp.NextCursor
	}
}

func categoryName(c content.Category) string {
	if c == content.Startup {
		return "Startup"
	}
	return "Personal"
}

var (
	slugStrip   = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces  = regexp.MustCompile(`[\s-]+`)
	diacritics  = runes.Remove(runes.In(unicode.Mn))
	foldToASCII = transform.Chain(norm.NFD, diacritics, norm.NFC)
)

// Slugify lowercases title, folds accents, drops anything that is not a
// letter, digit or space and joins words with dashes.
func Slugify(title string) string {
	folded, _, err := transform.String(foldToASCII, strings.ToLower(title))
	if err != nil {
		folded = strings.ToLower(title)
	}
	s := slugStrip.ReplaceAllString(folded, "")
	s = slugSpaces.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-")
}
