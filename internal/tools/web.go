package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/browse"
	"github.com/rodpglo1956/GloJohnStocky/internal/search"
)

// Page content fed back to the model is capped to keep the context window sane.
const maxPageRunes = 20000

// Searcher is the web-search surface. *search.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]search.WebResult, error)
}

// Renderer is the headless-browser surface, for pages that need JavaScript.
// *browse.Client satisfies it.
type Renderer interface {
	Content(ctx context.Context, pageURL string) (string, error)
}

// WebTools exposes web search, plain page fetching, and browser-rendered
// fetching. The renderer may be nil, in which case the browser tools are
// omitted from the catalog.
func WebTools(searcher Searcher, renderer Renderer) []Definition {
	defs := []Definition{
		{
			Spec: anthropic.Tool{
				Name:        "web_search",
				Description: "Search the web. Returns titles, URLs and snippets.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"query": strProp("Search query."),
					"count": numProp("Number of results. Defaults to 5."),
				}, "query"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				query, err := requireString(input, "query")
				if err != nil {
					return "", err
				}
				results, err := searcher.Search(ctx, query, intArg(input, "count", 5))
				if err != nil {
					return "", fmt.Errorf("searching: %w", err)
				}
				if len(results) == 0 {
					return "No results.", nil
				}
				var b strings.Builder
				for i, r := range results {
					fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Description)
				}
				return b.String(), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "fetch_page",
				Description: "Fetch a web page and return its readable text. Does not execute JavaScript; use browse_page for pages that need it.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"url": strProp("Page URL."),
				}, "url"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				pageURL, err := requireString(input, "url")
				if err != nil {
					return "", err
				}
				text, err := search.FetchReadable(ctx, pageURL, maxPageRunes)
				if err != nil {
					return "", fmt.Errorf("fetching page: %w", err)
				}
				if text == "" {
					return "Page contained no readable text.", nil
				}
				return text, nil
			},
		},
	}

	if renderer == nil {
		return defs
	}

	return append(defs,
		Definition{
			Spec: anthropic.Tool{
				Name:        "browse_page",
				Description: "Load a page in a headless browser, wait for JavaScript, and return its readable text.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"url": strProp("Page URL."),
				}, "url"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				pageURL, err := requireString(input, "url")
				if err != nil {
					return "", err
				}
				htmlStr, err := renderer.Content(ctx, pageURL)
				if err != nil {
					return "", fmt.Errorf("rendering page: %w", err)
				}
				text, err := search.ExtractText(strings.NewReader(htmlStr))
				if err != nil {
					return "", fmt.Errorf("extracting text: %w", err)
				}
				if runes := []rune(text); len(runes) > maxPageRunes {
					text = string(runes[:maxPageRunes])
				}
				if text == "" {
					return "Page contained no readable text.", nil
				}
				return text, nil
			},
		},
		Definition{
			Spec: anthropic.Tool{
				Name:        "find_login_form",
				Description: "Load a page in a headless browser and locate its login form: the form action and the username and password field names.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"url": strProp("Page URL."),
				}, "url"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				pageURL, err := requireString(input, "url")
				if err != nil {
					return "", err
				}
				htmlStr, err := renderer.Content(ctx, pageURL)
				if err != nil {
					return "", fmt.Errorf("rendering page: %w", err)
				}
				form, ok := browse.FindLoginForm(htmlStr)
				if !ok {
					return "No login form found on the page.", nil
				}
				return fmt.Sprintf("action: %s\nusername field: %s\npassword field: %s",
					form.Action, form.UsernameField, form.PasswordField), nil
			},
		},
	)
}
