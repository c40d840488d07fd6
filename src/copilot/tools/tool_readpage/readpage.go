package tool_readpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/copilot/toolsutil"
)

const Name = "readPage"

const description = `Read a web page and return its content as markdown or plain text. Use it to read articles, token websites, docs or announcements the user links to.
Only http and https URLs are supported and at most 5MB is read. Scripts and styles are removed.`

const (
	defaultTimeout = 30
	maxTimeout     = 120
	// MaxContentLength caps the returned content so one page cannot fill
	// the context.
	MaxContentLength = 20000
)

type Input struct {
	URL     string `json:"url" required:"true" description:"The URL to read"`
	Format  string `json:"format,omitempty" description:"markdown (default) or text" enum:"markdown,text"`
	Timeout int    `json:"timeout,omitempty" description:"Optional timeout in seconds (max 120, default 30)"`
}

type Output struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	ContentType string `json:"contentType,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
}

// Tool returns the readPage tool. A nil client uses a client with the
// requested timeout.
func Tool(client *http.Client) (agent.Tool, error) {
	return agent.NewGenericTool(Name, description, func(ctx context.Context, caller *agent.Caller, input Input) (Output, error) {
		return read(ctx, client, input)
	})
}

func read(ctx context.Context, client *http.Client, input Input) (Output, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "text" {
		return Output{}, fmt.Errorf("format must be one of: markdown, text")
	}
	if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
		return Output{}, fmt.Errorf("URL must start with http:// or https://")
	}

	if input.Timeout <= 0 {
		input.Timeout = defaultTimeout
	} else if input.Timeout > maxTimeout {
		input.Timeout = maxTimeout
	}
	if client == nil {
		client = &http.Client{
			Timeout: time.Duration(input.Timeout) * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return Output{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "dextra/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, toolsutil.MaxResponseSize))
	if err != nil {
		return Output{}, fmt.Errorf("failed to read response: %w", err)
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")
	out := Output{URL: resp.Request.URL.String(), ContentType: contentType}

	if strings.Contains(contentType, "text/html") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return Output{}, fmt.Errorf("failed to parse HTML: %w", err)
		}
		doc.Find("script, style, noscript").Remove()
		out.Title = strings.TrimSpace(doc.Find("title").First().Text())

		switch format {
		case "text":
			out.Content = pageText(doc)
		case "markdown":
			doc.Find("head").Remove()
			out.Content = pageMarkdown(doc)
		}
	} else if format == "markdown" && strings.Contains(contentType, "application/json") {
		out.Content = "```json\n" + content + "\n```"
	} else {
		out.Content = content
	}

	if r := []rune(out.Content); len(r) > MaxContentLength {
		out.Content = string(r[:MaxContentLength])
		out.Truncated = true
	}

	toolsutil.GetLogger().Info("read page",
		"url", input.URL,
		"status", resp.StatusCode,
		"size", len(body),
		"format", format,
	)
	return out, nil
}

func pageText(doc *goquery.Document) string {
	var cleaned []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n")
}

func pageMarkdown(doc *goquery.Document) string {
	converter := md.NewConverter("", true, nil)
	markdown := converter.Convert(doc.Selection)
	markdown = strings.TrimSpace(markdown)
	for strings.Contains(markdown, "\n\n\n") {
		markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	}
	return markdown
}
