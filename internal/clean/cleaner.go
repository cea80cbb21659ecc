// Package clean reduces scraped HTML or markdown to the plain text the
// language model collaborators read.
package clean

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxChars bounds cleaned output.
const DefaultMaxChars = 60000

// noiseSelectors are removed from HTML before conversion.
const noiseSelectors = "script, style, noscript, template, nav, header, footer, aside, form, iframe, svg, " +
	"[role=navigation], [aria-hidden=true], [class*=cookie], [id*=cookie], [class*=newsletter]"

var (
	htmlTagRe       = regexp.MustCompile(`(?is)<(html|body|div|p|span|head|!doctype)[\s>]`)
	imageLineRe     = regexp.MustCompile(`^(?:[-*+]\s*)?(?:\[?!\[[^\]]*\]\([^)]*\)\]?(?:\([^)]*\))?\s*)+$`)
	linkLineRe      = regexp.MustCompile(`^(?:[-*+]\s*)?\[[^\]]*\]\([^)]*\)$`)
	inlineImageRe   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	spaceRunRe      = regexp.MustCompile(`[ \t\x{00A0}]+`)
	blankLineRunRe  = regexp.MustCompile(`\n{3,}`)
	boilerplateLine = []string{
		"accept all cookies",
		"we use cookies",
		"cookie policy",
		"subscribe to our newsletter",
		"sign up for our newsletter",
		"follow us on",
		"share on facebook",
		"share on twitter",
		"skip to main content",
		"skip to content",
		"all rights reserved",
	}
)

// Cleaner implements content cleaning for pages and search results.
type Cleaner struct {
	maxChars int
}

// New returns a Cleaner that truncates output to maxChars runes. Zero uses
// DefaultMaxChars.
func New(maxChars int) *Cleaner {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Cleaner{maxChars: maxChars}
}

// Clean converts HTML to markdown when needed, strips navigation and
// boilerplate, normalizes Unicode and whitespace, and truncates.
func (c *Cleaner) Clean(_ context.Context, content string) (string, error) {
	text := content
	if LooksLikeHTML(content) {
		converted, err := htmlToMarkdown(content)
		if err != nil {
			return "", err
		}
		text = converted
	}

	text = norm.NFC.String(text)
	text = stripLines(text)
	text = blankLineRunRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > c.maxChars {
		text = string([]rune(text)[:c.maxChars])
	}
	return text, nil
}

// LooksLikeHTML reports whether content appears to be an HTML document or
// fragment rather than markdown or plain text.
func LooksLikeHTML(content string) bool {
	head := content
	if len(head) > 2048 {
		head = head[:2048]
	}
	return htmlTagRe.MatchString(head)
}

func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "clean: parse html")
	}
	doc.Find(noiseSelectors).Remove()

	root := doc.Selection
	if main := doc.Find("main, article, [role=main]").First(); main.Length() > 0 &&
		len(strings.TrimSpace(main.Text())) >= 200 {
		root = main
	}

	fragment, err := goquery.OuterHtml(root)
	if err != nil {
		return "", eris.Wrap(err, "clean: render html")
	}

	converted, err := md.NewConverter("", true, nil).ConvertString(fragment)
	if err != nil {
		return "", eris.Wrap(err, "clean: convert html to markdown")
	}
	return converted, nil
}

func stripLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
		if line == "" {
			out = append(out, "")
			continue
		}
		if imageLineRe.MatchString(line) || linkLineRe.MatchString(line) || isBoilerplate(line) {
			continue
		}
		line = strings.TrimSpace(inlineImageRe.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func isBoilerplate(line string) bool {
	if len(line) > 200 {
		return false
	}
	lower := strings.ToLower(line)
	for _, p := range boilerplateLine {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
