package scrape

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/product-research/internal/model"
)

// DefaultMaxImagesPerPage caps the images kept from a single page.
const DefaultMaxImagesPerPage = 10

var (
	markdownImageRe = regexp.MustCompile(`!\[([^\]]*)\]\((\S+?)(?:\s+"[^"]*")?\)`)

	skippedExtensions = []string{".svg", ".gif", ".ico"}
	skippedNameParts  = []string{"icon", "logo", "sprite", "pixel", "placeholder", "spacer", "badge", "avatar"}
)

// HTMLImages discovers images in an HTML document: social preview meta
// tags first, then <img> elements (src, data-src and the last srcset
// candidate). Relative URLs are resolved against pageURL.
func HTMLImages(doc *goquery.Document, pageURL string) []model.Image {
	var images []model.Image
	add := func(raw, alt string) {
		if abs := resolveURL(pageURL, raw); abs != "" {
			images = append(images, model.Image{URL: abs, Alt: strings.TrimSpace(alt), SourceURL: pageURL})
		}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	for _, sel := range []string{`meta[property="og:image"]`, `meta[property="og:image:secure_url"]`, `meta[name="twitter:image"]`} {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			add(s.AttrOr("content", ""), title)
		})
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt := s.AttrOr("alt", "")
		switch {
		case s.AttrOr("data-src", "") != "":
			add(s.AttrOr("data-src", ""), alt)
		case s.AttrOr("src", "") != "" && !strings.HasPrefix(s.AttrOr("src", ""), "data:"):
			add(s.AttrOr("src", ""), alt)
		case s.AttrOr("srcset", "") != "":
			add(largestSrcset(s.AttrOr("srcset", "")), alt)
		}
	})
	return images
}

// MarkdownImages discovers ![alt](url) references in markdown content.
func MarkdownImages(markdown, pageURL string) []model.Image {
	var images []model.Image
	for _, m := range markdownImageRe.FindAllStringSubmatch(markdown, -1) {
		if abs := resolveURL(pageURL, m[2]); abs != "" {
			images = append(images, model.Image{URL: abs, Alt: strings.TrimSpace(m[1]), SourceURL: pageURL})
		}
	}
	return images
}

// FilterImages drops unusable candidates, removes duplicates, ranks images
// whose alt text or path mention the product first, and caps the result.
// Order is otherwise preserved.
func FilterImages(images []model.Image, productHint string, limit int) []model.Image {
	if limit <= 0 {
		limit = DefaultMaxImagesPerPage
	}

	seen := make(map[string]struct{}, len(images))
	kept := make([]model.Image, 0, len(images))
	for _, img := range images {
		if !usableImage(img.URL) {
			continue
		}
		if _, dup := seen[img.URL]; dup {
			continue
		}
		seen[img.URL] = struct{}{}
		kept = append(kept, img)
	}

	terms := hintTerms(productHint)
	if len(terms) > 0 {
		sort.SliceStable(kept, func(i, j int) bool {
			return matchesHint(kept[i], terms) && !matchesHint(kept[j], terms)
		})
	}

	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func usableImage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(p, ext) {
			return false
		}
	}
	name := path.Base(p)
	for _, part := range skippedNameParts {
		if strings.Contains(name, part) {
			return false
		}
	}
	return true
}

func hintTerms(hint string) []string {
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(hint), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func matchesHint(img model.Image, terms []string) bool {
	haystack := strings.ToLower(img.Alt + " " + img.URL)
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(r).String()
}

// largestSrcset returns the last candidate of a srcset, which by
// convention is the widest.
func largestSrcset(srcset string) string {
	candidates := strings.Split(srcset, ",")
	for i := len(candidates) - 1; i >= 0; i-- {
		if fields := strings.Fields(candidates[i]); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}
