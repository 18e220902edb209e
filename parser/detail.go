package parser

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-games/models"
)

// Layouts accepted for release dates, most precise first. The canonical
// output keeps only the precision the source provided.
var releaseDateLayouts = []struct {
	in  string
	out string
}{
	{in: "January 2, 2006", out: "2006-01-02"},
	{in: "2 January 2006", out: "2006-01-02"},
	{in: "January 2006", out: "2006-01"},
	{in: "2006", out: "2006"},
}

// ParseDetail extracts one game record from a detail page. Every optional
// field is parsed independently and degrades to nil or empty on absence or
// malformed content; only a missing title fails the record.
func ParseDetail(body []byte, pageURL string) (*models.Game, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("span[data-testid='hero__primary-text']").First().Text())
	if title == "" {
		return nil, &ParseError{Reason: ReasonMissingRequiredField, Field: "title", Page: pageURL}
	}

	sourceURL := canonicalURL(doc)
	if sourceURL == "" {
		sourceURL = pageURL
	}
	if sourceURL == "" {
		return nil, &ParseError{Reason: ReasonMissingRequiredField, Field: "url", Page: pageURL}
	}

	game := &models.Game{
		ID:            titleID(sourceURL),
		Title:         title,
		ReleaseDate:   parseReleaseDate(doc.Find("li[data-testid='title-details-releasedate'] div a").First().Text()),
		Countries:     linkTexts(doc, "li[data-testid='title-details-origin'] a"),
		Languages:     linkTexts(doc, "li[data-testid='title-details-languages'] a"),
		Genres:        genres(doc),
		Companies:     linkTexts(doc, "li[data-testid='title-details-companies'] a"),
		OfficialSites: linkHrefs(doc, "li[data-testid='details-officialsites'] a"),
		TopCast:       linkTexts(doc, "a[data-testid='title-cast-item__actor']"),
		Rating:        parseRating(doc.Find("div[data-testid='hero-rating-bar__aggregate-rating__score'] span").First().Text()),
		URL:           sourceURL,
		PosterURL:     posterURL(doc),
	}
	game.Awards, game.Nominations = parseAwards(doc.Find("li[data-testid='award_information'] span").First().Text())
	return game, nil
}

func canonicalURL(doc *goquery.Document) string {
	if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	if content, ok := doc.Find("meta[property='og:url']").First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

func titleID(sourceURL string) string {
	if m := titleIDPattern.FindStringSubmatch(sourceURL); m != nil {
		return m[1]
	}
	return ""
}

func linkTexts(doc *goquery.Document, selector string) []string {
	var values []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			values = append(values, text)
		}
	})
	return values
}

func linkHrefs(doc *goquery.Document, selector string) []string {
	var values []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				values = append(values, href)
			}
		}
	})
	return values
}

func genres(doc *goquery.Document) []string {
	values := linkTexts(doc, "li[data-testid='storyline-genres'] a")
	if len(values) == 0 {
		values = linkTexts(doc, "div[data-testid='genres'] a span")
	}
	return values
}

func posterURL(doc *goquery.Document) *string {
	src, ok := doc.Find("div[data-testid='hero-media__poster'] img").First().Attr("src")
	if !ok {
		return nil
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return nil
	}
	return &src
}

// parseReleaseDate normalizes a textual release date, tolerating partial
// precision. A trailing release-region suffix like " (United States)" is
// stripped before matching. Unparseable input yields nil.
func parseReleaseDate(text string) *string {
	text = strings.TrimSpace(text)
	if cut, _, found := strings.Cut(text, " ("); found && cut != "" {
		text = cut
	}
	if text == "" {
		return nil
	}
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout.in, text); err == nil {
			normalized := t.Format(layout.out)
			return &normalized
		}
	}
	return nil
}

var awardCountPattern = regexp.MustCompile(`\d+`)

// parseAwards reads the awards summary line, rendered as "5 wins & 12
// nominations" or just "3 nominations". A single count reads as nominations
// with zero wins; an absent summary yields nils.
func parseAwards(text string) (awards, nominations *int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var counts []int
	for _, raw := range awardCountPattern.FindAllString(text, -1) {
		if value, err := strconv.Atoi(raw); err == nil {
			counts = append(counts, value)
		}
	}

	awardsCount, nominationsCount := 0, 0
	switch len(counts) {
	case 2:
		awardsCount, nominationsCount = counts[0], counts[1]
	case 1:
		nominationsCount = counts[0]
	}
	return &awardsCount, &nominationsCount
}

// parseRating converts the aggregate rating text to a float, rejecting
// values outside the [0,10] scale rather than clamping them in.
func parseRating(text string) *float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	// The hero rating renders as "8.3/10"; keep the leading number.
	if cut, _, found := strings.Cut(text, "/"); found {
		text = cut
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || value < 0 || value > 10 {
		return nil
	}
	return &value
}
