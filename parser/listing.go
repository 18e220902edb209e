// Package parser turns listing and detail page markup into typed records.
// Parsing is pure: input bytes plus the page URL, no network access.
package parser

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-games/models"
)

var titleIDPattern = regexp.MustCompile(`/title/(tt\d+)`)

// ParseListing extracts the ranked entries of one listing page in document
// order, plus the absolute URL of the next listing page. An empty next URL
// means pagination is exhausted. A non-empty page without the expected
// results container yields a schema mismatch error.
func ParseListing(body []byte, pageURL string) ([]models.ItemRef, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, "", err
	}

	container := doc.Find("ul.ipc-metadata-list").First()
	if container.Length() == 0 {
		container = doc.Find(".lister-list").First()
	}
	if container.Length() == 0 {
		// The source renders this marker instead of an empty list when a
		// query has no matches.
		if strings.Contains(string(body), "No results found.") {
			return nil, "", nil
		}
		return nil, "", &ParseError{Reason: ReasonSchemaMismatch, Page: pageURL}
	}

	var refs []models.ItemRef
	container.Find("li.ipc-metadata-list-summary-item, .lister-item").Each(func(i int, s *goquery.Selection) {
		link := s.Find("a.ipc-title-link-wrapper").First()
		if link.Length() == 0 {
			link = s.Find("h3 a").First()
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		m := titleIDPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}

		abs := href
		if u, err := base.Parse(href); err == nil {
			abs = u.String()
		}

		refs = append(refs, models.ItemRef{
			ID:   m[1],
			URL:  abs,
			Rank: rankFromHeading(s, i),
		})
	})

	if len(refs) == 0 {
		return nil, "", nil
	}

	next := ""
	nextLink := doc.Find("a.next-page").First()
	if nextLink.Length() == 0 {
		nextLink = doc.Find("a.lister-page-next").First()
	}
	if href, ok := nextLink.Attr("href"); ok && strings.TrimSpace(href) != "" {
		if u, err := base.Parse(href); err == nil {
			next = u.String()
		}
	}

	return refs, next, nil
}

// rankFromHeading reads the "12. Title" prefix of an entry heading. The
// listing position is the fallback when the prefix is absent.
func rankFromHeading(s *goquery.Selection, position int) int {
	heading := strings.TrimSpace(s.Find("h3.ipc-title__text").First().Text())
	if heading == "" {
		heading = strings.TrimSpace(s.Find("h3").First().Text())
	}
	if prefix, _, found := strings.Cut(heading, "."); found {
		if rank, err := strconv.Atoi(strings.TrimSpace(prefix)); err == nil && rank > 0 {
			return rank
		}
	}
	return position + 1
}
