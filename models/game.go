// Package models defines data structures for the scraper.
package models

import "time"

// ItemRef points at one ranked entry discovered on a listing page.
// It lives only for the duration of a page batch.
type ItemRef struct {
	ID   string
	URL  string
	Rank int
}

// Game represents one video game record in the dataset. Optional fields are
// pointers so JSON output carries an explicit null when a field was not
// collected.
type Game struct {
	ID            string   `csv:"id" json:"id"`
	Rank          int      `csv:"rank" json:"rank"`
	Title         string   `csv:"title" json:"title"`
	ReleaseDate   *string  `csv:"release_date" json:"release_date"`
	Countries     []string `csv:"countries" json:"countries"`
	Languages     []string `csv:"languages" json:"languages"`
	Genres        []string `csv:"genres" json:"genres"`
	Companies     []string `csv:"companies" json:"companies"`
	OfficialSites []string `csv:"official_sites" json:"official_sites"`
	TopCast       []string `csv:"top_cast" json:"top_cast"`
	Rating        *float64 `csv:"rating" json:"rating"`
	Awards        *int     `csv:"awards" json:"awards"`
	Nominations   *int     `csv:"nominations" json:"nominations"`
	URL           string   `csv:"url" json:"url"`
	PosterURL     *string  `csv:"poster_url" json:"poster_url"`
	PosterFile    *string  `csv:"poster_file" json:"poster_file"`
}

// RunSummary holds the overall result of a scraping run.
type RunSummary struct {
	ItemsCollected   int
	ItemsFailed      int
	ImagesDownloaded int
	ImagesFailed     int
	PagesFetched     int
	Retries          int
	StartTime        time.Time
	EndTime          time.Time
}
