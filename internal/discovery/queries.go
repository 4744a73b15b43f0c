package discovery

import (
	"net/url"
)

// Queries builds "{location} {industry} {job}" for every keyword combination, locations
// outermost. max <= 0 returns them all.
func Queries(locations, industries, jobs []string, max int) []string {
	var queries []string
	for _, loc := range locations {
		for _, ind := range industries {
			for _, job := range jobs {
				queries = append(queries, loc+" "+ind+" "+job)
			}
		}
	}
	if max > 0 && len(queries) > max {
		queries = queries[:max]
	}
	return queries
}

// SearchURL appends the query (and the engine, when set) to the search base URL.
func SearchURL(baseURL, engine, query string) string {
	params := url.Values{}
	params.Set("q", query)
	if engine != "" {
		params.Set("engine", engine)
	}
	return baseURL + "?" + params.Encode()
}
