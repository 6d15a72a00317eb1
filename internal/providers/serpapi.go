package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const serpBaseURL = "https://serpapi.com/search.json"

// SerpAPI performs Google searches through serpapi.com and returns organic
// results. A client with no API key is valid and returns no results, so web
// search degrades to plain generation when the key is not configured.
type SerpAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ WebSearcher = (*SerpAPI)(nil)

type SerpAPIOption func(*SerpAPI)

// WithSerpBaseURL overrides the endpoint, used by tests.
func WithSerpBaseURL(u string) SerpAPIOption {
	return func(s *SerpAPI) { s.baseURL = u }
}

func NewSerpAPI(apiKey string, opts ...SerpAPIOption) *SerpAPI {
	s := &SerpAPI{
		apiKey:  apiKey,
		baseURL: serpBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type serpResponse struct {
	OrganicResults []struct {
		Title         string `json:"title"`
		Link          string `json:"link"`
		Snippet       string `json:"snippet"`
		DisplayedLink string `json:"displayed_link"`
	} `json:"organic_results"`
}

func (s *SerpAPI) SearchWeb(ctx context.Context, query string, numResults int) ([]WebResult, error) {
	if s.apiKey == "" {
		log.Printf("serpapi: key not configured; web search unavailable")
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(numResults))
	params.Set("engine", "google")
	params.Set("hl", "en")
	params.Set("gl", "us")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build search request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "web search request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	var payload serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode search response")
	}

	results := make([]WebResult, 0, numResults)
	for _, r := range payload.OrganicResults {
		if len(results) >= numResults {
			break
		}
		results = append(results, WebResult{
			Title:         r.Title,
			Link:          r.Link,
			Snippet:       r.Snippet,
			DisplayedLink: r.DisplayedLink,
		})
	}
	return results, nil
}
