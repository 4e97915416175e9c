// Package tmdb wraps the TMDB API for listing upcoming titles and fetching
// credits, genres and details.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

const retryAttempts = 3

type Client struct {
	apiKey    string
	readToken string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
}

type Option func(*Client)

// WithBaseURL points the client at a different API host. Used by tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(apiKey, readToken string, opts ...Option) *Client {
	if strings.TrimSpace(readToken) == "" && looksLikeJWT(apiKey) {
		readToken = apiKey
		apiKey = ""
	}
	c := &Client{
		apiKey:    apiKey,
		readToken: readToken,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		// TMDB allows ~50 req/s; stay well under it.
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenreIDList decodes the upstream genre_ids field, which arrives either as
// a plain array ([28, 12]) or as an index-keyed object ({"0": 28, "1": 12})
// depending on the feed. Both normalize to an ordered []int64.
type GenreIDList []int64

func (g *GenreIDList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*g = nil
		return nil
	}

	var asList []int64
	if err := json.Unmarshal(data, &asList); err == nil {
		*g = asList
		return nil
	}

	var asMap map[string]int64
	if err := json.Unmarshal(data, &asMap); err != nil {
		return fmt.Errorf("genre_ids: unsupported shape: %w", err)
	}

	keys := make([]string, 0, len(asMap))
	for k := range asMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		if aerr != nil || berr != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		out = append(out, asMap[k])
	}
	*g = out
	return nil
}

// ListingItem is one row of a paged listing response.
type ListingItem struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Name         string      `json:"name"`
	Overview     string      `json:"overview"`
	PosterPath   string      `json:"poster_path"`
	ReleaseDate  string      `json:"release_date"`
	FirstAirDate string      `json:"first_air_date"`
	GenreIDs     GenreIDList `json:"genre_ids"`
}

// DisplayTitle prefers the movie title and falls back to the TV name.
func (it ListingItem) DisplayTitle() string {
	if it.Title != "" {
		return it.Title
	}
	return it.Name
}

type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
}

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Detail struct {
	TMDBID      int64
	MediaType   string
	Title       string
	Tagline     string
	Overview    string
	PosterPath  string
	ReleaseDate string
	Runtime     int
	VoteAverage float64
	VoteCount   int
	Genres      []string
	Director    string
	TrailerURL  string
}

type listingResponse struct {
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
	Results      []ListingItem `json:"results"`
}

type creditsResponse struct {
	ID   int64        `json:"id"`
	Cast []CastMember `json:"cast"`
	Crew []struct {
		Name string `json:"name"`
		Job  string `json:"job"`
	} `json:"crew"`
}

type genreListResponse struct {
	Genres []Genre `json:"genres"`
}

type detailResponse struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Tagline      string  `json:"tagline"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Runtime      int     `json:"runtime"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Genres       []Genre `json:"genres"`
	Credits      struct {
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	Videos struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
}

// Upcoming fetches one page of the upcoming-movies listing.
func (c *Client) Upcoming(ctx context.Context, page int) ([]ListingItem, error) {
	if page < 1 {
		page = 1
	}
	values := url.Values{}
	values.Set("language", "en-US")
	values.Set("page", strconv.Itoa(page))

	var payload listingResponse
	if err := c.getJSON(ctx, "/movie/upcoming", values, &payload); err != nil {
		return nil, fmt.Errorf("tmdb upcoming page %d: %w", page, err)
	}
	return payload.Results, nil
}

// Credits fetches the billed cast for a movie, in billing order.
func (c *Client) Credits(ctx context.Context, id int64) ([]CastMember, error) {
	values := url.Values{}
	values.Set("language", "en-US")

	var payload creditsResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/credits", id), values, &payload); err != nil {
		return nil, fmt.Errorf("tmdb credits for %d: %w", id, err)
	}
	return payload.Cast, nil
}

// GenreTaxonomy returns the id→name genre mapping merged across movie and tv.
func (c *Client) GenreTaxonomy(ctx context.Context) (map[int64]string, error) {
	out := make(map[int64]string)
	for _, path := range []string{"/genre/movie/list", "/genre/tv/list"} {
		var payload genreListResponse
		if err := c.getJSON(ctx, path, url.Values{}, &payload); err != nil {
			return nil, fmt.Errorf("tmdb genres %s: %w", path, err)
		}
		for _, g := range payload.Genres {
			if strings.TrimSpace(g.Name) == "" {
				continue
			}
			out[g.ID] = g.Name
		}
	}
	return out, nil
}

// Details fetches the full detail view for one title, with credits and
// videos appended. Used by the detail page, not persisted.
func (c *Client) Details(ctx context.Context, mediaType string, id int64) (*Detail, error) {
	if mediaType != "movie" && mediaType != "tv" {
		return nil, errors.New("invalid media type")
	}
	values := url.Values{}
	values.Set("append_to_response", "credits,videos")

	var payload detailResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/%d", mediaType, id), values, &payload); err != nil {
		return nil, fmt.Errorf("tmdb details for %s/%d: %w", mediaType, id, err)
	}

	detail := &Detail{
		TMDBID:      payload.ID,
		MediaType:   mediaType,
		Tagline:     payload.Tagline,
		Overview:    payload.Overview,
		PosterPath:  payload.PosterPath,
		Runtime:     payload.Runtime,
		VoteAverage: payload.VoteAverage,
		VoteCount:   payload.VoteCount,
	}
	if mediaType == "tv" {
		detail.Title = payload.Name
		detail.ReleaseDate = payload.FirstAirDate
	} else {
		detail.Title = payload.Title
		detail.ReleaseDate = payload.ReleaseDate
	}
	for _, g := range payload.Genres {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		detail.Genres = append(detail.Genres, g.Name)
	}
	for _, member := range payload.Credits.Crew {
		if member.Job == "Director" {
			detail.Director = member.Name
			break
		}
	}
	for _, v := range payload.Videos.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" {
			detail.TrailerURL = "https://www.youtube.com/watch?v=" + v.Key
			break
		}
	}
	return detail, nil
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, dst any) error {
	if c.apiKey != "" {
		values.Set("api_key", c.apiKey)
	}
	endpoint := c.baseURL + path + "?" + values.Encode()

	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.applyAuth(req)

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			if resp.StatusCode >= 400 {
				statusErr := fmt.Errorf("request failed: %s", resp.Status)
				if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					statusErr = retry.Unrecoverable(statusErr)
				}
				if cerr := resp.Body.Close(); cerr != nil {
					return errors.Join(statusErr, cerr)
				}
				return statusErr
			}

			if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
				if cerr := resp.Body.Close(); cerr != nil {
					return retry.Unrecoverable(errors.Join(err, cerr))
				}
				return retry.Unrecoverable(err)
			}
			return resp.Body.Close()
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(250*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) applyAuth(req *http.Request) {
	if strings.TrimSpace(c.readToken) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.readToken))
}

func looksLikeJWT(token string) bool {
	parts := strings.Split(strings.TrimSpace(token), ".")
	return len(parts) == 3 && len(token) > 80
}
