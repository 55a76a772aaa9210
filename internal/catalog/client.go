package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"nextplay/internal/models"
	"nextplay/internal/util"
)

// Operation names attached to gateway errors.
const (
	OpSignUp               = "signUp"
	OpFetchCatalog         = "fetchCatalog"
	OpFetchPopular         = "fetchPopular"
	OpFetchRecommendations = "fetchRecommendations"
	OpFetchUserGames       = "fetchUserGames"
	OpFetchLiked           = "fetchLiked"
	OpSubmitRating         = "submitRating"
)

// OpError is the uniform failure shape for gateway calls: either a
// transport error (Status 0) or a non-2xx response. The gateway never
// retries; duplicate mutations would be worse than a surfaced failure.
type OpError struct {
	Op     string
	Status int
	Err    error
}

func (e *OpError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Observer receives one sample per gateway request. Status is 0 when the
// request never produced a response.
type Observer interface {
	ObserveGatewayRequest(op string, status int, elapsed time.Duration)
}

// Client is the typed gateway to the remote catalog/recommendation
// service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetObserver wires a metrics sink. A nil observer disables observation.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// wireID tolerates the service sending ids as JSON numbers or strings.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*id = wireID(s)
	return nil
}

type wireGame struct {
	ID              wireID   `json:"id"`
	GameID          wireID   `json:"game_id"`
	Name            string   `json:"name"`
	Genres          []string `json:"genres"`
	ImageURL        string   `json:"image_url"`
	Description     string   `json:"description"`
	PopularityScore *float64 `json:"popularity_score"`
	AverageRating   *float64 `json:"average_rating"`
	RatingCount     *int     `json:"rating_count"`
}

func (w wireGame) toGame() models.Game {
	id := string(w.ID)
	if id == "" {
		id = string(w.GameID)
	}
	return models.Game{
		ID:              id,
		Name:            w.Name,
		Genres:          w.Genres,
		CoverURL:        w.ImageURL,
		Description:     w.Description,
		PopularityScore: w.PopularityScore,
		AverageRating:   w.AverageRating,
		RatingCount:     w.RatingCount,
	}
}

type signUpRequest struct {
	Name string `json:"name"`
}

type signUpResponse struct {
	UserID wireID `json:"user_id"`
}

type ratingRequest struct {
	GameID string  `json:"game_id"`
	Rating float64 `json:"rating"`
}

// userGameRow is the flat shape of /user/{id}/games.
type userGameRow struct {
	wireGame
	Rating float64 `json:"rating"`
}

// likedRow is the nested shape of /user/{id}/liked.
type likedRow struct {
	Game   wireGame `json:"game"`
	Rating float64  `json:"rating"`
}

// SignUp registers a name with the service and returns the assigned
// opaque identity.
func (c *Client) SignUp(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.ErrEmptyName
	}
	var resp signUpResponse
	if err := c.post(ctx, OpSignUp, "/signup", signUpRequest{Name: name}, &resp); err != nil {
		return "", err
	}
	return string(resp.UserID), nil
}

// FetchCatalog returns the full browsable catalog.
func (c *Client) FetchCatalog(ctx context.Context) ([]models.CatalogItem, error) {
	return c.fetchGames(ctx, OpFetchCatalog, "/games")
}

// FetchPopular returns the corpus-wide popularity ranking.
func (c *Client) FetchPopular(ctx context.Context) ([]models.CatalogItem, error) {
	return c.fetchGames(ctx, OpFetchPopular, "/popular")
}

// FetchRecommendations returns the personalized ranking for userID.
func (c *Client) FetchRecommendations(ctx context.Context, userID string) ([]models.CatalogItem, error) {
	return c.fetchGames(ctx, OpFetchRecommendations, "/recommend/"+url.PathEscape(userID))
}

// FetchUserGames returns every game the person has rated, with ratings.
func (c *Client) FetchUserGames(ctx context.Context, userID string) ([]models.CatalogItem, error) {
	var rows []userGameRow
	if err := c.get(ctx, OpFetchUserGames, "/user/"+url.PathEscape(userID)+"/games", &rows); err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r userGameRow, _ int) models.CatalogItem {
		return models.CatalogItem{Game: r.toGame(), UserRating: r.Rating}
	}), nil
}

// FetchLiked returns the games the person rated above the service's like
// threshold.
func (c *Client) FetchLiked(ctx context.Context, userID string) ([]models.CatalogItem, error) {
	var rows []likedRow
	if err := c.get(ctx, OpFetchLiked, "/user/"+url.PathEscape(userID)+"/liked", &rows); err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r likedRow, _ int) models.CatalogItem {
		return models.CatalogItem{Game: r.Game.toGame(), UserRating: r.Rating}
	}), nil
}

// SubmitRating records a rating for a game. The caller decides what to
// refresh afterwards; nothing is retried or applied optimistically here.
func (c *Client) SubmitRating(ctx context.Context, userID, gameID string, rating float64) error {
	return c.post(ctx, OpSubmitRating, "/user/"+url.PathEscape(userID)+"/like",
		ratingRequest{GameID: gameID, Rating: rating}, nil)
}

func (c *Client) fetchGames(ctx context.Context, op, path string) ([]models.CatalogItem, error) {
	var rows []wireGame
	if err := c.get(ctx, op, path, &rows); err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r wireGame, _ int) models.CatalogItem {
		return models.CatalogItem{Game: r.toGame()}
	}), nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &OpError{Op: op, Err: err}
	}
	return c.do(op, req, out)
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &OpError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &OpError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		util.LogWarn("Gateway %s failed: %v", op, err)
		return &OpError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		util.LogWarn("Gateway %s returned status %d", op, resp.StatusCode)
		return &OpError{Op: op, Status: resp.StatusCode}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &OpError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveGatewayRequest(op, status, time.Since(start))
	}
}
