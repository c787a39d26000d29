package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// PageQuery selects one page of a listing. Zero values leave the server
// defaults in place.
type PageQuery struct {
	Page   int
	Limit  int
	Search string
}

func (q PageQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// List is the paginated envelope of the listing endpoints.
type List[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

type Dataset struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	DictionaryID int64    `json:"dictionary_id,omitempty"`
	CreatedBy    int64    `json:"created_by,omitempty"`
	CreatedAt    string   `json:"created_at"`
	ImageCount   int      `json:"image_count"`
}

type Category struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DictionaryID int64  `json:"dictionary_id,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// Annotation is a labeled region of an image. BBox is [x, y, width, height].
type Annotation struct {
	ID             int64      `json:"id"`
	ImageID        int64      `json:"image_id"`
	CategoryID     int64      `json:"category_id,omitempty"`
	BBox           [4]float64 `json:"bbox"`
	Area           float64    `json:"area"`
	Status         string     `json:"status"`
	SourceType     string     `json:"source_type"`
	CreatedBy      int64      `json:"created_by,omitempty"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
	IsCrowd        bool       `json:"is_crowd,omitempty"`
	PredictedIoU   *float64   `json:"predicted_iou,omitempty"`
	StabilityScore *float64   `json:"stability_score,omitempty"`
}

// AnnotationQuery filters Annotations. Zero ids and empty strings are
// not sent.
type AnnotationQuery struct {
	PageQuery
	ImageID    int64
	CategoryID int64
	Status     string
	SourceType string
}

type LeaderboardEntry struct {
	UserID             int64  `json:"user_id"`
	DisplayName        string `json:"display_name,omitempty"`
	Email              string `json:"email"`
	TotalPoints        int64  `json:"total_points"`
	TotalContributions int64  `json:"total_contributions"`
	Rank               int    `json:"rank"`
}

type Leaderboard struct {
	Entries    []LeaderboardEntry `json:"entries"`
	TotalUsers int                `json:"total_users"`
	Page       int                `json:"page"`
	Size       int                `json:"size"`
	Pages      int                `json:"pages"`
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func (c *Client) Datasets(ctx context.Context, q PageQuery) (List[Dataset], error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var out List[Dataset]
	err := c.do(ctx, http.MethodGet, withQuery("/api/v1/datasets/", q.values()), nil, &out)
	return out, err
}

func (c *Client) Categories(ctx context.Context, q PageQuery) (List[Category], error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var out List[Category]
	err := c.do(ctx, http.MethodGet, withQuery("/api/v1/categories/", q.values()), nil, &out)
	return out, err
}

func (c *Client) Annotations(ctx context.Context, q AnnotationQuery) (List[Annotation], error) {
	v := q.values()
	if q.ImageID > 0 {
		v.Set("image_id", strconv.FormatInt(q.ImageID, 10))
	}
	if q.CategoryID > 0 {
		v.Set("category_id", strconv.FormatInt(q.CategoryID, 10))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.SourceType != "" {
		v.Set("source_type", q.SourceType)
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var out List[Annotation]
	err := c.do(ctx, http.MethodGet, withQuery("/api/v1/annotations/", v), nil, &out)
	return out, err
}

// Leaderboard is public; no token is needed.
func (c *Client) Leaderboard(ctx context.Context, q PageQuery) (Leaderboard, error) {
	v := q.values()
	v.Del("search")
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	var out Leaderboard
	err := c.do(ctx, http.MethodGet, withQuery("/api/v1/rewards/leaderboard", v), nil, &out)
	return out, err
}
