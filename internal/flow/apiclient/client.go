package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/railzwaylabs/plexsource/internal/backend"
	"github.com/railzwaylabs/plexsource/internal/flow/domain"
)

const flowsPath = "api/v3/flows/instances/"

type flowResponse struct {
	PK          string `json:"pk"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Designation string `json:"designation"`
}

type pageResponse struct {
	Pagination struct {
		Next int `json:"next"`
	} `json:"pagination"`
	Results []flowResponse `json:"results"`
}

// Client lists flows from the identity backend.
type Client struct {
	backend *backend.Client
}

func New(b *backend.Client) domain.Repository {
	return &Client{backend: b}
}

func (c *Client) List(ctx context.Context, designation domain.Designation) ([]domain.Flow, error) {
	var flows []domain.Flow
	page := 1
	for {
		query := url.Values{}
		query.Set("ordering", "pk")
		query.Set("designation", string(designation))
		if page > 1 {
			query.Set("page", fmt.Sprint(page))
		}

		resp, err := c.backend.Do(ctx, http.MethodGet, flowsPath, query, nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("list flows: status %d", resp.Status)
		}

		var body pageResponse
		if err := resp.Decode(&body); err != nil {
			return nil, fmt.Errorf("decode flows: %w", err)
		}
		for _, f := range body.Results {
			flows = append(flows, domain.Flow{
				PK:          f.PK,
				Slug:        f.Slug,
				Name:        f.Name,
				Designation: domain.Designation(f.Designation),
			})
		}
		if body.Pagination.Next <= page {
			return flows, nil
		}
		page = body.Pagination.Next
	}
}
