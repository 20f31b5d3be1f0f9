package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/meowecho-tech/vote/internal/models"
)

// API is the authenticated transport the services call through.
// *session.Client satisfies it.
type API interface {
	Do(ctx context.Context, method, path string, body any, out any) error
}

type okResponse struct {
	OK bool `json:"ok"`
}

func pagePath(base string, req models.PageRequest) string {
	q := url.Values{}
	if req.Page > 0 {
		q.Set("page", strconv.Itoa(req.Page))
	}
	if req.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(req.PerPage))
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

func escape(id string) string {
	return url.PathEscape(id)
}

func requireID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidInput, kind)
	}
	return nil
}
