package remote

import (
	"context"
	"net/http"
	"net/url"
)

// Table inserts rows through the REST endpoint.
type Table struct {
	name   string
	api    *apiClient
	tokens func(context.Context) (string, error)
}

// Insert posts row as JSON.
func (t *Table) Insert(ctx context.Context, row any) error {
	token, err := t.tokens(ctx)
	if err != nil {
		return err
	}
	return t.api.do(ctx, http.MethodPost, "/rest/v1/"+url.PathEscape(t.name), token, row, nil)
}
