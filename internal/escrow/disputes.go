package escrow

import (
	"context"
	"net/http"

	"github.com/Veraticus/escrow-client/internal/model"
)

// ListDisputes lists the disputes visible to the caller.
func (c *Client) ListDisputes(ctx context.Context) ([]model.Dispute, error) {
	return listOf[model.Dispute](ctx, c, PathDisputes)
}

// GetDispute fetches one dispute.
func (c *Client) GetDispute(ctx context.Context, id int64) (*model.Dispute, error) {
	var dispute model.Dispute
	if _, err := c.Do(ctx, http.MethodGet, DisputePath(id), &dispute); err != nil {
		return nil, err
	}
	return &dispute, nil
}
