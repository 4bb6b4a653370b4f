package escrow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/patrickmn/go-cache"
)

// Filters narrows a transaction listing. Zero values are omitted.
type Filters struct {
	Status model.TransactionStatus
	Search string
	Page   int
}

// Values serializes the filters as query parameters.
func (f Filters) Values() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	return q
}

// TransactionPage is one page of transactions.
type TransactionPage = model.Page[model.Transaction]

// ListTransactions fetches the transactions visible to the caller.
func (c *Client) ListTransactions(ctx context.Context, filters Filters) (*TransactionPage, error) {
	var page TransactionPage
	if _, err := c.Do(ctx, http.MethodGet, PathTransactions, &page, WithQuery(filters.Values())); err != nil {
		return nil, err
	}
	return &page, nil
}

// LoadPage follows a pagination link as returned in next/previous.
func (c *Client) LoadPage(ctx context.Context, link string) (*TransactionPage, error) {
	var page TransactionPage
	if _, err := c.Do(ctx, http.MethodGet, link, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllTransactions follows next links from the first page and returns every
// matching transaction.
func (c *Client) AllTransactions(ctx context.Context, filters Filters) ([]model.Transaction, error) {
	filters.Page = 0
	page, err := c.ListTransactions(ctx, filters)
	if err != nil {
		return nil, err
	}
	txs := page.Results
	for page.HasNext() {
		if page, err = c.LoadPage(ctx, *page.Next); err != nil {
			return nil, fmt.Errorf("failed to load next page: %w", err)
		}
		txs = append(txs, page.Results...)
	}
	return txs, nil
}

// GetTransaction fetches one transaction. Results are cached briefly since
// the payment flow reads the same transaction several times.
func (c *Client) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	key := detailKey(id)
	if cached, found := c.details.Get(key); found {
		tx := cached.(model.Transaction)
		return &tx, nil
	}

	var tx model.Transaction
	if _, err := c.Do(ctx, http.MethodGet, TransactionPath(id), &tx); err != nil {
		return nil, err
	}
	c.details.Set(key, tx, cache.DefaultExpiration)
	return &tx, nil
}

// InvalidateTransaction drops the cached detail of a transaction.
func (c *Client) InvalidateTransaction(id int64) {
	c.details.Delete(detailKey(id))
}

type actionRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes,omitempty"`
}

// PerformAction dispatches an action through the actions endpoint and
// returns the server message.
func (c *Client) PerformAction(ctx context.Context, id int64, action model.Action, notes string) (string, error) {
	if !action.Endpoint() {
		return "", fmt.Errorf("action %q is not dispatched through the actions endpoint", action)
	}

	var result struct {
		Message string `json:"message"`
	}
	env, err := c.Do(ctx, http.MethodPost, TransactionActionsPath(id), &result,
		WithJSON(actionRequest{Action: string(action), Notes: notes}))
	if err != nil {
		return "", err
	}
	c.InvalidateTransaction(id)

	if result.Message != "" {
		return result.Message, nil
	}
	return env.Message, nil
}

// Statistics returns the caller's transaction statistics.
func (c *Client) Statistics(ctx context.Context) (*model.Statistics, error) {
	var stats model.Statistics
	if _, err := c.Do(ctx, http.MethodGet, PathStatistics, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func detailKey(id int64) string {
	return "transaction:" + strconv.FormatInt(id, 10)
}
