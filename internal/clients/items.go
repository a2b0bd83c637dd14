package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type ItemInfo struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	QuantityInStock int     `json:"quantity_in_stock"`
}

// Items looks up catalog entries through the items service.
type Items struct {
	base string
	hc   *http.Client
}

func NewItems(baseURL string, timeout time.Duration) *Items {
	return &Items{base: baseURL, hc: newHTTPClient(timeout)}
}

func (c *Items) ByName(ctx context.Context, name string) (ItemInfo, error) {
	return c.get(ctx, url.Values{"item_name": {name}})
}

func (c *Items) ByID(ctx context.Context, id int64) (ItemInfo, error) {
	return c.get(ctx, url.Values{"item_id": {strconv.FormatInt(id, 10)}})
}

func (c *Items) get(ctx context.Context, q url.Values) (ItemInfo, error) {
	var resp struct {
		Item ItemInfo `json:"item"`
	}
	if err := getJSON(ctx, c.hc, c.base+"/get_item_info?"+q.Encode(), &resp); err != nil {
		return ItemInfo{}, err
	}
	return resp.Item, nil
}
