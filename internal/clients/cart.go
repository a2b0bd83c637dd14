package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type CartItem struct {
	ItemID   int64   `json:"item_id"`
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Cart drives the cart service's synchronous surface on behalf of the
// orders API.
type Cart struct {
	base string
	hc   *http.Client
}

func NewCart(baseURL string, timeout time.Duration) *Cart {
	return &Cart{base: baseURL, hc: newHTTPClient(timeout)}
}

// Ensure returns the user's open cart id, creating one if necessary.
func (c *Cart) Ensure(ctx context.Context, userID int64) (int64, error) {
	var resp struct {
		CartID int64 `json:"cart_id"`
	}
	err := postJSON(ctx, c.hc, c.base+"/get_or_create_cart", map[string]int64{"user_id": userID}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.CartID, nil
}

func (c *Cart) AddItem(ctx context.Context, userID int64, itemName string, quantity int) error {
	body := map[string]any{"user_id": userID, "item_name": itemName, "quantity": quantity}
	return postJSON(ctx, c.hc, c.base+"/add_item_to_cart", body, nil)
}

func (c *Cart) Items(ctx context.Context, userID int64) ([]CartItem, error) {
	var resp struct {
		Items []CartItem `json:"items"`
	}
	q := url.Values{"user_id": {strconv.FormatInt(userID, 10)}}
	if err := getJSON(ctx, c.hc, c.base+"/get_cart_items?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Cart) Cancel(ctx context.Context, userID int64) error {
	return postJSON(ctx, c.hc, c.base+"/cancel_cart", map[string]int64{"user_id": userID}, nil)
}
