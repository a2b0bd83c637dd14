package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type UserInfo struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

// Users resolves identities through the users service.
type Users struct {
	base string
	hc   *http.Client
}

func NewUsers(baseURL string, timeout time.Duration) *Users {
	return &Users{base: baseURL, hc: newHTTPClient(timeout)}
}

func (c *Users) ByEmail(ctx context.Context, email string) (UserInfo, error) {
	return c.get(ctx, url.Values{"user_email": {email}})
}

func (c *Users) ByID(ctx context.Context, id int64) (UserInfo, error) {
	return c.get(ctx, url.Values{"user_id": {strconv.FormatInt(id, 10)}})
}

func (c *Users) get(ctx context.Context, q url.Values) (UserInfo, error) {
	var resp struct {
		Results []UserInfo `json:"results"`
	}
	if err := getJSON(ctx, c.hc, c.base+"/get_user?"+q.Encode(), &resp); err != nil {
		return UserInfo{}, err
	}
	if len(resp.Results) == 0 {
		return UserInfo{}, ErrNotFound
	}
	return resp.Results[0], nil
}
