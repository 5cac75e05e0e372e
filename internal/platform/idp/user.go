package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const scimContentType = "application/scim+json"

type scimEmail struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

type inviteRequestBody struct {
	Schemas  []string               `json:"schemas"`
	UserName string                 `json:"userName"`
	Emails   []scimEmail            `json:"emails"`
	Ext      map[string]interface{} `json:"urn:scim:wso2:schema"`
}

type userResponseBody struct {
	ID       string      `json:"id"`
	UserName string      `json:"userName"`
	Emails   []scimEmail `json:"emails"`
}

type listResponseBody struct {
	TotalResults int                `json:"totalResults"`
	Resources    []userResponseBody `json:"Resources"`
}

type scimErrorBody struct {
	Detail string `json:"detail"`
}

func (u userResponseBody) account() *Account {
	a := &Account{ID: u.ID, Email: u.UserName}
	for _, e := range u.Emails {
		if e.Primary || a.Email == "" {
			a.Email = e.Value
		}
	}
	return a
}

// InviteUser creates an account that is activated by an emailed invitation
// link pointing at redirectTo. If the provider reports the account already
// exists, the existing account is returned so re-inviting converges.
func (c *Client) InviteUser(ctx context.Context, email, redirectTo string) (*Account, error) {
	body := inviteRequestBody{
		Schemas:  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		UserName: email,
		Emails:   []scimEmail{{Value: email, Primary: true}},
		Ext: map[string]interface{}{
			"askPassword": true,
			"redirectTo":  redirectTo,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/scim2/Users", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", scimContentType)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusCreated:
		var created userResponseBody
		if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if created.ID == "" {
			return nil, fmt.Errorf("create user response has no id")
		}
		return created.account(), nil
	case http.StatusConflict:
		return c.FindUserByEmail(ctx, email)
	default:
		return nil, statusError("create user", res)
	}
}

// FindUserByEmail looks an account up by its user name.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*Account, error) {
	filter := url.QueryEscape(fmt.Sprintf("userName eq %q", email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/scim2/Users?filter="+filter, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, statusError("find user", res)
	}

	var list listResponseBody
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	for _, u := range list.Resources {
		if strings.EqualFold(u.UserName, email) {
			return u.account(), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (c *Client) GetUser(ctx context.Context, id string) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/scim2/Users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrAccountNotFound
	default:
		return nil, statusError("get user", res)
	}

	var u userResponseBody
	if err := json.NewDecoder(res.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return u.account(), nil
}

// DeleteUser removes the account. A missing account counts as deleted.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/scim2/Users/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return statusError("delete user", res)
	}
}

func statusError(op string, res *http.Response) error {
	se := &StatusError{Op: op, StatusCode: res.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var body scimErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Detail != "" {
		se.Detail = body.Detail
	}
	return se
}
