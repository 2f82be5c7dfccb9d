package gerrit

import (
	"context"
	"net/url"

	perr "tagvalidate/internal/platform/errors"
)

// AccountsByEmail queries accounts whose email matches exactly
// An empty result is ErrorCodeNotFound
func (c *Client) AccountsByEmail(ctx context.Context, ep Endpoint, email string, creds Credentials) ([]AccountInfo, error) {
	path := "accounts/?q=" + url.QueryEscape("email:"+email) + "&o=DETAILS"
	out, err := GetJSON[[]AccountInfo](ctx, c, ep, path, creds)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, perr.NotFoundf("no gerrit account for email %s", email)
	}
	return out, nil
}

// AccountByUsername fetches one account by username; 404 carries ErrorCodeNotFound
func (c *Client) AccountByUsername(ctx context.Context, ep Endpoint, username string, creds Credentials) (AccountInfo, error) {
	return GetJSON[AccountInfo](ctx, c, ep, "accounts/"+url.PathEscape(username)+"?o=DETAILS", creds)
}

// AccountEmails lists registered emails; most servers require authentication
func (c *Client) AccountEmails(ctx context.Context, ep Endpoint, accountRef string, creds Credentials) ([]EmailInfo, error) {
	return GetJSON[[]EmailInfo](ctx, c, ep, "accounts/"+url.PathEscape(accountRef)+"/emails", creds)
}

// SSHKeys lists the account's SSH keys; an empty list is not an error
func (c *Client) SSHKeys(ctx context.Context, ep Endpoint, accountRef string, creds Credentials) ([]SSHKeyInfo, error) {
	return GetJSON[[]SSHKeyInfo](ctx, c, ep, "accounts/"+url.PathEscape(accountRef)+"/sshkeys", creds)
}

// GPGKeys lists the account's GPG keys keyed by key id
func (c *Client) GPGKeys(ctx context.Context, ep Endpoint, accountRef string, creds Credentials) (map[string]GPGKeyInfo, error) {
	return GetJSON[map[string]GPGKeyInfo](ctx, c, ep, "accounts/"+url.PathEscape(accountRef)+"/gpgkeys", creds)
}
