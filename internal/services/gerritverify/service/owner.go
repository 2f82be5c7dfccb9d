package service

import (
	"context"

	"tagvalidate/internal/adapters/gerrit"
	"tagvalidate/internal/core/normalize"

	dom "tagvalidate/internal/services/gerritverify/domain"
)

// ownerMatches checks the resolved account against the required owner emails
// The queried email counts only when it resolved to exactly one account;
// otherwise the account's own addresses decide, with the full email list
// consulted when credentials allow reading it
func (s *Svc) ownerMatches(ctx context.Context, ep gerrit.Endpoint, req dom.Request, acct gerrit.AccountInfo, exact bool, creds gerrit.Credentials) (bool, error) {
	want := normalize.NewEmailSet(req.RequireOwner...)

	have := normalize.NewEmailSet(acct.Email)
	have.Add(acct.SecondaryEmails...)
	if exact {
		have.Add(req.Owner)
	}
	if want.Intersects(have) {
		return true, nil
	}
	if !creds.Present() {
		return false, nil
	}

	emails, err := s.client.AccountEmails(ctx, ep, acct.Ref(), creds)
	if err != nil {
		return false, err
	}
	for _, e := range emails {
		have.Add(e.Email)
	}
	return want.Intersects(have), nil
}
