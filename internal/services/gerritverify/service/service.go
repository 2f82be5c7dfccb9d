// Package service implements the gerrit key verification pipeline
package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tagvalidate/internal/adapters/gerrit"
	"tagvalidate/internal/core/keymatch"
	"tagvalidate/internal/modkit"
	perr "tagvalidate/internal/platform/errors"
	"tagvalidate/internal/platform/logger"
	"tagvalidate/internal/platform/validate"

	dom "tagvalidate/internal/services/gerritverify/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config controls the verifier
type Config struct {
	Timeout     time.Duration
	Concurrency int
	UserAgent   string
	// RetryDelay is the pause before the single retry of a transient failure
	RetryDelay time.Duration
	Transport  http.RoundTripper
}

// Svc implements dom.VerifierPort
type Svc struct {
	client  *gerrit.Client
	locator *gerrit.Locator
	cfg     Config
	deps    modkit.Deps
	now     func() time.Time
}

var _ dom.VerifierPort = (*Svc)(nil)

// New constructs the service
func New(deps modkit.Deps, cfg Config) *Svc {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	client := gerrit.NewClient(gerrit.Options{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Transport: cfg.Transport,
	})
	return &Svc{
		client:  client,
		locator: gerrit.NewLocator(client),
		cfg:     cfg,
		deps:    deps,
		now:     deps.Clock(),
	}
}

// Verify runs one request through locate, resolve, fetch and match
// It always returns a result; failures are reported in ErrorKind
func (s *Svc) Verify(ctx context.Context, req dom.Request) dom.VerificationResult {
	req = normalizeRequest(req)
	res := dom.VerificationResult{Service: dom.ServiceName, KeyType: req.KeyType}

	spec, err := gerrit.ParseServerSpec(req.Server)
	if err != nil {
		return s.fail(ctx, res, stageRequest, err)
	}
	res.Server = serverLabel(spec, req.GitHubOrg)
	ctx = logger.WithRun(ctx, uuid.NewString(), res.Server)
	log := logger.C(ctx)

	if !spec.Enabled() {
		res.Reason = "gerrit verification disabled"
		return res
	}
	if err := validate.Struct(req); err != nil {
		return s.fail(ctx, res, stageRequest, err)
	}
	kind := keymatch.Kind(req.KeyType)
	if keymatch.Canonical(kind, req.Key) == "" {
		return s.fail(ctx, res, stageRequest, perr.WithField(
			perr.InvalidArgf("signature key id is not a canonical SSH fingerprint or GPG long id/fingerprint"), "key"))
	}
	if ctx.Err() != nil {
		return s.fail(ctx, res, stageRequest, ctx.Err())
	}
	creds := gerrit.Credentials{Username: req.Username, Password: req.Password}

	ep, err := s.locator.Locate(ctx, spec, req.GitHubOrg, creds)
	if err != nil {
		return s.fail(ctx, res, stageLocate, err)
	}
	res.Server = ep.Host
	log.Debug().Str("base", ep.BaseURL).Str("style", ep.Style.String()).Msg("gerrit endpoint resolved")

	acct, exact, err := s.resolveAccount(ctx, ep, req.Owner, creds)
	if err != nil {
		return s.fail(ctx, res, stageAccount, err)
	}
	res.Username = acct.Ref()
	res.AccountUsername = acct.Username
	res.UserName = firstNonEmpty(acct.Name, acct.DisplayName)
	res.UserEmail = acct.Email

	keys, err := s.fetchKeys(ctx, ep, acct.Ref(), kind, req.Enumerate, creds)
	if err != nil {
		return s.fail(ctx, res, stageKeys, err)
	}
	res.Enumerated = true
	if req.Enumerate {
		res.SSHKeys, res.GPGKeys = &keys.sshCount, &keys.gpgCount
	}

	d := keymatch.MatchDetail(keymatch.SignatureKey{Kind: kind, Identity: req.Key}, keys.records)
	res.KeyRegistered = d.Registered()
	if !res.KeyRegistered {
		res.ErrorKind = dom.KeyNotRegistered
		res.Reason = notRegisteredReason(d)
	}

	if len(req.RequireOwner) > 0 {
		ok, err := s.ownerMatches(ctx, ep, req, acct, exact, creds)
		if err != nil && (perr.IsCanceled(err) || ctx.Err() != nil) {
			return s.fail(ctx, res, stageAccount, err)
		}
		if err != nil {
			log.Debug().Err(err).Msg("gerrit account emails unavailable for owner check")
		}
		res.OwnerMatched = &ok
		if !ok && res.Reason == "" {
			res.Reason = "account emails are not in the required owner list"
		}
	}
	res.Verified = res.KeyRegistered && (res.OwnerMatched == nil || *res.OwnerMatched)

	log.Info().
		Str("account", res.Username).
		Str("key_type", res.KeyType).
		Int("candidates", d.Candidates).
		Int("invalid", d.Invalid).
		Bool("key_registered", res.KeyRegistered).
		Bool("verified", res.Verified).
		Msg("gerrit verification finished")
	return res
}

// VerifyAll runs requests concurrently; results keep request order
func (s *Svc) VerifyAll(ctx context.Context, reqs []dom.Request) []dom.VerificationResult {
	out := make([]dom.VerificationResult, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, r := range reqs {
		g.Go(func() error {
			out[i] = s.Verify(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// resolveAccount looks up the owner; exact is true when an email query matched a single account
func (s *Svc) resolveAccount(ctx context.Context, ep gerrit.Endpoint, owner string, creds gerrit.Credentials) (acct gerrit.AccountInfo, exact bool, err error) {
	if !strings.Contains(owner, "@") {
		acct, err = retryOnce(ctx, s, "account_by_username", func() (gerrit.AccountInfo, error) {
			return s.client.AccountByUsername(ctx, ep, owner, creds)
		})
		return acct, false, err
	}
	accts, err := retryOnce(ctx, s, "accounts_by_email", func() ([]gerrit.AccountInfo, error) {
		return s.client.AccountsByEmail(ctx, ep, owner, creds)
	})
	if err != nil {
		return gerrit.AccountInfo{}, false, err
	}
	if len(accts) > 1 {
		logger.C(ctx).Warn().Int("matches", len(accts)).Str("picked", accts[0].Ref()).Msg("gerrit email matched several accounts")
	}
	return accts[0], len(accts) == 1, nil
}

type keySet struct {
	records  []keymatch.Record
	sshCount int
	gpgCount int
}

// fetchKeys lists the signature's key kind, or both kinds concurrently when enumerating
func (s *Svc) fetchKeys(ctx context.Context, ep gerrit.Endpoint, ref string, kind keymatch.Kind, enumerate bool, creds gerrit.Credentials) (keySet, error) {
	var (
		out     keySet
		sshRecs []keymatch.Record
		gpgRecs []keymatch.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	if enumerate || kind == keymatch.KindSSH {
		g.Go(func() error {
			keys, err := retryOnce(gctx, s, "ssh_keys", func() ([]gerrit.SSHKeyInfo, error) {
				return s.client.SSHKeys(gctx, ep, ref, creds)
			})
			if err != nil {
				return err
			}
			recs, skipped := gerrit.SSHRecords(keys)
			if skipped > 0 {
				logger.C(ctx).Debug().Int("skipped", skipped).Msg("gerrit ssh keys that failed to parse")
			}
			sshRecs, out.sshCount = recs, len(keys)
			return nil
		})
	}
	if enumerate || kind == keymatch.KindGPG {
		g.Go(func() error {
			keys, err := retryOnce(gctx, s, "gpg_keys", func() (map[string]gerrit.GPGKeyInfo, error) {
				return s.client.GPGKeys(gctx, ep, ref, creds)
			})
			if err != nil {
				return err
			}
			gpgRecs, out.gpgCount = gerrit.GPGRecords(keys, s.now()), len(keys)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return keySet{}, err
	}
	out.records = append(sshRecs, gpgRecs...)
	return out, nil
}

// retryOnce repeats fn a single time on a transient failure while ctx is live
func retryOnce[T any](ctx context.Context, s *Svc, op string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || ctx.Err() != nil || !(perr.Retryable(err) || gerrit.IsTransient(err)) {
		return v, err
	}
	logger.C(ctx).Warn().Err(err).Str("op", op).Int("status", gerrit.StatusOf(err)).Msg("gerrit transient failure, retrying once")
	if s.cfg.RetryDelay > 0 {
		t := time.NewTimer(s.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return v, perr.Wrap(ctx.Err(), perr.ErrorCodeCanceled, "gerrit retry canceled")
		case <-t.C:
		}
	}
	return fn()
}

func normalizeRequest(req dom.Request) dom.Request {
	req.Owner = strings.TrimSpace(req.Owner)
	req.Key = strings.TrimSpace(req.Key)
	req.KeyType = strings.ToLower(strings.TrimSpace(req.KeyType))
	if req.KeyType == "" {
		req.KeyType = string(keymatch.DetectKind(req.Key))
	}
	req.GitHubOrg = strings.TrimSpace(req.GitHubOrg)
	return req
}

func serverLabel(spec gerrit.ServerSpec, org string) string {
	switch spec.Mode {
	case gerrit.SpecAuto:
		h, _ := gerrit.AutoHost(org)
		return h
	case gerrit.SpecDisabled:
		return ""
	default:
		return spec.Host
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
