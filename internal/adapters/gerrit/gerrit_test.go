package gerrit

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tagvalidate/internal/core/keymatch"
	perr "tagvalidate/internal/platform/errors"
	"tagvalidate/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func gerritJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		_, _ = io.WriteString(w, ")]}'\n"+body)
	}
}

// mockGerrit serves a Gerrit REST API under root ("" for the server root)
func mockGerrit(t *testing.T, root string, routes func(chi.Router)) (*httptest.Server, *testkit.Recorder, *Client) {
	t.Helper()
	r := chi.NewRouter()
	mount := func(sr chi.Router) {
		sr.Get("/config/server/version", gerritJSON(`"3.9.1"`))
		if routes != nil {
			routes(sr)
		}
	}
	if root == "" {
		mount(r)
	} else {
		r.Route(root, mount)
	}
	srv, tr := testkit.TLSServer(t, r)
	rec := &testkit.Recorder{Next: tr}
	return srv, rec, NewClient(Options{Timeout: 5 * time.Second, Transport: rec})
}

func hostOf(srv *httptest.Server) string { return strings.TrimPrefix(srv.URL, "https://") }

func TestParseServerSpec(t *testing.T) {
	cases := []struct {
		in     string
		mode   SpecMode
		host   string
		prefix string
	}{
		{"", SpecDisabled, "", ""},
		{"false", SpecDisabled, "", ""},
		{"TRUE", SpecAuto, "", ""},
		{"gerrit.example.org", SpecExplicitHost, "gerrit.example.org", ""},
		{"Gerrit.Example.org/r/", SpecExplicitHost, "gerrit.example.org", "/r"},
		{"https://git.example.org/infra/", SpecExplicitURL, "git.example.org", "/infra"},
		{"https://git.example.org", SpecExplicitURL, "git.example.org", ""},
	}
	for _, c := range cases {
		got, err := ParseServerSpec(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.mode, got.Mode, c.in)
		require.Equal(t, c.host, got.Host, c.in)
		require.Equal(t, c.prefix, got.PathPrefix, c.in)
	}

	for _, bad := range []string{"http://gerrit.example.org", "ftp://x", "https://", "bad host"} {
		_, err := ParseServerSpec(bad)
		require.Error(t, err, bad)
		require.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument), bad)
	}
}

func TestCandidates_Order(t *testing.T) {
	anon := Candidates("h", "", Credentials{})
	require.Len(t, anon, 4)
	require.Equal(t, "https://h/", anon[0].BaseURL)
	require.Equal(t, "https://h/r/", anon[1].BaseURL)
	require.Equal(t, "https://h/gerrit/", anon[2].BaseURL)
	require.Equal(t, "https://h/a/", anon[3].BaseURL)

	authed := Candidates("h", "", Credentials{Username: "u", Password: "p"})
	require.Equal(t, PathAuthenticated, authed[0].Style)
	require.Equal(t, PathDirect, authed[1].Style)

	// half set credentials are anonymous
	require.Equal(t, PathDirect, Candidates("h", "", Credentials{Username: "u"})[0].Style)

	pre := Candidates("h", "/infra", Credentials{})
	require.Len(t, pre, 2)
	require.Equal(t, "https://h/infra/", pre[0].BaseURL)
	require.Equal(t, "https://h/infra/a/", pre[1].BaseURL)

	for _, ep := range append(anon, pre...) {
		require.True(t, strings.HasSuffix(ep.BaseURL, "/"))
	}
}

func TestLocate_RContextRoot(t *testing.T) {
	srv, rec, c := mockGerrit(t, "/r", nil)
	host := hostOf(srv)

	ep, err := NewLocator(c).Locate(context.Background(), ServerSpec{Mode: SpecExplicitHost, Host: host}, "", Credentials{})
	require.NoError(t, err)
	require.Equal(t, "https://"+host+"/r/", ep.BaseURL)
	require.Equal(t, PathR, ep.Style)
	require.Equal(t, []string{
		"https://" + host + "/config/server/version",
		"https://" + host + "/r/config/server/version",
	}, rec.URLs())
}

func TestLocate_CredentialsProbeAuthenticatedFirst(t *testing.T) {
	srv, rec, c := mockGerrit(t, "/a", nil)
	host := hostOf(srv)

	ep, err := NewLocator(c).Locate(context.Background(), ServerSpec{Mode: SpecExplicitHost, Host: host}, "", Credentials{Username: "bot", Password: "s3cret"})
	require.NoError(t, err)
	require.Equal(t, PathAuthenticated, ep.Style)
	require.Equal(t, []string{"https://" + host + "/a/config/server/version"}, rec.URLs())
}

func TestLocate_URLPrefix(t *testing.T) {
	srv, rec, c := mockGerrit(t, "/infra", nil)

	spec, err := ParseServerSpec(srv.URL + "/infra/")
	require.NoError(t, err)
	ep, err := NewLocator(c).Locate(context.Background(), spec, "", Credentials{})
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/infra/", ep.BaseURL)
	require.Len(t, rec.URLs(), 1)
}

func TestLocate_AutoUsesOrgHost(t *testing.T) {
	var seen []string
	c := NewClient(Options{Transport: testkit.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = append(seen, r.URL.String())
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("nope")), Header: http.Header{}, Request: r}, nil
	})})

	_, err := NewLocator(c).Locate(context.Background(), ServerSpec{Mode: SpecAuto}, " ONAP ", Credentials{})
	require.Error(t, err)
	require.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	require.Equal(t, []string{
		"https://gerrit.onap.org/config/server/version",
		"https://gerrit.onap.org/r/config/server/version",
		"https://gerrit.onap.org/gerrit/config/server/version",
		"https://gerrit.onap.org/a/config/server/version",
	}, seen)
}

func TestLocate_AutoWithoutOrg(t *testing.T) {
	c := NewClient(Options{Transport: testkit.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request %s", r.URL)
		return nil, nil
	})})
	_, err := NewLocator(c).Locate(context.Background(), ServerSpec{Mode: SpecAuto}, "", Credentials{})
	require.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
}

func TestLocate_NonGerritHost(t *testing.T) {
	srv, tr := testkit.TLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>welcome</html>")
	}))
	rec := &testkit.Recorder{Next: tr}
	c := NewClient(Options{Transport: rec})

	_, err := NewLocator(c).Locate(context.Background(), ServerSpec{Mode: SpecExplicitHost, Host: hostOf(srv)}, "", Credentials{})
	require.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	require.Len(t, rec.URLs(), 4)
}

func TestClient_RejectsPlainHTTP(t *testing.T) {
	c := NewClient(Options{Transport: testkit.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("plain http must never reach the wire: %s", r.URL)
		return nil, nil
	})})
	_, err := c.Get(context.Background(), Endpoint{BaseURL: "http://gerrit.example.org/"}, "accounts/", Credentials{})
	require.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
}

func TestClient_BasicAuthOnlyWithCredentials(t *testing.T) {
	var auths []string
	srv, _, c := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/accounts/self", func(w http.ResponseWriter, req *http.Request) {
			u, p, ok := req.BasicAuth()
			if ok {
				auths = append(auths, u+":"+p)
			} else {
				auths = append(auths, "")
			}
			gerritJSON(`{"_account_id":1}`)(w, req)
		})
	})
	ep := Endpoint{BaseURL: srv.URL + "/"}

	_, err := c.Get(context.Background(), ep, "accounts/self", Credentials{})
	require.NoError(t, err)
	_, err = c.Get(context.Background(), ep, "accounts/self", Credentials{Username: "bot", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, []string{"", "bot:pw"}, auths)
}

func TestAccountsByEmail_StripsPrefixAndEscapes(t *testing.T) {
	srv, _, c := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/accounts/", func(w http.ResponseWriter, req *http.Request) {
			require.Equal(t, "email:jdoe+tag@example.org", req.URL.Query().Get("q"))
			require.Equal(t, "DETAILS", req.URL.Query().Get("o"))
			gerritJSON(`[{"_account_id":12345,"name":"Jane Doe","email":"jdoe+tag@example.org","username":"jdoe","secondary_emails":["jane@example.org"]},{"_account_id":99}]`)(w, req)
		})
	})

	accts, err := c.AccountsByEmail(context.Background(), Endpoint{BaseURL: srv.URL + "/"}, "jdoe+tag@example.org", Credentials{})
	require.NoError(t, err)
	require.Len(t, accts, 2)
	require.Equal(t, "12345", accts[0].Ref())
	require.Equal(t, "jdoe", accts[0].Username)
	require.Equal(t, []string{"jane@example.org"}, accts[0].SecondaryEmails)
}

func TestAccountsByEmail_EmptyIsNotFound(t *testing.T) {
	srv, _, c := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/accounts/", gerritJSON(`[]`))
	})
	_, err := c.AccountsByEmail(context.Background(), Endpoint{BaseURL: srv.URL + "/"}, "ghost@example.org", Credentials{})
	require.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
}

func TestAccountByUsername(t *testing.T) {
	srv, _, c := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/accounts/jdoe", gerritJSON(`{"_account_id":12345,"username":"jdoe","email":"jdoe@example.org"}`))
	})
	ep := Endpoint{BaseURL: srv.URL + "/"}

	a, err := c.AccountByUsername(context.Background(), ep, "jdoe", Credentials{})
	require.NoError(t, err)
	require.EqualValues(t, 12345, a.ID)

	_, err = c.AccountByUsername(context.Background(), ep, "ghost", Credentials{})
	require.Equal(t, http.StatusNotFound, StatusOf(err))
	require.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
}

func TestKeys_ToRecords(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pk, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pk)))

	srv, _, c := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/accounts/12345/sshkeys", gerritJSON(`[
			{"seq":1,"ssh_public_key":"`+line+` jdoe@laptop","encoded_key":"x","algorithm":"ssh-ed25519","comment":"jdoe@laptop","valid":true},
			{"seq":2,"ssh_public_key":"garbage","valid":true}
		]`))
		r.Get("/accounts/12345/gpgkeys", gerritJSON(`{
			"FCE8AAABF53080F6":{"fingerprint":"7A5C 3D2F 11AA 22BB 33CC  44DD FCE8 AAAB F530 80F6","status":"OK"},
			"0123456789ABCDEF":{"fingerprint":"1111 2222 3333 4444 5555  6666 0123 4567 89AB CDEF","status":"BAD","problems":["Key is revoked"]}
		}`))
	})
	ep := Endpoint{BaseURL: srv.URL + "/"}
	ctx := context.Background()

	sshKeys, err := c.SSHKeys(ctx, ep, "12345", Credentials{})
	require.NoError(t, err)
	recs, skipped := SSHRecords(sshKeys)
	require.Equal(t, 1, skipped)
	require.Len(t, recs, 1)
	require.True(t, keymatch.Match(keymatch.SignatureKey{Kind: keymatch.KindSSH, Identity: ssh.FingerprintSHA256(pk)}, recs))

	gpgKeys, err := c.GPGKeys(ctx, ep, "12345", Credentials{})
	require.NoError(t, err)
	grecs := GPGRecords(gpgKeys, time.Now())
	require.Len(t, grecs, 2)
	require.True(t, keymatch.Match(keymatch.SignatureKey{Kind: keymatch.KindGPG, Identity: "FCE8AAABF53080F6"}, grecs))
	require.False(t, keymatch.Match(keymatch.SignatureKey{Kind: keymatch.KindGPG, Identity: "0123456789ABCDEF"}, grecs))
}

func TestGPGKeyInfo_ServerValid(t *testing.T) {
	require.True(t, GPGKeyInfo{Status: "TRUSTED"}.ServerValid())
	require.True(t, GPGKeyInfo{Status: "OK", Problems: []string{"No trust path"}}.ServerValid())
	require.False(t, GPGKeyInfo{Status: "bad"}.ServerValid())
	require.False(t, GPGKeyInfo{Status: "OK", Problems: []string{"Key is expired"}}.ServerValid())
}

func TestStatusErrors(t *testing.T) {
	srv, _, c := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/accounts/1/sshkeys", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		})
		r.Get("/accounts/2/sshkeys", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		})
		r.Get("/accounts/3/sshkeys", gerritJSON(`{not json`))
	})
	ep := Endpoint{BaseURL: srv.URL + "/"}
	ctx := context.Background()

	_, err := c.SSHKeys(ctx, ep, "1", Credentials{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusForbidden, se.HTTPStatus())
	require.Contains(t, se.Body, "forbidden")
	require.False(t, IsTransient(err))
	require.False(t, perr.Retryable(err))
	require.True(t, perr.IsCode(err, perr.ErrorCodeForbidden))

	_, err = c.SSHKeys(ctx, ep, "2", Credentials{})
	require.True(t, IsTransient(err))
	require.True(t, perr.Retryable(err))

	_, err = c.SSHKeys(ctx, ep, "3", Credentials{})
	require.True(t, perr.IsCode(err, perr.ErrorCodeJSON))
	require.Equal(t, 0, StatusOf(err))
}

func TestGet_CanceledContext(t *testing.T) {
	srv, rec, c := mockGerrit(t, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, Endpoint{BaseURL: srv.URL + "/"}, "config/server/version", Credentials{})
	require.True(t, perr.IsCanceled(err))
	require.True(t, errors.Is(err, context.Canceled))
	require.False(t, perr.Retryable(err))
	require.Empty(t, rec.URLs())
}

func TestGet_NetworkFailureIsUnavailable(t *testing.T) {
	c := NewClient(Options{Transport: testkit.RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})})
	_, err := c.Get(context.Background(), Endpoint{BaseURL: "https://gerrit.example.org/"}, "accounts/", Credentials{})
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	require.True(t, perr.Retryable(err))
	require.Equal(t, 0, StatusOf(err))
}

func TestGet_RefusesRedirectToPlainHTTP(t *testing.T) {
	var plainHits atomic.Int32
	var leaked atomic.Value
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plainHits.Add(1)
		leaked.Store(r.Header.Get("Authorization"))
		gerritJSON(`[]`)(w, r)
	}))
	t.Cleanup(plain.Close)

	srv, _, c := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/accounts/{id}/sshkeys", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, plain.URL+req.URL.Path, http.StatusFound)
		})
	})

	_, err := c.Get(context.Background(), Endpoint{BaseURL: srv.URL + "/"}, "accounts/1/sshkeys", Credentials{Username: "bot", Password: "hunter2"})
	require.Error(t, err)
	require.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
	require.False(t, perr.Retryable(err))
	require.Equal(t, int32(0), plainHits.Load())
	require.Nil(t, leaked.Load())
}

func TestGet_FollowsHTTPSRedirect(t *testing.T) {
	srv, rec, c := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/old/accounts/self", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/accounts/self", http.StatusMovedPermanently)
		})
		r.Get("/accounts/self", gerritJSON(`{"_account_id":7}`))
	})

	resp, err := c.Get(context.Background(), Endpoint{BaseURL: srv.URL + "/"}, "old/accounts/self", Credentials{})
	require.NoError(t, err)
	require.Equal(t, `{"_account_id":7}`, string(resp.Body))
	require.Len(t, rec.URLs(), 2)
}

func TestGet_ClientTimeoutIsUnavailable(t *testing.T) {
	var hits atomic.Int32
	srv, _, _ := mockGerrit(t, "", func(r chi.Router) {
		r.Get("/accounts/{id}/gpgkeys", func(w http.ResponseWriter, req *http.Request) {
			hits.Add(1)
			select {
			case <-req.Context().Done():
			case <-time.After(2 * time.Second):
			}
			gerritJSON(`{}`)(w, req)
		})
	})
	c := NewClient(Options{Timeout: 50 * time.Millisecond, Transport: srv.Client().Transport})

	start := time.Now()
	_, err := c.GPGKeys(context.Background(), Endpoint{BaseURL: srv.URL + "/"}, "1", Credentials{})
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
	require.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	require.True(t, perr.Retryable(err))
	require.False(t, perr.IsCanceled(err))
	require.Equal(t, 0, StatusOf(err))
	require.Equal(t, int32(1), hits.Load())
}

func TestStripMagicPrefix(t *testing.T) {
	require.Equal(t, `"3.9"`, string(stripMagicPrefix([]byte(")]}'\n\"3.9\""))))
	require.Equal(t, `"3.9"`, string(stripMagicPrefix([]byte(")]}'\r\n\"3.9\""))))
	require.Equal(t, `[]`, string(stripMagicPrefix([]byte(`[]`))))
}

func TestCredentials_String(t *testing.T) {
	cr := Credentials{Username: "bot", Password: "hunter2"}
	require.NotContains(t, cr.String(), "hunter2")
	require.NotContains(t, cr.String(), "bot")
	require.Equal(t, "anonymous", Credentials{Password: "x"}.String())
}

func TestSSHKeyInfo_FingerprintFallback(t *testing.T) {
	valid := true
	rec, err := SSHKeyInfo{Fingerprint: "AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99", Valid: &valid}.Record()
	require.NoError(t, err)
	require.True(t, keymatch.Match(keymatch.SignatureKey{Kind: keymatch.KindSSH, Identity: "aa:bb:cc:dd:ee:ff:00:11:22:33:44:55:66:77:88:99"}, []keymatch.Record{rec}))

	_, err = SSHKeyInfo{SSHPublicKey: "garbage"}.Record()
	require.Error(t, err)
}
