package gerrit

import (
	"context"
	"net/url"
	"strings"

	perr "tagvalidate/internal/platform/errors"
	"tagvalidate/internal/platform/logger"
)

// SpecMode says how the target server was chosen
type SpecMode int

const (
	// SpecDisabled skips Gerrit verification entirely
	SpecDisabled SpecMode = iota
	// SpecAuto derives the host from the org hint
	SpecAuto
	// SpecExplicitHost names a host
	SpecExplicitHost
	// SpecExplicitURL names an https url, possibly with a context root
	SpecExplicitURL
)

func (m SpecMode) String() string {
	switch m {
	case SpecAuto:
		return "auto"
	case SpecExplicitHost:
		return "host"
	case SpecExplicitURL:
		return "url"
	default:
		return "disabled"
	}
}

// ServerSpec is the parsed server option
type ServerSpec struct {
	Mode       SpecMode
	Host       string
	PathPrefix string // "" or "/root" without trailing slash
}

// Enabled reports whether any lookup should happen
func (s ServerSpec) Enabled() bool { return s.Mode != SpecDisabled }

// ParseServerSpec accepts "", "false", "true", a bare host or an https url
func ParseServerSpec(raw string) (ServerSpec, error) {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "", "false":
		return ServerSpec{Mode: SpecDisabled}, nil
	case "true":
		return ServerSpec{Mode: SpecAuto}, nil
	}

	if strings.Contains(v, "://") {
		u, err := url.Parse(v)
		if err != nil {
			return ServerSpec{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "invalid gerrit url")
		}
		if !strings.EqualFold(u.Scheme, "https") {
			return ServerSpec{}, perr.Newf(perr.ErrorCodeInvalidArgument, "gerrit url must use https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return ServerSpec{}, perr.InvalidArgf("gerrit url %q has no host", v)
		}
		return ServerSpec{
			Mode:       SpecExplicitURL,
			Host:       strings.ToLower(u.Host),
			PathPrefix: cleanPrefix(u.Path),
		}, nil
	}

	host, rest, _ := strings.Cut(v, "/")
	if host == "" || strings.ContainsAny(host, " \t@?#") {
		return ServerSpec{}, perr.InvalidArgf("invalid gerrit host %q", v)
	}
	return ServerSpec{Mode: SpecExplicitHost, Host: strings.ToLower(host), PathPrefix: cleanPrefix(rest)}, nil
}

func cleanPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// PathStyle is the REST context root a server answered on
type PathStyle int

const (
	// PathDirect is the server root
	PathDirect PathStyle = iota
	// PathR is the "/r/" context root
	PathR
	// PathGerrit is the "/gerrit/" context root
	PathGerrit
	// PathAuthenticated is the "/a/" authenticated root
	PathAuthenticated
)

func (p PathStyle) String() string {
	switch p {
	case PathR:
		return "/r/"
	case PathGerrit:
		return "/gerrit/"
	case PathAuthenticated:
		return "/a/"
	default:
		return "/"
	}
}

// Endpoint is the base url chosen for one run
type Endpoint struct {
	BaseURL string // always ends in "/"
	Style   PathStyle
	Host    string
}

// Credentials are HTTP basic credentials
type Credentials struct {
	Username string `json:"-"`
	Password string `json:"-"`
}

// Present is true only when both parts are set
func (c Credentials) Present() bool { return c.Username != "" && c.Password != "" }

// String never reveals the secret
func (c Credentials) String() string {
	if !c.Present() {
		return "anonymous"
	}
	return "basic[redacted]"
}

// AutoHost derives the conventional Gerrit host for an org
func AutoHost(org string) (string, error) {
	org = strings.ToLower(strings.TrimSpace(org))
	if org == "" {
		return "", perr.NotFoundf("gerrit auto discovery needs a github org")
	}
	return "gerrit." + org + ".org", nil
}

// Candidates lists base urls to probe for host in order
// Credentials move the authenticated root to the front
func Candidates(host, prefix string, creds Credentials) []Endpoint {
	base := "https://" + host
	if prefix != "" {
		direct := Endpoint{BaseURL: base + prefix + "/", Style: PathDirect, Host: host}
		auth := Endpoint{BaseURL: base + prefix + "/a/", Style: PathAuthenticated, Host: host}
		if creds.Present() {
			return []Endpoint{auth, direct}
		}
		return []Endpoint{direct, auth}
	}

	order := []PathStyle{PathDirect, PathR, PathGerrit, PathAuthenticated}
	if creds.Present() {
		order = []PathStyle{PathAuthenticated, PathDirect, PathR, PathGerrit}
	}
	out := make([]Endpoint, 0, len(order))
	for _, s := range order {
		out = append(out, Endpoint{BaseURL: base + s.String(), Style: s, Host: host})
	}
	return out
}

// Locator finds the working REST root of a Gerrit server
type Locator struct {
	client *Client
}

// NewLocator creates a Locator probing through c
func NewLocator(c *Client) *Locator { return &Locator{client: c} }

// Locate resolves spec to an endpoint, probing each candidate at most once
func (l *Locator) Locate(ctx context.Context, spec ServerSpec, orgHint string, creds Credentials) (Endpoint, error) {
	var host string
	switch spec.Mode {
	case SpecDisabled:
		return Endpoint{}, perr.InvalidArgf("gerrit verification disabled")
	case SpecAuto:
		h, err := AutoHost(orgHint)
		if err != nil {
			return Endpoint{}, perr.WithOp(err, "gerrit.locate")
		}
		host = h
	default:
		host = spec.Host
	}

	log := logger.C(ctx)
	for _, ep := range Candidates(host, spec.PathPrefix, creds) {
		ver, err := l.client.Probe(ctx, ep.BaseURL, creds)
		if err == nil {
			log.Debug().Str("host", host).Str("candidate", ep.Style.String()).Str("version", ver).Msg("gerrit probe ok")
			return ep, nil
		}
		if perr.IsCanceled(err) {
			return Endpoint{}, err
		}
		log.Debug().Str("host", host).Str("candidate", ep.Style.String()).Int("status", StatusOf(err)).Err(err).Msg("gerrit probe failed")
	}
	return Endpoint{}, perr.WithOp(perr.NotFoundf("no gerrit server found at %s", host), "gerrit.locate")
}
