// Command tagvalidate-gerrit checks that a tag signing key is registered on a Gerrit server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tagvalidate/internal/core/keymatch"
	"tagvalidate/internal/modkit"
	"tagvalidate/internal/modkit/module"
	"tagvalidate/internal/platform/config"
	"tagvalidate/internal/platform/logger"

	gvdom "tagvalidate/internal/services/gerritverify/domain"
	gvmod "tagvalidate/internal/services/gerritverify/module"
)

// transport is swapped in tests to reach an in-process Gerrit
var transport http.RoundTripper

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

type cliOpts struct {
	owner        string
	server       string
	org          string
	keyType      string
	username     string
	password     string
	requireOwner string
	enumerate    bool
	jsonOut      bool
	testMode     bool
	timeout      time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger.Init(logger.FromEnv())
	root := config.New()
	env := root.Prefix("GERRIT_")

	var o cliOpts
	fs := flag.NewFlagSet("tagvalidate-gerrit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.owner, "owner", "", "key owner email or Gerrit username")
	fs.StringVar(&o.owner, "o", "", "shorthand for --owner")
	fs.StringVar(&o.server, "server", env.MayString("SERVER", ""), "gerrit server: true|false|HOST|URL (env GERRIT_SERVER)")
	fs.StringVar(&o.server, "s", env.MayString("SERVER", ""), "shorthand for --server")
	fs.StringVar(&o.org, "github-org", "", "github org used to derive gerrit.<org>.org")
	fs.StringVar(&o.keyType, "type", "", "key type: ssh|gpg (default: detect)")
	fs.StringVar(&o.keyType, "t", "", "shorthand for --type")
	fs.StringVar(&o.username, "gerrit-username", env.MayString("USERNAME", ""), "gerrit http username (env GERRIT_USERNAME)")
	fs.StringVar(&o.password, "gerrit-password", env.MaySecret("PASSWORD"), "gerrit http password (env GERRIT_PASSWORD)")
	fs.StringVar(&o.requireOwner, "require-owner", strings.Join(env.MayCSV("REQUIRE_OWNER", nil), ","), "comma-separated emails the account must own (env GERRIT_REQUIRE_OWNER)")
	fs.BoolVar(&o.enumerate, "enumerate", false, "fetch both key kinds and report counts")
	fs.BoolVar(&o.jsonOut, "json", false, "print JSON")
	fs.BoolVar(&o.jsonOut, "j", false, "shorthand for --json")
	fs.BoolVar(&o.testMode, "test-mode", false, "detect and normalize the key without contacting gerrit")
	fs.DurationVar(&o.timeout, "timeout", env.MayDuration("TIMEOUT", 10*time.Second), "per-request timeout (env GERRIT_TIMEOUT)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tagvalidate-gerrit KEY --owner EMAIL|USERNAME [--server true|false|HOST|URL] [--github-org ORG] [flags]")
		fs.PrintDefaults()
	}

	pos, err := parseInterleaved(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if len(pos) != 1 {
		fs.Usage()
		return exitUsage
	}
	key := strings.TrimSpace(pos[0])
	// an authorized_keys line ("ssh-ed25519 AAAA...") stands in for its fingerprint
	if fp, err := keymatch.SSHFingerprint(key); err == nil {
		key = fp
	}

	kind := keymatch.DetectKind(key)
	if o.keyType != "" {
		k, ok := keymatch.ParseKind(o.keyType)
		if !ok {
			usageError(stdout, o.jsonOut, fmt.Sprintf("invalid --type %q, expected ssh or gpg", o.keyType))
			return exitUsage
		}
		kind = k
	}

	if o.testMode {
		return printTestMode(stdout, o, key, kind)
	}

	if strings.TrimSpace(o.owner) == "" {
		usageError(stdout, o.jsonOut, "--owner is required")
		return exitUsage
	}
	server := strings.TrimSpace(o.server)
	if server == "" && strings.TrimSpace(o.org) == "" {
		usageError(stdout, o.jsonOut, "Either --server or --github-org must be provided")
		return exitUsage
	}
	if server == "" {
		server = "true"
	}

	deps := modkit.Deps{Log: *logger.Get(), Cfg: root}
	mod := gvmod.New(deps, gvmod.Options{Timeout: o.timeout}, transport)
	module.Register(mod)
	ports, ok := module.PortsAs[gvmod.Ports](gvmod.Name)
	if !ok {
		logger.Get().Error().Str("module", gvmod.Name).Msg("verifier ports not registered")
		return exitFail
	}

	res := ports.Verifier.Verify(ctx, gvdom.Request{
		Owner:        o.owner,
		KeyType:      string(kind),
		Key:          key,
		Server:       server,
		GitHubOrg:    o.org,
		Username:     o.username,
		Password:     o.password,
		RequireOwner: splitCSV(o.requireOwner),
		Enumerate:    o.enumerate,
	})

	if o.jsonOut {
		printJSON(stdout, reportFor(res))
	} else {
		printText(stdout, res)
	}
	if res.Verified {
		return exitOK
	}
	return exitFail
}

// parseInterleaved lets positional args sit between flags
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return pos, nil
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
