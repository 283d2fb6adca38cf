// Command shasum prints or checks SHA-256 sums, optionally registering every
// computed sum with a digest server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Heidric/digest.git/internal/crypto"
	"github.com/Heidric/digest.git/internal/model"
	"github.com/Heidric/digest.git/internal/sumfile"
)

const stdinName = "-"

var (
	errStdinRepeated = errors.New("standard input (-) listed more than once")
	errStdinConsumed = errors.New("standard input (-) already read as the sum listing")
)

type cli struct {
	Files  []string `arg:"" optional:"" help:"Files to hash. Standard input when empty or -."`
	Check  string   `short:"c" placeholder:"FILE" help:"Read sums from FILE and verify them."`
	Jobs   int      `short:"j" default:"4" help:"Files hashed in parallel."`
	Chunk  int      `default:"65536" help:"Read size in bytes."`
	Report string   `placeholder:"URL" env:"SHASUM_REPORT" help:"Digest server base URL to register every computed sum with."`
}

type result struct {
	name string
	sum  crypto.Sum
	size int64
	err  error
}

// stdinOnce rejects names that would read stdin twice. A nil stdin has
// already been consumed by the caller.
func stdinOnce(names []string, stdin io.Reader) error {
	seen := false
	for _, name := range names {
		if name != stdinName {
			continue
		}
		if stdin == nil {
			return errors.WithStack(errStdinConsumed)
		}
		if seen {
			return errors.WithStack(errStdinRepeated)
		}
		seen = true
	}
	return nil
}

// hashAll hashes names with at most jobs files in flight. Results keep the
// order of names; a failed file carries its error instead of a sum.
func hashAll(ctx context.Context, names []string, jobs, chunk int, stdin io.Reader) ([]result, error) {
	if err := stdinOnce(names, stdin); err != nil {
		return nil, err
	}

	results := make([]result, len(names))

	g, ctx := errgroup.WithContext(ctx)
	if jobs < 1 {
		jobs = 1
	}
	g.SetLimit(jobs)

	for i, name := range names {
		i, name := i, name
		results[i].name = name
		g.Go(func() error {
			res := &results[i]
			if name == stdinName {
				res.sum, res.size, res.err = crypto.HashReader(ctx, stdin, chunk)
			} else {
				res.sum, res.size, res.err = crypto.HashFile(ctx, name, chunk)
			}
			if errors.Is(res.err, context.Canceled) {
				return res.err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// check verifies every entry of the listing read from r and reports each one
// on out. It returns the number of entries that did not verify.
func check(ctx context.Context, r io.Reader, out io.Writer, jobs, chunk int, stdin io.Reader) (int, error) {
	entries, err := sumfile.Parse(r)
	if err != nil {
		return 0, err
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}

	results, err := hashAll(ctx, names, jobs, chunk, stdin)
	if err != nil {
		return 0, err
	}

	failed := 0
	for i, res := range results {
		switch {
		case res.err != nil:
			failed++
			fmt.Fprintf(out, "%s: FAILED open or read\n", res.name)
		case !crypto.Equal(res.sum, entries[i].Sum):
			failed++
			fmt.Fprintf(out, "%s: FAILED\n", res.name)
		default:
			fmt.Fprintf(out, "%s: OK\n", res.name)
		}
	}
	return failed, nil
}

type reporter struct {
	baseURL string
	client  *http.Client
}

func newReporter(baseURL string) *reporter {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &reporter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (rp *reporter) compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	if _, err := gz.Write(data); err != nil {
		return nil, err
	}

	if err := gz.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// send registers one digest with the server.
func (rp *reporter) send(ctx context.Context, d model.Digest) error {
	body, err := json.Marshal(d)
	if err != nil {
		return errors.WithStack(err)
	}

	compressedBody, err := rp.compressData(body)
	if err != nil {
		return errors.Wrap(err, "compress body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rp.baseURL+"/register", bytes.NewReader(compressedBody))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := rp.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post digest")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return errors.Errorf("register %s: unexpected status %d", d.Name, resp.StatusCode)
	}
	return nil
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, params cli, stdin io.Reader, stdout, stderr io.Writer) int {
	if params.Check != "" {
		var listing io.Reader = stdin
		files := stdin
		if params.Check == stdinName {
			files = nil
		} else {
			fd, err := os.Open(params.Check)
			if err != nil {
				fmt.Fprintf(stderr, "shasum: %v\n", err)
				return 1
			}
			defer fd.Close()
			listing = fd
		}

		failed, err := check(ctx, listing, stdout, params.Jobs, params.Chunk, files)
		if err != nil {
			fmt.Fprintf(stderr, "shasum: %s: %v\n", params.Check, err)
			return 1
		}
		if failed > 0 {
			fmt.Fprintf(stderr, "shasum: WARNING: %d computed checksum(s) did NOT match\n", failed)
			return 1
		}
		return 0
	}

	names := params.Files
	if len(names) == 0 {
		names = []string{stdinName}
	}

	results, err := hashAll(ctx, names, params.Jobs, params.Chunk, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "shasum: %v\n", err)
		return 1
	}

	var rp *reporter
	if params.Report != "" {
		rp = newReporter(params.Report)
	}

	code := 0
	for _, res := range results {
		if res.err != nil {
			fmt.Fprintf(stderr, "shasum: %s: %v\n", res.name, res.err)
			code = 1
			continue
		}
		if err := sumfile.Format(stdout, res.sum, res.name); err != nil {
			fmt.Fprintf(stderr, "shasum: %v\n", err)
			return 1
		}
		if rp == nil {
			continue
		}

		d := model.Digest{Name: res.name, SHA256: res.sum.String(), Size: res.size}
		if err := rp.send(ctx, d); err != nil {
			fmt.Fprintf(stderr, "shasum: report %s: %v\n", res.name, err)
			code = 1
		}
	}
	return code
}

func main() {
	var params cli
	kong.Parse(&params,
		kong.Name("shasum"),
		kong.Description("Print or check SHA-256 checksums."),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, params, os.Stdin, os.Stdout, os.Stderr))
}
