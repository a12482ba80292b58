// Package sheetctl implements the sheetctl command line: writing fields,
// reading and watching sheets, and rolling dice against a running server.
package sheetctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/okian/openrpg/internal/adapters/http/client"
	"github.com/okian/openrpg/internal/config"
	"github.com/okian/openrpg/internal/domain/commit"
	"github.com/okian/openrpg/internal/domain/field"
	"github.com/okian/openrpg/internal/domain/sheet"
	"github.com/okian/openrpg/internal/domain/types"
)

// Version is reported by --version.
const Version = "0.1.0"

const defaultURL = "http://localhost:9080"

// Usage is the docopt grammar for sheetctl.
const Usage = `Sheet control.

Usage:
    sheetctl set [--url=<url>] [--timeout=<ms>] <resource_id> <field> <value>
    sheetctl get [--url=<url>] <resource_id>
    sheetctl watch [--url=<url>] [--count=<n>] <resource_id>
    sheetctl roll [--url=<url>] [--reference=<ref>] [--modifier=<mod>] [--standalone] <dice>
    sheetctl -h | --help
    sheetctl --version

Options:
    -h --help           Show this screen.
    --version           Show version.
    --url=<url>         Server base URL [default: ` + defaultURL + `].
    --timeout=<ms>      Commit timeout; defaults to commit_timeout_ms from the configuration.
    --count=<n>         Exit after this many changes; 0 watches until interrupted [default: 0].
    --reference=<ref>   Target number for classified rolls [default: 0].
    --modifier=<mod>    Modifier such as +2 or -1.
    --standalone        Roll a single die without the engine modifier.

Dice are written as [count]d<faces>[b], e.g. d20, 3d6 or d100b.`

// ErrUsage is returned for arguments that do not match Usage.
var ErrUsage = errors.New("usage error")

// Run parses args and executes the selected command, writing results to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	var helpText string
	var helpErr error
	parser := &docopt.Parser{
		HelpHandler: func(err error, usage string) {
			helpErr, helpText = err, usage
		},
	}
	opts, err := parser.ParseArgs(Usage, args, Version)
	if helpErr != nil || err != nil {
		fmt.Fprintln(out, helpText)
		return fmt.Errorf("%w: %v", ErrUsage, errors.Join(helpErr, err))
	}
	if helpText != "" {
		fmt.Fprintln(out, helpText)
		return nil
	}

	base, _ := opts.String("--url")
	c, err := client.New(base)
	if err != nil {
		return err
	}

	switch {
	case flag(opts, "set"):
		return set(ctx, c, opts, out)
	case flag(opts, "get"):
		return get(ctx, c, opts, out)
	case flag(opts, "watch"):
		return watch(ctx, c, opts, out)
	case flag(opts, "roll"):
		return roll(ctx, c, opts, out)
	}
	return ErrUsage
}

func flag(opts docopt.Opts, key string) bool {
	v, _ := opts.Bool(key)
	return v
}

// set commits one field the way a sheet does: through a bound field and a
// commit dispatcher bounded by the commit timeout. The field starts with no
// known value, so the write is always issued.
func set(ctx context.Context, c *client.Client, opts docopt.Opts, out io.Writer) error {
	resourceID, _ := opts.String("<resource_id>")
	fieldKey, _ := opts.String("<field>")
	raw, _ := opts.String("<value>")

	timeout, err := commitTimeout(ctx, opts)
	if err != nil {
		return err
	}

	var rejected error
	d := commit.NewDispatcher(c, commit.WithTimeout(timeout))
	s := sheet.New(resourceID)
	defer s.Close()

	f, err := sheet.BindField[any](s, fieldKey, nil, commit.For[any](d),
		field.WithReporter(field.ReporterFunc(func(_ context.Context, _ string, err error) {
			rejected = err
		})),
	)
	if err != nil {
		return err
	}

	f.Set(ctx, ParseValue(raw))
	// Close returns once the write has resolved into f.
	if err := d.Close(ctx); err != nil {
		return err
	}
	if rejected != nil {
		return rejected
	}
	return printJSON(out, types.FieldResult{Value: f.Confirmed()})
}

func commitTimeout(ctx context.Context, opts docopt.Opts) (time.Duration, error) {
	if ms, _ := opts.String("--timeout"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("%w: --timeout must be a positive number of milliseconds", ErrUsage)
		}
		return time.Duration(n) * time.Millisecond, nil
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.CommitTimeout(), nil
}

func get(ctx context.Context, c *client.Client, opts docopt.Opts, out io.Writer) error {
	resourceID, _ := opts.String("<resource_id>")
	fields, err := c.Snapshot(ctx, resourceID)
	if err != nil {
		return err
	}
	return printJSON(out, types.Snapshot{ResourceID: resourceID, Fields: fields})
}

func watch(ctx context.Context, c *client.Client, opts docopt.Opts, out io.Writer) error {
	resourceID, _ := opts.String("<resource_id>")
	count, err := opts.Int("--count")
	if err != nil || count < 0 {
		return fmt.Errorf("%w: --count must be a non-negative integer", ErrUsage)
	}

	stream, err := c.Subscribe(ctx, resourceID)
	if err != nil {
		return err
	}
	defer stream.Unsubscribe()

	for seen := 0; count == 0 || seen < count; seen++ {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-stream.Events():
			if !ok {
				return errors.New("change stream closed by server")
			}
			if err := printJSON(out, ch); err != nil {
				return err
			}
		}
	}
	return nil
}

func roll(ctx context.Context, c *client.Client, opts docopt.Opts, out io.Writer) error {
	notation, _ := opts.String("<dice>")
	req, err := ParseDice(notation)
	if err != nil {
		return err
	}
	if req.Reference, err = opts.Int("--reference"); err != nil {
		return fmt.Errorf("%w: --reference must be an integer", ErrUsage)
	}
	if m, _ := opts.String("--modifier"); m != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(m, "+"))
		if err != nil {
			return fmt.Errorf("%w: --modifier %q", ErrUsage, m)
		}
		req.Modifier = &n
	}
	req.Standalone = flag(opts, "--standalone")

	res, err := c.Roll(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(out, res)
}

// ParseDice reads [count]d<faces>[b] notation.
func ParseDice(s string) (types.DiceRequest, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(t, 'd')
	if i < 0 {
		return types.DiceRequest{}, fmt.Errorf("%w: dice %q", ErrUsage, s)
	}
	count := 1
	if i > 0 {
		n, err := strconv.Atoi(t[:i])
		if err != nil || n < 1 {
			return types.DiceRequest{}, fmt.Errorf("%w: dice count in %q", ErrUsage, s)
		}
		count = n
	}
	faces := t[i+1:]
	branched := strings.HasSuffix(faces, "b")
	faces = strings.TrimSuffix(faces, "b")
	f, err := strconv.Atoi(faces)
	if err != nil || f < 2 {
		return types.DiceRequest{}, fmt.Errorf("%w: dice faces in %q", ErrUsage, s)
	}
	return types.DiceRequest{Faces: f, Count: count, Branched: branched}, nil
}

// ParseValue turns command line text into a JSON value: numbers, booleans
// and quoted strings are decoded, anything else is sent as text.
func ParseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case float64, bool, string:
			return v
		}
	}
	return s
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
