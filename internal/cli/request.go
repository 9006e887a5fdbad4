package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/griha/internal/app"
	"github.com/Adda-Baaj/griha/pkg/httpclient"
	"github.com/spf13/cobra"
)

// ErrRequestsFailed is returned when at least one request did not succeed.
var ErrRequestsFailed = errors.New("one or more requests failed")

type requestFlags struct {
	data        string
	fields      []string
	files       []string
	page        string
	concurrency int
}

// RequestCmd creates the request command.
func RequestCmd(env *Env) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "request METHOD PATH [PATH...]",
		Short: "Send requests through the CSRF pipeline",
		Long: `Send one request per PATH, concurrently, through the CSRF pipeline.
Mutating methods get the CSRF token attached; a 419 is retried once with a
fresh token; timed-out reads are retried. Each result line shows the status
and the failure classification. A 401 while --page is a protected page
prints the login redirect target.`,
		Example: `  griha request GET /properties /bookings
  griha request POST /contact --data '{"name":"Asha"}'
  griha request POST /documents --field title=lease --file doc=./lease.pdf
  griha request GET /me --page /portal/profile`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			calls, err := buildCalls(args[0], args[1:], flags)
			if err != nil {
				return err
			}
			return runRequest(cmd.Context(), env, calls, flags)
		},
	}
	cmd.Flags().StringVar(&flags.data, "data", "", "JSON request body")
	cmd.Flags().StringArrayVar(&flags.fields, "field", nil, "multipart form field as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&flags.files, "file", nil, "multipart file as field=path (repeatable)")
	cmd.Flags().StringVar(&flags.page, "page", "/", "frontend page the request is issued from")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 4, "maximum requests in flight")
	return cmd
}

func buildCalls(method string, paths []string, flags requestFlags) ([]app.Call, error) {
	if flags.data != "" && (len(flags.fields) > 0 || len(flags.files) > 0) {
		return nil, errors.New("--data cannot be combined with --field or --file")
	}
	fields, err := parsePairs("--field", flags.fields)
	if err != nil {
		return nil, err
	}
	files, err := parsePairs("--file", flags.files)
	if err != nil {
		return nil, err
	}

	calls := make([]app.Call, 0, len(paths))
	for _, p := range paths {
		calls = append(calls, app.Call{
			Method: method,
			Path:   p,
			JSON:   flags.data,
			Fields: fields,
			Files:  files,
		})
	}
	return calls, nil
}

func parsePairs(flag string, raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, pair := range raw {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid %s %q (want key=value)", flag, pair)
		}
		out[k] = v
	}
	return out, nil
}

func runRequest(ctx context.Context, env *Env, calls []app.Call, flags requestFlags) (err error) {
	rt, err := env.Open(ctx, flags.page)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	failed := 0
	for _, res := range rt.Send(ctx, calls, flags.concurrency) {
		if res.Err != nil {
			failed++
		}
		fmt.Fprintln(env.Stdout, formatResult(res))
	}
	for _, target := range rt.Navigations() {
		fmt.Fprintf(env.Stdout, "navigate %s\n", target)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrRequestsFailed, failed, len(calls))
	}
	return nil
}

func formatResult(res app.Result) string {
	method := strings.ToUpper(res.Call.Method)
	line := fmt.Sprintf("%s %s", method, res.Call.Path)
	if res.StatusCode != 0 {
		line += fmt.Sprintf(" %d", res.StatusCode)
	}
	if res.Err == nil {
		if body := strings.TrimSpace(string(res.Body)); body != "" {
			line += " " + body
		}
		return line
	}

	e, ok := httpclient.AsError(res.Err)
	if !ok {
		return line + " error: " + res.Err.Error()
	}
	return fmt.Sprintf("%s kind=%s network=%t timeout=%t csrf=%t unauthorized=%t retries=%d hint=%q",
		line, e.Kind, e.IsNetworkError(), e.IsTimeoutError(), e.IsCSRFError(), e.IsUnauthorized(), e.Retries, e.Hint)
}
