// Command fetchctl exercises the fetch proxy from a terminal, driving the
// client lifecycle state machine the same way the browser UI does: an
// escalating status line while the fetch is in flight, then the parsed
// preview or a classified error with a suggested next step.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/metascope/backend/internal/lifecycle"
	"github.com/metascope/backend/internal/metadata"
	"github.com/metascope/backend/internal/proxy"
)

type proxyResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`

	URL           string              `json:"url"`
	FinalURL      string              `json:"finalUrl"`
	StatusCode    int                 `json:"statusCode"`
	ContentType   string              `json:"contentType"`
	RedirectChain []proxy.RedirectHop `json:"redirectChain"`
	Timing        int64               `json:"timing"`
	Meta          *metadata.Tags      `json:"meta"`
}

func main() {
	server := flag.String("server", "http://localhost:8000", "Proxy base URL")
	token := flag.String("token", "", "Bearer token, if the proxy is gated")
	timeout := flag.Duration("timeout", 12*time.Second, "Client-side wait limit")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fetchctl [flags] <url>")
		os.Exit(2)
	}
	target := flag.Arg(0)

	machine := lifecycle.NewMachine(
		lifecycle.WithTicker(100*time.Millisecond, func(st lifecycle.State, elapsed time.Duration) {
			if st.Phase != lifecycle.PhaseFetching && st.Phase != lifecycle.PhaseParsing {
				return
			}
			_, msg := lifecycle.StatusMessage(st.URL, elapsed, *timeout)
			fmt.Fprintf(os.Stderr, "\r\033[K%s", msg)
		}),
	)

	if err := run(machine, *server, *token, *timeout, target); err != nil {
		fmt.Fprintf(os.Stderr, "fetchctl: %v\n", err)
		os.Exit(1)
	}

	st := machine.State()
	fmt.Fprint(os.Stderr, "\r\033[K")
	if st.Phase == lifecycle.PhaseError {
		fmt.Printf("error (%s): %s\n  %s\n", st.Code, st.Message, st.Suggestion)
		os.Exit(1)
	}
}

func run(machine *lifecycle.Machine, server, token string, timeout time.Duration, target string) error {
	if err := machine.StartAttempt(target); err != nil {
		return err
	}
	if err := machine.BeginFetch(); err != nil {
		return err
	}

	client := resty.New().SetTimeout(timeout)
	req := client.R().SetBody(map[string]string{"url": target})
	if token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Post(server + "/api/fetch")
	if err != nil {
		return machine.FailFromResponse(0, err.Error())
	}

	if err := machine.BeginParse(); err != nil {
		return err
	}

	var out proxyResponse
	if err := sonic.Unmarshal(resp.Body(), &out); err != nil {
		return machine.FailFromResponse(resp.StatusCode(), "")
	}
	if !out.OK {
		return machine.FailFromResponse(resp.StatusCode(), out.Code)
	}

	render(&out)
	return machine.Complete()
}

func render(out *proxyResponse) {
	fmt.Fprint(os.Stderr, "\r\033[K")
	fmt.Printf("%s  (%d, %s, %dms)\n", out.FinalURL, out.StatusCode, out.ContentType, out.Timing)
	for _, hop := range out.RedirectChain {
		fmt.Printf("  %d %s -> %s\n", hop.Status, hop.From, hop.To)
	}
	if out.Meta == nil {
		return
	}
	if out.Meta.Title != "" {
		fmt.Printf("title:      %s\n", out.Meta.Title)
	}
	if desc := out.Meta.Standard["description"]; desc != "" {
		fmt.Printf("desc:       %s\n", desc)
	}
	if out.Meta.Canonical != "" {
		fmt.Printf("canonical:  %s\n", out.Meta.Canonical)
	}
	for k, v := range out.Meta.OpenGraph {
		fmt.Printf("%-11s %s\n", k+":", v)
	}
	for k, v := range out.Meta.Twitter {
		fmt.Printf("%-11s %s\n", k+":", v)
	}
	if n := len(out.Meta.JSONLD); n > 0 {
		fmt.Printf("json-ld:    %d block(s)\n", n)
	}
}
