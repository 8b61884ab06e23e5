package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/adamwoolhether/httpflow/client"
)

func runGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ExitOnError)

	cf := commonFlags(fs)
	accept := fs.String("accept", "", "Comma separated media types for the Accept header")
	validate := fs.Bool("validate", false, "Fail unless the status is 2xx and the Content-Type is accepted")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: httpflow get [options] URL

Fetch URL and print the body decoded with the response's charset.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one URL is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	m, _, err := cf.manager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	defer m.Invalidate(false)

	ctx, cancel := interruptible()
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fs.Arg(0), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if *accept != "" {
		req.Header.Set("Accept", strings.TrimSpace(*accept))
	}

	r := m.Request(req)
	if *validate {
		r.Validate()
	}

	var body string
	var bodyErr error
	r.ResponseString(func(res client.Response[string]) {
		body, bodyErr = res.Value, res.Err
	})
	r.Resume()

	go func() {
		<-ctx.Done()
		r.Cancel()
	}()

	<-r.Done()
	if err := r.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	if bodyErr != nil {
		fmt.Fprintf(os.Stderr, "Error decoding body: %v\n", bodyErr)
		return ExitGeneralError
	}

	fmt.Print(body)
	return ExitSuccess
}
