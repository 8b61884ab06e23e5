package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/adamwoolhether/httpflow/client"
	"github.com/adamwoolhether/httpflow/client/download"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)

	cf := commonFlags(fs)
	output := fs.String("o", "", "Destination file, directory, or bucket URL (required)")
	key := fs.String("key", "", "Object key when -o is a bucket URL (default: the suggested file name)")
	resume := fs.String("resume", "", "Resume token file; written on interrupt, read on the next run")
	checksum := fs.String("sha256", "", "Expected hex SHA-256 of the file")
	progress := fs.Bool("progress", false, "Log download progress")
	overwrite := fs.Bool("overwrite", false, "Replace an existing destination file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: httpflow download [options] URL

Download URL to a local file or directory, or into a bucket
(s3://, gs://, file://, mem://). With -resume an interrupted download
continues from where it stopped on the next run.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if *output == "" || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: -o and exactly one URL are required")
		fs.Usage()
		return ExitInvalidArgs
	}

	m, logger, err := cf.manager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	defer m.Invalidate(false)

	ctx, cancel := interruptible()
	defer cancel()

	var opts []download.Option
	if *checksum != "" {
		opts = append(opts, download.WithChecksum(sha256.New, strings.ToLower(*checksum)))
	}
	if *progress {
		opts = append(opts, download.WithProgress())
	}
	if *overwrite {
		opts = append(opts, download.WithRemoveExisting())
	}

	dest, closeDest, err := destination(ctx, *output, *key, &opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer closeDest()

	r, err := issue(m, logger, fs.Arg(0), *resume, dest, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	go func() {
		<-ctx.Done()
		r.Cancel()
	}()

	<-r.Done()
	err = r.Err()

	if *resume != "" {
		if code := saveResume(*resume, r, err); code != ExitSuccess {
			return code
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	fmt.Fprintf(os.Stderr, "[httpflow] Download complete: %s\n", r.Destination())
	return ExitSuccess
}

// destination resolves -o. A bucket URL installs a BlobMover in opts;
// the returned func releases it.
func destination(ctx context.Context, output, key string, opts *[]download.Option) (client.Destination, func(), error) {
	if strings.Contains(output, "://") {
		mover, err := download.OpenBucketMover(ctx, output)
		if err != nil {
			return nil, nil, err
		}
		*opts = append(*opts, download.WithMover(mover))

		dest := func(temp string, resp *http.Response) string {
			if key != "" {
				return key
			}
			return download.SuggestedName(temp, resp)
		}
		return dest, func() { mover.Close() }, nil
	}

	if fi, err := os.Stat(output); err == nil && fi.IsDir() {
		return client.ToDir(output), func() {}, nil
	}

	*opts = append(*opts, download.WithCreateDirs())
	return client.ToFile(output), func() {}, nil
}

// issue starts the download, continuing from the token in resumePath
// when one exists. Interrupts go through Request.Cancel so a token is
// produced; the request itself carries no deadline.
func issue(m *client.Manager, logger *slog.Logger, rawURL, resumePath string, dest client.Destination, opts []download.Option) (*client.Request, error) {
	if resumePath != "" {
		data, err := os.ReadFile(resumePath)
		switch {
		case err == nil && len(data) > 0:
			logger.Info("resuming download", "token", resumePath)
			return m.DownloadResume(data, dest, opts...).Validate().Resume(), nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading resume token: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	return m.Download(req, dest, opts...).Validate().Resume(), nil
}

// saveResume writes the resume token after an interrupted download and
// removes it after a finished one.
func saveResume(path string, r *client.Request, err error) int {
	if err == nil {
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error removing resume token: %v\n", rerr)
		}
		return ExitSuccess
	}

	data := r.ResumeData()
	if data == nil {
		return ExitSuccess
	}

	if werr := os.WriteFile(path, data, 0o600); werr != nil {
		fmt.Fprintf(os.Stderr, "Error writing resume token: %v\n", werr)
		return ExitGeneralError
	}
	fmt.Fprintf(os.Stderr, "[httpflow] Resume token saved to %s\n", path)

	return ExitSuccess
}
