// Package download finalizes completed downloads: it resolves where a
// file should live, verifies its checksum and moves it there, either on
// the local filesystem or into a [gocloud.dev/blob] bucket.
//
// # Destinations
//
// A [Destination] computes the final location from the transport's
// temporary file and the response:
//
//	dest := download.InDir("/var/cache/app") // Content-Disposition or URL name
//	dest := download.To("/tmp/report.pdf")
//
// # Finalizing
//
// [Finalizer] applies the [Option] set once the transfer is complete:
//
//	f, err := download.NewFinalizer(
//		download.WithChecksum(sha256.New, expected),
//		download.WithCreateDirs(),
//	)
//	err = f.Finalize(ctx, tempPath, dest)
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/httpflow/client] package, whose
// Manager.Download runs the finalizer when the transport reports the
// file is done.
package download
