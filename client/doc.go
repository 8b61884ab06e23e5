// Package client is an asynchronous HTTP client runtime built on a
// pluggable transport session.
//
// # Building a Manager
//
// Use [Build] to create a [Manager] with functional options:
//
//	m, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//	)
//
// Options can also come from a file or the environment with [LoadConfig]
// and [WithConfig].
//
// # Issuing Requests
//
// [Manager.Request], [Manager.Upload] and [Manager.Download] return a
// [Request] handle immediately; the transfer runs in the background.
// Validations and response handlers attached to the handle are queued
// and run once the request completes, in the order they were attached:
//
//	u := client.URL("https", "api.example.com", "/v1/resource")
//	req, err := client.NewRequest(ctx, http.MethodGet, u, client.WithAccept("application/json"))
//	m.Request(req).
//		Validate().
//		ResponseJSON(func(res client.Response[any]) {
//			if res.Err != nil { ... }
//		})
//
// Typed decoding uses the generic [OnResponse] with any serializer from
// [github.com/adamwoolhether/httpflow/client/serialize]:
//
//	client.OnResponse(r, serialize.Decodable[User](), func(res client.Response[User]) { ... })
//
// # Downloading Files
//
// Downloads stream to a temporary file which is moved to its
// destination when complete, optionally after checksum verification:
//
//	r := m.Download(req, client.ToDir("/var/cache"),
//		download.WithChecksum(sha256.New, expectedHex),
//		download.WithProgress(),
//	)
//
// Cancelling a download produces resume data that
// [Manager.DownloadResume] picks up again:
//
//	r.Cancel()
//	<-r.Done()
//	r = m.DownloadResume(r.ResumeData(), client.ToDir("/var/cache"))
//
// # Errors
//
// Every request ends with at most one terminal error: a [TransportError],
// [ValidationError], [FileSystemError], or [ErrCancelled]. Serializer
// failures ([SerializationError]) are reported to the handler that
// requested them.
package client
