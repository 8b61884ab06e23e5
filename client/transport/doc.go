// Package transport defines the task-based transport the client runtime
// sits on, and provides an implementation backed by [net/http].
//
// A [Session] creates [Task] values for plain requests, uploads and
// downloads. Tasks start suspended; once resumed they deliver their
// lifecycle events (redirects, authentication challenges, body chunks,
// progress, completion) to the session's [Handler] from the task's own
// goroutine. Events for one task are delivered in order and never
// concurrently; events for different tasks may arrive in parallel.
//
// # HTTP Session
//
//	s, err := transport.NewHTTPSession(
//		transport.WithTimeout(30*time.Second),
//		transport.WithMaxConcurrent(8),
//	)
//	s.SetHandler(h)
//	task, err := s.NewDataTask(req)
//	task.Resume()
//
// Cancelled downloads can hand back opaque resume data with
// [Task.CancelByProducingResumeData]; pass it to
// [Session.NewDownloadTaskWithResumeData] to continue from the bytes
// already on disk.
package transport
