// Package httpd implements the per-connection job: read one request line,
// serve one file, close.
//
// A Handler is built once with the shared configuration and document root
// source. Handler.Job wraps an accepted connection into a worker.Job; the job
// reads at most MaxRequestLine bytes looking for the first line, parses it
// with package request, and writes exactly one response:
//
//	HTTP/1.1 200 OK \r\n\r\n<file contents>
//
// Every failure is turned into an error-class response instead of escaping
// the job:
//
//	no request line / malformed line   400 BAD REQUEST
//	file missing                       404 NOT FOUND (NotFoundFile if configured)
//	PUT, POST                          405 METHOD NOT ALLOWED
//	request line over the limit        413 REQUEST TOO LARGE
//	file unreadable                    500 INTERNAL SERVER ERROR
//	unknown method token               501 NOT IMPLEMENTED
//
// Socket read/write errors are logged and end the job without a response.
// There are no headers, no content length and no keep-alive.
package httpd
