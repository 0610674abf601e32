// Package client talks to the coordination service over HTTP/JSON.
//
// # Overview
//
// Client is the contract the sync services consume: health ping, PIN-for-token
// exchange, and poll/send/delete for entries and faults. HTTPClient implements
// it with net/http, a rate limiter pacing outgoing requests, and a bearer
// token read from a TokenSource on every call.
//
// # Error Handling
//
// Non-2xx responses become *HTTPError. errors.Is matches ErrUnauthorized for
// 401 and ErrUnavailable for 502/503; IsAuthExpired picks out a 401 whose body
// carries expired=true. Requests that never got a response wrap ErrNetwork,
// or ErrTimeout when the request deadline passed. A deleted race is not an
// error: polls return it in RaceStatus and sends set SendResponse.Deleted.
//
// # Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations honor context
// cancellation.
package client
