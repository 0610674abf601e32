package common

// AuthorizationHeader carries the bearer credential on every request to the
// coordination service.
const AuthorizationHeader = "Authorization"

// BearerPrefix precedes the token inside AuthorizationHeader.
const BearerPrefix = "Bearer "

// APIPrefix is the versioned path prefix of the coordination service.
const APIPrefix = "/api/v1"
