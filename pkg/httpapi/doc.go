// Package httpapi exposes the control plane's REST surface: creating
// and mutating API definitions, rendering Envoy bootstrap documents,
// team-scoped secret CRUD, session login, and filter attach/detach.
//
// Router maps each method and path onto a plain net/http handler. Each
// handler extracts the AuthContext (authContext), decodes its JSON body
// into a request struct (decodeJSON), and then makes the
// storage/materializer/authz calls; Login is also exposed as a method
// taking an already-decoded LoginRequest.
//
// Every handler is instrumented with pkg/metrics' APIRequestsTotal and
// APIRequestDuration, and AuthFailuresTotal on a denied AuthContext,
// matching a request-metering idiom used elsewhere in this codebase.
package httpapi
