// Package http implements the REST handlers of the robokin server.
//
// Handlers are thin: they decode and validate the request, call a service
// from internal/services and render the result with go-chi/render. Failures
// go through the shared errors.ErrorHandler so every error response is an
// RFC 7807 problem document carrying the request's trace_id.
//
// Routes mounted by the application:
//
//	POST   /api/v1/operations        queue a pipeline run (202 + operation_id)
//	GET    /api/v1/operations        list jobs (?status=&limit=)
//	GET    /api/v1/operations/{id}   job plus live step snapshot
//	DELETE /api/v1/operations/{id}   cancel a pending or running job
//	GET    /api/v1/runs              run statistics from the sqlite sink
//	GET    /healthz, /readyz, /version
package http
