/*
Package http contains the gin handlers for the snippet service.

Three routes exist:

	GET  /health  always {"ok":true}
	POST /run     {"code": "..."} executed once in a fresh context
	*             {"ok":false,"error":"Not found"} with status 404

A run request moves through a fixed sequence of phases (see Phase). Client
errors are answered with 400 before any context is built and carry no logs.
Execution failures are answered with 500 and carry every console record
captured up to the failure, followed by the error itself.

Each request gets exactly one response; respond drops and logs any second
write.
*/
package http
