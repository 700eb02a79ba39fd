package batch

import "github.com/kailas-cloud/docsage/internal/domain/namespace"

// ItemStatus is the ingestion outcome of a single uploaded document.
type ItemStatus string

// Batch item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusSkipped ItemStatus = "skipped"
	StatusError   ItemStatus = "error"
)

// Result is the outcome of ingesting one document in a batch upload.
type Result struct {
	filename  string
	status    ItemStatus
	namespace namespace.Namespace
	chunks    int
	err       error
}

// NewOK creates a result for a stored document.
func NewOK(filename string, ns namespace.Namespace, chunks int) Result {
	return Result{filename: filename, status: StatusOK, namespace: ns, chunks: chunks}
}

// NewSkipped creates a result for content the session already ingested.
func NewSkipped(filename string, ns namespace.Namespace) Result {
	return Result{filename: filename, status: StatusSkipped, namespace: ns}
}

// NewError creates a failed result.
func NewError(filename string, err error) Result {
	return Result{filename: filename, status: StatusError, err: err}
}

// Filename returns the uploaded document name.
func (r Result) Filename() string { return r.filename }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Namespace returns the document's namespace (empty on error).
func (r Result) Namespace() namespace.Namespace { return r.namespace }

// Chunks returns the number of records written.
func (r Result) Chunks() int { return r.chunks }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
