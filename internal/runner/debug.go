package runner

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jacoelho/gqlstream/internal/output"
)

// debugRequest writes the outgoing request with secrets redacted.
func (r *Runner) debugRequest(req *http.Request) {
	dump, err := r.redactor.DumpRequest(req)
	if err != nil {
		r.logger.Warn("failed to dump request", zap.Error(err))
		return
	}
	r.writeDebug("REQUEST", dump)
}

// debugResponse writes the response head. It runs on the transport producer
// before the body is read.
func (r *Runner) debugResponse(resp *http.Response) {
	dump, err := r.redactor.DumpResponseHead(resp)
	if err != nil {
		r.logger.Warn("failed to dump response", zap.Error(err))
		return
	}
	r.writeDebug("RESPONSE", dump)
}

func (r *Runner) writeDebug(description string, dump []byte) {
	r.debugMu.Lock()
	defer r.debugMu.Unlock()

	if err := output.FormatDebug(r.format, r.debugOut, description, dump); err != nil {
		r.logger.Warn("failed to write debug output", zap.Error(err))
	}
}
