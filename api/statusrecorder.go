package api

import "net/http"

// statusRecorder remembers the status code and body size a handler wrote so
// the access log can report them after the response has gone out.
type statusRecorder struct {
	http.ResponseWriter
	status    int
	bodyBytes int
}

func recordResponse(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	n, err := r.ResponseWriter.Write(data)
	r.bodyBytes += n
	return n, err
}
