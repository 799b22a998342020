package logger

import "net/http"

// ResponseLogger records the status code and body size written through it.
type ResponseLogger struct {
	http.ResponseWriter
	status  int
	written int
}

func New(w http.ResponseWriter) *ResponseLogger {
	return &ResponseLogger{ResponseWriter: w}
}

func (l *ResponseLogger) WriteHeader(code int) {
	if l.status == 0 {
		l.status = code
	}
	l.ResponseWriter.WriteHeader(code)
}

func (l *ResponseLogger) Write(b []byte) (int, error) {
	if l.status == 0 {
		l.status = http.StatusOK
	}
	n, err := l.ResponseWriter.Write(b)
	l.written += n
	return n, err
}

// Status is the code sent to the client, 200 when the handler never set one.
func (l *ResponseLogger) Status() int {
	if l.status == 0 {
		return http.StatusOK
	}
	return l.status
}

func (l *ResponseLogger) Written() int {
	return l.written
}
