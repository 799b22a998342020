package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"buddyfeed/pkg/identity"
	"buddyfeed/pkg/logger"
)

type ctxKeyCaller struct{}

// caller is the outcome of resolving the request's credential. id is empty for anonymous
// requests; err is set when a credential was presented but rejected.
type caller struct {
	id  string
	err error
}

func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				log.Errorf("[requestIDMiddleware] failed to generate request ID for %v: %v", r.RemoteAddr, err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			reqID = id.String()
			log.Debugf("[requestIDMiddleware] generated request ID:%s for %v", reqID, r.RemoteAddr)
		}

		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), reqID)))
	})
}

func (api *API) headerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		setCORS(w)
		next.ServeHTTP(w, r)
	})
}

// callerMiddleware resolves the bearer token, if any. Handlers decide whether an
// anonymous or rejected caller may proceed. A token that cannot be checked because the
// directory is down fails the request with 503 rather than turning it anonymous.
func (api *API) callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c caller

		if header := r.Header.Get("Authorization"); header != "" {
			token := identity.BearerToken(header)
			if token == "" {
				c.err = identity.ErrMissingToken
			} else {
				c.id, c.err = api.auth.ResolveCaller(r.Context(), token)
			}
			if errors.Is(c.err, identity.ErrDirectoryUnavailable) {
				fail(w, r, "callerMiddleware", c.err)
				return
			}
			if c.err != nil {
				log.Debugf("[callerMiddleware][%s] credential rejected: %v", logger.Short(r.Context()), c.err)
			}
		}

		ctx := context.WithValue(r.Context(), ctxKeyCaller{}, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// viewer returns the caller id for routes where authentication is optional. A rejected
// credential makes the request anonymous.
func viewer(r *http.Request) string {
	c, _ := r.Context().Value(ctxKeyCaller{}).(caller)
	if c.err != nil {
		return ""
	}
	return c.id
}

// requireCaller returns the caller id or the reason the request is not authenticated.
func requireCaller(r *http.Request) (string, error) {
	c, _ := r.Context().Value(ctxKeyCaller{}).(caller)
	if c.err != nil {
		return "", c.err
	}
	if c.id == "" {
		return "", identity.ErrMissingToken
	}
	return c.id, nil
}

func (api *API) loggingMiddleware(lw LogWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rl := logger.New(w)
			defer func() {
				entry := logger.Entry{
					Timestamp:  time.Now().UTC(),
					IP:         getClientIP(r),
					StatusCode: rl.Status(),
					RequestID:  logger.RequestID(r.Context()),
					CallerID:   viewer(r),
					Method:     r.Method,
					Path:       r.URL.Path,
					Bytes:      rl.Written(),
					Duration:   time.Since(start).Seconds(),
					Service:    api.ServiceName,
				}
				go publish(lw, entry)
			}()

			next.ServeHTTP(rl, r)
		})
	}
}

func publish(lw LogWriter, entry logger.Entry) {
	b, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("[loggingMiddleware] failed to marshal log entry for request %s", entry.RequestID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = lw.WriteMessages(ctx, kafka.Message{Key: []byte(entry.RequestID), Value: b})
	if err != nil {
		log.Errorf("[loggingMiddleware] failed to write log to Kafka: %v", err)
		return
	}
	log.Debugf("[loggingMiddleware] log entry sent to Kafka request_id:%s", entry.RequestID)
}

func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	return ip
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")
}

func preflightHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
