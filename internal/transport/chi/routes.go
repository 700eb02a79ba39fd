package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ParamErrorFunc renders a parameter binding failure.
type ParamErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// ServerOptions configures route registration.
type ServerOptions struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc ParamErrorFunc
}

// HandlerWithOptions registers the API routes on opts.BaseRouter (a new router when nil).
func HandlerWithOptions(s *Server, opts ServerOptions) http.Handler {
	r := opts.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	onErr := opts.ErrorHandlerFunc
	if onErr == nil {
		onErr = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		}
	}
	b := binder{onErr: onErr}

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/usage", b.usage(s.GetUsage))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Delete("/{id}", b.session(s.DeleteSession))
		r.Post("/{id}/documents", b.session(s.UploadDocuments))
		r.Post("/{id}/ask", b.ask(s.AskQuestion))
		r.Get("/{id}/history", b.session(s.GetHistory))
	})

	return r
}

// binder decodes path and query parameters the way generated oapi handlers do.
type binder struct {
	onErr ParamErrorFunc
}

func (b binder) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		b.onErr(w, r, fmt.Errorf("invalid format for parameter id: %w", err))
		return "", false
	}
	return id, true
}

func (b binder) session(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := b.sessionID(w, r)
		if !ok {
			return
		}
		h(w, r, id)
	}
}

func (b binder) ask(h func(http.ResponseWriter, *http.Request, string, *int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := b.sessionID(w, r)
		if !ok {
			return
		}
		var topK *int
		if err := runtime.BindQueryParameter("form", true, false, "top_k", r.URL.Query(), &topK); err != nil {
			b.onErr(w, r, fmt.Errorf("invalid format for parameter top_k: %w", err))
			return
		}
		h(w, r, id, topK)
	}
}

func (b binder) usage(h func(http.ResponseWriter, *http.Request, *string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var period *string
		if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &period); err != nil {
			b.onErr(w, r, fmt.Errorf("invalid format for parameter period: %w", err))
			return
		}
		h(w, r, period)
	}
}
