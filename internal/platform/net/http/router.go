package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler is the plain handler shape routes are registered with
type Handler = func(http.ResponseWriter, *http.Request)

// Router is what modules mount routes on. It hides chi so module tests can
// mount against any Router
type Router interface {
	Get(path string, h Handler)
	Post(path string, h Handler)
	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Mux() http.Handler
}

type chiRouter struct{ r chi.Router }

func AdaptChi(m chi.Router) Router { return chiRouter{r: m} }

func (c chiRouter) Get(p string, h Handler)                   { c.r.Get(p, h) }
func (c chiRouter) Post(p string, h Handler)                  { c.r.Post(p, h) }
func (c chiRouter) Handle(p string, h http.Handler)           { c.r.Handle(p, h) }
func (c chiRouter) Use(mw ...func(http.Handler) http.Handler) { c.r.Use(mw...) }
func (c chiRouter) Mux() http.Handler                         { return c.r }
