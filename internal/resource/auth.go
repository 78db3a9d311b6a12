package resource

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ezotic/devcamper-api/internal/codec"
	"github.com/ezotic/devcamper-api/internal/domain"
)

// AuthGroup reserves the authentication endpoints. Authentication is
// handled outside this service, so every route answers 501.
type AuthGroup struct{}

// Routes implements routes.Group.
func (AuthGroup) Routes() http.Handler {
	r := chi.NewRouter()
	notImplemented := codec.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return domain.ErrNotImplemented("Authentication is not available")
	})
	r.Post("/register", notImplemented)
	r.Post("/login", notImplemented)
	r.Get("/logout", notImplemented)
	r.Get("/me", notImplemented)
	r.Put("/updatedetails", notImplemented)
	r.Put("/updatepassword", notImplemented)
	r.Post("/forgotpassword", notImplemented)
	r.Put("/resetpassword/{token}", notImplemented)
	return r
}
