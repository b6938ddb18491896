package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ptfoundation/pandham-backend/api/controllers"
	"github.com/ptfoundation/pandham-backend/api/middleware"
	"github.com/ptfoundation/pandham-backend/internal/adminauth"
	"github.com/ptfoundation/pandham-backend/internal/catalog"
	"github.com/ptfoundation/pandham-backend/internal/contributions"
	"github.com/ptfoundation/pandham-backend/internal/inventory"
	"github.com/ptfoundation/pandham-backend/internal/otp"
	"github.com/ptfoundation/pandham-backend/internal/requests"
	"github.com/ptfoundation/pandham-backend/pkg/config"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
)

// Deps collects everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis controllers.Pinger

	Catalog       catalog.Service
	Inventory     inventory.Service
	Contributions contributions.Service
	Requests      requests.Service
	OTP           otp.Service
	AdminAuth     adminauth.Service
}

// NewRouter assembles the public and admin API surfaces.
func NewRouter(deps Deps) http.Handler {
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/books", controllers.ListBooks(deps.Catalog, logg))
		r.Get("/books/{bookId}", controllers.GetBook(deps.Catalog, logg))
		r.Get("/target-groups", controllers.ListTargetGroups(deps.Catalog, logg))

		r.Post("/otp/send", controllers.SendOTP(deps.OTP, logg))

		r.Post("/contributions", controllers.CreateContribution(deps.Contributions, deps.OTP, logg))
		r.Get("/contributions/{reference}", controllers.GetContribution(deps.Contributions, logg))
		r.Post("/contributions/{reference}/notify-payment", controllers.NotifyPayment(deps.Contributions, logg))

		r.Post("/requests", controllers.SubmitRequest(deps.Requests, deps.OTP, logg))
		r.Get("/requests/{reference}", controllers.GetRequest(deps.Requests, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/auth/login", controllers.AdminLogin(deps.AdminAuth, logg))
		if deps.Config != nil && !deps.Config.App.IsProd() {
			r.Post("/auth/register", controllers.AdminRegister(deps.AdminAuth, logg))
		}

		r.Group(func(r chi.Router) {
			if deps.Config != nil {
				r.Use(middleware.AdminAuth(deps.Config.JWT, logg))
			}

			r.Post("/books", controllers.CreateBook(deps.Catalog, logg))
			r.Patch("/books/{bookId}", controllers.UpdateBook(deps.Catalog, logg))
			r.Delete("/books/{bookId}", controllers.DeleteBook(deps.Catalog, logg))
			r.Get("/books/{bookId}/stock", controllers.GetBookStock(deps.Inventory, logg))

			r.Post("/transactions", controllers.RecordTransaction(deps.Inventory, logg))
			r.Get("/transactions", controllers.ListTransactions(deps.Inventory, logg))

			r.Get("/contributions", controllers.ListContributions(deps.Contributions, logg))
			r.Patch("/contributions/{reference}/complete", controllers.CompleteContribution(deps.Contributions, logg))

			r.Get("/requests", controllers.ListRequests(deps.Requests, logg))
			r.Post("/requests/{reference}/reevaluate", controllers.ReevaluateRequest(deps.Requests, logg))
		})
	})

	return r
}
