package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hive-api/internal/application/auth"
	"github.com/hive-api/internal/application/friend"
	"github.com/hive-api/internal/application/session"
	"github.com/hive-api/internal/application/user"
	"github.com/hive-api/internal/config"
	"github.com/hive-api/internal/transport/http/handler"
	appmiddleware "github.com/hive-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. The returned stop
// function releases the rate limiter's background goroutine.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, func()) {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on the credential and OTP endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:    deps.UserRepo,
		SessionRepo: deps.SessionRepo,
		JWTProvider: deps.JWTProvider,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:    deps.UserRepo,
		SessionRepo: deps.SessionRepo,
		JWTProvider: deps.JWTProvider,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		OTPRepo:             deps.OTPRepo,
		UserRepo:            deps.UserRepo,
		SessionRepo:         deps.SessionRepo,
		Mailer:              deps.Mailer,
		OTPTTL:              cfg.OTPTTL,
		PasswordResetWindow: cfg.PasswordResetWindow,
		Now:                 deps.Now,
	})
	friendSvc := friend.NewService(friend.ServiceDeps{
		UserRepo:  deps.UserRepo,
		GraphRepo: deps.UserRepo,
		Publisher: deps.Publisher,
	})

	cookie := handler.CookieSettings{MaxAge: deps.JWTProvider.Expiry(), Secure: cfg.IsProduction()}
	authMw := appmiddleware.Auth(sessionSvc, cookie.Secure)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(userSvc, sessionSvc, cookie)
	otpH := handler.NewOTPHandler(authSvc)
	friendH := handler.NewFriendHandler(friendSvc)
	profileH := handler.NewProfileHandler(userSvc, cookie.Secure)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/auth/is-authenticated", authH.IsAuthenticated)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/auth/register", authH.Register)
			r.Post("/auth/login", authH.Login)
			r.Post("/auth/send-otp", otpH.Send)
			r.Post("/auth/otp-verify", otpH.Verify)
			r.Post("/auth/set-new-password", otpH.SetNewPassword)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/logout", authH.Logout)
			r.Get("/auth/details", authH.Details)
			r.Get("/auth/user-details/{id}", authH.UserDetails)

			r.Route("/friends", func(r chi.Router) {
				r.Get("/search", friendH.Search)
				r.Post("/request", friendH.SendRequest)
				r.Post("/accept-request", friendH.AcceptRequest)
				r.Post("/reject-request", friendH.RejectRequest)
				r.Delete("/remove-friend/{friendId}", friendH.RemoveFriend)
				r.Get("/pending-requests", friendH.PendingRequests)
				r.Get("/online", friendH.OnlineFriends)
				r.Get("/all", friendH.AllFriends)
				r.Post("/block-user", friendH.BlockUser)
				r.Post("/unblock-user", friendH.UnblockUser)
				r.Get("/blocked", friendH.BlockedUsers)
			})

			r.Put("/profile/edit-profile", profileH.EditProfile)
			r.Put("/profile/change-password", profileH.ChangePassword)
		})
	})

	return r, sensitiveRL.Stop
}
