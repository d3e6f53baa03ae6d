package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"campushub-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger
var db *sql.DB
var cfg *models.ConfigFile

var validate = validator.New()

// Setup wires the routes and returns the router; main owns the listener.
func Setup(_cfg *models.ConfigFile, _sugar *zap.SugaredLogger, _db *sql.DB) *chi.Mux {
	sugar = _sugar
	db = _db
	cfg = _cfg

	r := chi.NewRouter()

	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}

	if cfg.Cors {
		r.Use(AllowCors)
	}

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			r.Post("/login", Login)
			r.Post("/register", Register)
			r.With(UserVerifier).Get("/isLoggedIn", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		})

		api.Route("/server", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Post("/create", CreateServer)
			r.Get("/fetch", GetServerList)
			r.Get("/discover", DiscoverServers)
			r.Get("/get", GetServer)
			r.Post("/update", UpdateServer)
			r.Post("/delete", DeleteServer)
			r.Post("/transfer", TransferOwnership)
			r.Post("/join", JoinServer)
			r.Post("/leave", LeaveServer)
			r.Post("/kick", KickMember)
			r.Post("/ban", BanMember)
			r.Post("/acceptRules", AcceptRules)
		})

		api.Route("/invite", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Post("/create", CreateInvite)
			r.Get("/fetch", GetInviteList)
			r.Post("/redeem", RedeemInvite)
		})

		api.Route("/channel", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Post("/create", CreateChannel)
			r.Get("/fetch", GetChannelList)
		})

		api.Route("/message", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Post("/create", CreateMessage)
			r.Get("/fetch", GetMessageList)
			r.Post("/delete", DeleteMessage)
		})

		api.Route("/members", func(r chi.Router) {
			r.Use(UserVerifier)
			r.Get("/fetch", GetMemberList)
		})
	})

	if !cfg.BehindNginx {
		r.Handle("/cdn/*", http.StripPrefix("/cdn/", http.FileServer(http.Dir("./public"))))
		r.Handle("/*", http.FileServer(http.Dir("./public/static")))
	}

	return r
}
