package handler

import (
	"net/http"

	"portal/internal/middleware"

	"github.com/gorilla/mux"
)

// Routes binds the portal's handlers to their paths. LoginLimit and
// Idempotent may be nil; Authenticate may not.
type Routes struct {
	Auth    *AuthHandler
	KYC     *KYCHandler
	Proxy   *ProxyHandler
	Events  *EventsHandler
	System  *SystemHandler
	Metrics http.Handler

	Authenticate mux.MiddlewareFunc
	LoginLimit   mux.MiddlewareFunc
	Idempotent   mux.MiddlewareFunc
}

func passThrough(next http.Handler) http.Handler { return next }

// Register mounts every route on r.
func (rt Routes) Register(r *mux.Router) {
	loginLimit := rt.LoginLimit
	if loginLimit == nil {
		loginLimit = passThrough
	}
	idempotent := rt.Idempotent
	if idempotent == nil {
		idempotent = passThrough
	}

	if rt.System != nil {
		r.HandleFunc("/health", rt.System.Health).Methods("GET")
	}
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Auth routes
	api.Handle("/auth/login", loginLimit(http.HandlerFunc(rt.Auth.Login))).Methods("POST", "OPTIONS")

	authed := api.NewRoute().Subrouter()
	authed.Use(rt.Authenticate)
	authed.HandleFunc("/auth/logout", rt.Auth.Logout).Methods("POST", "OPTIONS")
	authed.HandleFunc("/auth/session", rt.Auth.Session).Methods("GET")
	authed.HandleFunc("/auth/context", rt.Auth.SwitchContext).Methods("POST", "OPTIONS")
	authed.HandleFunc("/kyc/statuses", rt.KYC.Statuses).Methods("GET")

	// Live KYC events for the admin dashboard.
	authed.Handle("/events", middleware.RequireAdmin(rt.Events)).Methods("GET")

	// Admin routes
	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)

	kycRouter := admin.PathPrefix("/kyc").Subrouter()
	kycRouter.HandleFunc("/pending", rt.KYC.ListPending).Methods("GET")
	kycRouter.HandleFunc("/statistics", rt.KYC.Statistics).Methods("GET")
	kycRouter.HandleFunc("/{orgID}", rt.KYC.Get).Methods("GET")
	kycRouter.Handle("/{orgID}/status", idempotent(http.HandlerFunc(rt.KYC.UpdateStatus))).Methods("PUT", "OPTIONS")
	kycRouter.HandleFunc("/{orgID}/attempts", rt.KYC.Attempts).Methods("GET")

	// Every KYC change goes through UpdateStatus. Other methods and sub-paths
	// under /kyc end here instead of falling through to the backend proxy.
	for _, path := range []string{"/pending", "/statistics", "/{orgID}", "/{orgID}/status", "/{orgID}/attempts"} {
		kycRouter.HandleFunc(path, methodNotAllowed)
	}
	kycRouter.PathPrefix("/").HandlerFunc(notFound)

	admin.PathPrefix("/").Handler(idempotent(rt.Proxy))

	// Vendor routes
	vendor := authed.PathPrefix("/vendor").Subrouter()
	vendor.Use(middleware.RequireVendor)
	vendor.PathPrefix("/").Handler(idempotent(rt.Proxy))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "Method not allowed",
		"code":  "method_not_allowed",
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusNotFound, map[string]string{
		"error": "Not found",
		"code":  "not_found",
	})
}
