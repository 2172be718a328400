package handlers

import (
	"net/http"

	"gnarhub-backend/internal/middleware"
	"gnarhub-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles what the HTTP layer calls into
type Services struct {
	Users         *services.UserService
	Sessions      *services.SessionService
	Bookings      *services.BookingService
	Conversations *services.ConversationService
	Reviews       *services.ReviewService
	Hub           *services.WSHub
}

// NewRouter builds the HTTP routes
func NewRouter(svc Services) http.Handler {
	userHandler := NewUserHandler(svc.Users)
	sessionHandler := NewSessionHandler(svc.Sessions)
	requestHandler := NewRequestHandler(svc.Bookings)
	conversationHandler := NewConversationHandler(svc.Conversations)
	reviewHandler := NewReviewHandler(svc.Reviews)
	adminHandler := NewAdminHandler(svc.Reviews, svc.Sessions)
	wsHandler := NewWebSocketHandler(svc.Hub, svc.Users)

	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS)
	r.Use(middleware.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)
		r.Get("/mountains", ListMountains)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(svc.Users))

			r.Get("/users/me", userHandler.GetMe)
			r.Patch("/users/me", userHandler.UpdateMe)
			r.Get("/users/{user_id}", userHandler.GetUser)

			r.Get("/sessions", sessionHandler.ListSessions)
			r.Post("/sessions", sessionHandler.CreateSession)
			r.Route("/sessions/{session_id}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Patch("/", sessionHandler.UpdateSession)
				r.Delete("/", sessionHandler.DeleteSession)
				r.Post("/cancel", sessionHandler.CancelSession)
				r.Post("/complete", sessionHandler.CompleteSession)
				r.Post("/requests", requestHandler.CreateRequest)
				r.Post("/reviews", reviewHandler.CreateReview)
			})

			r.Get("/requests", requestHandler.ListRequests)
			r.Route("/requests/{request_id}", func(r chi.Router) {
				r.Get("/", requestHandler.GetRequest)
				r.Post("/accept", requestHandler.AcceptRequest)
				r.Post("/decline", requestHandler.DeclineRequest)
				r.Post("/cancel", requestHandler.CancelRequest)
				r.Post("/counter-offer", requestHandler.CreateCounterOffer)
				r.Post("/counter-offer/accept", requestHandler.AcceptCounterOffer)
				r.Post("/counter-offer/decline", requestHandler.DeclineCounterOffer)
			})

			r.Get("/conversations", conversationHandler.ListConversations)
			r.Route("/conversations/{conversation_id}", func(r chi.Router) {
				r.Get("/", conversationHandler.GetConversation)
				r.Get("/messages", conversationHandler.ListMessages)
				r.Post("/messages", conversationHandler.SendMessage)
			})

			r.Get("/filmers/{user_id}/sessions", sessionHandler.ListFilmerSessions)
			r.Get("/filmers/{user_id}/reviews", reviewHandler.ListFilmerReviews)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnly(svc.Users))
				r.Delete("/reviews/{review_id}", adminHandler.DeleteReview)
				r.Post("/filmers/{user_id}/recompute-rating", adminHandler.RecomputeRating)
				r.Post("/reminders", adminHandler.SendReminders)
			})
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}
