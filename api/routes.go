package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", app.healthCheckHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/auth/register", app.registerUserHandler)
	mux.HandleFunc("POST /api/v1/auth/login", app.loginUserHandler)
	mux.HandleFunc("POST /api/v1/auth/forgotpassword", app.forgotPasswordHandler)
	mux.HandleFunc("PUT /api/v1/auth/resetpassword/{resettoken}", app.resetPasswordHandler)
	mux.HandleFunc("GET /api/v1/auth/me", app.requireAuthenticatedUser(app.getMeHandler))
	mux.HandleFunc("PUT /api/v1/auth/profile", app.requireAuthenticatedUser(app.updateProfileHandler))

	mux.HandleFunc("GET /api/v1/tasks", app.requireAuthenticatedUser(app.listTasksHandler))
	mux.HandleFunc("POST /api/v1/tasks", app.requireAuthenticatedUser(app.createTaskHandler))
	mux.HandleFunc("GET /api/v1/tasks/search", app.requireAuthenticatedUser(app.searchTasksHandler))
	mux.HandleFunc("GET /api/v1/tasks/stats", app.requireAuthenticatedUser(app.taskStatsHandler))
	mux.HandleFunc("GET /api/v1/tasks/status/{status}", app.requireAuthenticatedUser(app.tasksByStatusHandler))
	mux.HandleFunc("GET /api/v1/tasks/priority/{priority}", app.requireAuthenticatedUser(app.tasksByPriorityHandler))
	mux.HandleFunc("GET /api/v1/tasks/{id}", app.requireAuthenticatedUser(app.getTaskHandler))
	mux.HandleFunc("PUT /api/v1/tasks/{id}", app.requireAuthenticatedUser(app.updateTaskHandler))
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", app.requireAuthenticatedUser(app.deleteTaskHandler))

	mux.HandleFunc("GET /api/v1/notifications", app.requireAuthenticatedUser(app.listNotificationsHandler))
	mux.HandleFunc("PATCH /api/v1/notifications/{id}/read", app.requireAuthenticatedUser(app.markNotificationReadHandler))
	mux.HandleFunc("PATCH /api/v1/notifications/read-all", app.requireAuthenticatedUser(app.markAllNotificationsReadHandler))
	mux.HandleFunc("POST /api/v1/notifications/scan", app.requireAdmin(app.runNotificationScanHandler))

	var h http.Handler = mux
	if app.config.limiter.enabled {
		h = app.rateLimit(h)
	}
	h = app.enableCORS(h)
	h = app.recoverPanic(h)
	h = app.logRequests(h)
	h = requestID(h)
	return metrics(h)
}
