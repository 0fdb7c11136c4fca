package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/harlequingg/taskmanager-api/internal/data"
	"github.com/harlequingg/taskmanager-api/internal/notify"
)

func (app *application) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := data.DefaultNotificationLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > data.MaxNotificationLimit {
			app.failedValidation(w, r, map[string]string{
				"limit": "must be an integer between 1 and " + strconv.Itoa(data.MaxNotificationLimit),
			})
			return
		}
		limit = n
	}

	notifications, err := app.storage.ListNotificationsForUser(r.Context(), getUserFromRequest(r).ID, limit)
	if err != nil {
		app.serverError(w, r, "listNotifications", err)
		return
	}
	if notifications == nil {
		notifications = []data.Notification{}
	}
	app.writeJSON(w, r, http.StatusOK, envelope{
		"data": notifications,
		"meta": envelope{"count": len(notifications)},
	})
}

func (app *application) markNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := readIDParam(r, "id")
	if !ok {
		notFound(w, "notification")
		return
	}

	n, err := app.storage.MarkNotificationRead(r.Context(), id, getUserFromRequest(r).ID)
	if err != nil {
		app.serverError(w, r, "markNotificationRead", err)
		return
	}
	if n == nil {
		notFound(w, "notification")
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"data": n})
}

func (app *application) markAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	updated, err := app.storage.MarkAllNotificationsRead(r.Context(), getUserFromRequest(r).ID)
	if err != nil {
		app.serverError(w, r, "markAllNotificationsRead", err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{
		"message": "all notifications marked as read",
		"meta":    envelope{"updated": updated},
	})
}

func (app *application) runNotificationScanHandler(w http.ResponseWriter, r *http.Request) {
	err := app.scheduler.RunNow(r.Context(), jobDueDateScan)
	if err != nil {
		switch {
		case errors.Is(err, notify.ErrJobRunning):
			writeError(w, errors.New("a notification scan is already running"), http.StatusConflict)
		default:
			app.serverError(w, r, "runNotificationScan", err)
		}
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"message": "notification scan completed"})
}
