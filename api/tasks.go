package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harlequingg/taskmanager-api/internal/data"
	"github.com/harlequingg/taskmanager-api/internal/validator"
)

func (app *application) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		DueDate     *time.Time `json:"due_date"`
		Status      string     `json:"status"`
		Priority    string     `json:"priority"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	t := &data.Task{
		UserID:      getUserFromRequest(r).ID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		DueDate:     input.DueDate,
		Status:      data.TaskStatus(input.Status),
		Priority:    data.TaskPriority(input.Priority),
	}
	if t.Status == "" {
		t.Status = data.TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = data.TaskPriorityMedium
	}

	v := validator.New()
	data.ValidateTask(v, t)
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}

	if err := app.storage.InsertTask(r.Context(), t); err != nil {
		app.serverError(w, r, "createTask", err)
		return
	}

	w.Header().Set("Location", "/api/v1/tasks/"+strconv.FormatInt(t.ID, 10))
	app.writeJSON(w, r, http.StatusCreated, envelope{"data": t})
}

func (app *application) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	filter := data.TaskFilter{
		Status:   data.TaskStatus(qs.Get("status")),
		Priority: data.TaskPriority(qs.Get("priority")),
		Query:    strings.TrimSpace(qs.Get("q")),
	}

	v := validator.New()
	validateFilter(v, filter)
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}
	app.writeTasks(w, r, filter)
}

func (app *application) searchTasksHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		badRequest(w, errors.New("please provide a search query"))
		return
	}
	app.writeTasks(w, r, data.TaskFilter{Query: q})
}

func (app *application) tasksByStatusHandler(w http.ResponseWriter, r *http.Request) {
	filter := data.TaskFilter{Status: data.TaskStatus(r.PathValue("status"))}

	v := validator.New()
	v.Check(validator.PermittedValue(filter.Status, data.TaskStatuses...), "status", "must be one of pending, in-progress, completed")
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}
	app.writeTasks(w, r, filter)
}

func (app *application) tasksByPriorityHandler(w http.ResponseWriter, r *http.Request) {
	filter := data.TaskFilter{Priority: data.TaskPriority(r.PathValue("priority"))}

	v := validator.New()
	v.Check(validator.PermittedValue(filter.Priority, data.TaskPriorities...), "priority", "must be one of low, medium, high")
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}
	app.writeTasks(w, r, filter)
}

func (app *application) taskStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := app.storage.TaskStatsForUser(r.Context(), getUserFromRequest(r).ID)
	if err != nil {
		app.serverError(w, r, "taskStats", err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"data": stats})
}

func (app *application) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := readIDParam(r, "id")
	if !ok {
		notFound(w, "task")
		return
	}

	t, err := app.storage.GetTaskForUser(r.Context(), id, getUserFromRequest(r).ID)
	if err != nil {
		app.serverError(w, r, "getTask", err)
		return
	}
	if t == nil {
		notFound(w, "task")
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"data": t})
}

// updateTaskHandler applies a partial update. A client that sends version gets
// a 409 if the task changed since it was read.
func (app *application) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := readIDParam(r, "id")
	if !ok {
		notFound(w, "task")
		return
	}

	var input struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		DueDate     *time.Time `json:"due_date"`
		Status      *string    `json:"status"`
		Priority    *string    `json:"priority"`
		Version     *int       `json:"version"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	t, err := app.storage.GetTaskForUser(r.Context(), id, getUserFromRequest(r).ID)
	if err != nil {
		app.serverError(w, r, "updateTask", err)
		return
	}
	if t == nil {
		notFound(w, "task")
		return
	}
	if input.Version != nil && *input.Version != t.Version {
		editConflict(w)
		return
	}

	if title := trimmed(input.Title); title != nil {
		t.Title = *title
	}
	if desc := trimmed(input.Description); desc != nil {
		t.Description = *desc
	}
	if input.DueDate != nil {
		t.DueDate = input.DueDate
	}
	if input.Status != nil {
		t.Status = data.TaskStatus(*input.Status)
	}
	if input.Priority != nil {
		t.Priority = data.TaskPriority(*input.Priority)
	}

	v := validator.New()
	data.ValidateTask(v, t)
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}

	err = app.storage.UpdateTask(r.Context(), t)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrEditConflict):
			editConflict(w)
		default:
			app.serverError(w, r, "updateTask", err)
		}
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"data": t})
}

func (app *application) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := readIDParam(r, "id")
	if !ok {
		notFound(w, "task")
		return
	}

	deleted, err := app.storage.DeleteTaskForUser(r.Context(), id, getUserFromRequest(r).ID)
	if err != nil {
		app.serverError(w, r, "deleteTask", err)
		return
	}
	if !deleted {
		notFound(w, "task")
		return
	}
	app.writeJSON(w, r, http.StatusOK, envelope{"message": "task successfully deleted"})
}

func (app *application) writeTasks(w http.ResponseWriter, r *http.Request, filter data.TaskFilter) {
	tasks, err := app.storage.ListTasksForUser(r.Context(), getUserFromRequest(r).ID, filter)
	if err != nil {
		app.serverError(w, r, "listTasks", err)
		return
	}
	if tasks == nil {
		tasks = []data.Task{}
	}
	app.writeJSON(w, r, http.StatusOK, envelope{
		"data": tasks,
		"meta": envelope{"count": len(tasks)},
	})
}

func validateFilter(v *validator.Validator, f data.TaskFilter) {
	if f.Status != "" {
		v.Check(validator.PermittedValue(f.Status, data.TaskStatuses...), "status", "must be one of pending, in-progress, completed")
	}
	if f.Priority != "" {
		v.Check(validator.PermittedValue(f.Priority, data.TaskPriorities...), "priority", "must be one of low, medium, high")
	}
	v.Check(validator.MaxChars(f.Query, 100), "q", "must be at most 100 characters")
}
