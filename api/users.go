package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harlequingg/taskmanager-api/internal/data"
	"github.com/harlequingg/taskmanager-api/internal/validator"
)

const forgotPasswordMessage = "if an account with that email exists, a password reset link has been sent"

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	u := &data.User{
		Name:  strings.TrimSpace(input.Name),
		Email: data.NormalizeEmail(input.Email),
	}

	v := validator.New()
	data.ValidateUser(v, u)
	v.CheckPassword(input.Password)
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}

	if err := u.SetPassword(input.Password); err != nil {
		app.serverError(w, r, "registerUser", err)
		return
	}

	err := app.storage.InsertUser(r.Context(), u)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateEmail):
			app.failedValidation(w, r, map[string]string{"email": "a user with this email address already exists"})
		default:
			app.serverError(w, r, "registerUser", err)
		}
		return
	}

	app.writeUserWithToken(w, r, http.StatusCreated, u)
}

func (app *application) loginUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	v := validator.New()
	v.Check(validator.NotBlank(input.Email), "email", "must be provided")
	v.Check(input.Password != "", "password", "must be provided")
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}

	u, err := app.storage.GetUserByEmail(r.Context(), input.Email)
	if err != nil {
		app.serverError(w, r, "loginUser", err)
		return
	}
	if u == nil {
		writeError(w, errors.New("invalid credentials"), http.StatusUnauthorized)
		return
	}

	ok, err := u.PasswordMatches(input.Password)
	if err != nil {
		app.serverError(w, r, "loginUser", err)
		return
	}
	if !ok {
		writeError(w, errors.New("invalid credentials"), http.StatusUnauthorized)
		return
	}

	app.writeUserWithToken(w, r, http.StatusOK, u)
}

func (app *application) getMeHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, envelope{"data": getUserFromRequest(r)})
}

func (app *application) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	u := *getUserFromRequest(r)
	if name := trimmed(input.Name); name != nil {
		u.Name = *name
	}
	if input.Email != nil {
		u.Email = data.NormalizeEmail(*input.Email)
	}

	v := validator.New()
	data.ValidateUser(v, &u)
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}

	err := app.storage.UpdateUser(r.Context(), &u)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateEmail):
			app.failedValidation(w, r, map[string]string{"email": "a user with this email address already exists"})
		case errors.Is(err, data.ErrEditConflict):
			editConflict(w)
		default:
			app.serverError(w, r, "updateProfile", err)
		}
		return
	}

	app.writeJSON(w, r, http.StatusOK, envelope{"data": u})
}

// forgotPasswordHandler answers the same way whether or not the email is
// registered so the endpoint cannot be used to enumerate accounts.
func (app *application) forgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	v := validator.New()
	v.CheckEmail(data.NormalizeEmail(input.Email))
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}

	log := app.requestLogger(r).WithField("operation", "forgotPassword")

	u, err := app.storage.GetUserByEmail(r.Context(), input.Email)
	if err != nil {
		app.serverError(w, r, "forgotPassword", err)
		return
	}
	if u == nil {
		log.Debug("password reset requested for unknown email")
		app.writeJSON(w, r, http.StatusOK, envelope{"message": forgotPasswordMessage})
		return
	}

	plain, hash, err := data.GenerateResetToken()
	if err != nil {
		app.serverError(w, r, "forgotPassword", err)
		return
	}
	u.SetPasswordReset(hash, time.Now().Add(data.ResetTokenTTL))
	if err := app.storage.UpdateUser(r.Context(), u); err != nil {
		// A concurrent request already issued a token; the response must not
		// differ from the unknown-email case.
		if errors.Is(err, data.ErrEditConflict) {
			log.WithField("user_id", u.ID).Warn("password reset raced with another update")
			app.writeJSON(w, r, http.StatusOK, envelope{"message": forgotPasswordMessage})
			return
		}
		app.serverError(w, r, "forgotPassword", err)
		return
	}

	mail := map[string]any{
		"Name":      u.Name,
		"ResetURL":  strings.TrimRight(app.config.frontendURL, "/") + "/resetpassword/" + plain,
		"ExpiresIn": fmt.Sprintf("%d minutes", int(data.ResetTokenTTL/time.Minute)),
	}
	if err := app.mailer.Send(u.Email, "password_reset.tmpl", mail); err != nil {
		log.WithError(err).WithField("user_id", u.ID).Error("failed to send password reset email")

		u.ClearPasswordReset()
		if err := app.storage.UpdateUser(r.Context(), u); err != nil {
			log.WithError(err).WithField("user_id", u.ID).Error("failed to clear password reset token")
		}
		writeError(w, errors.New("email could not be sent"), http.StatusInternalServerError)
		return
	}

	app.writeJSON(w, r, http.StatusOK, envelope{"message": forgotPasswordMessage})
}

func (app *application) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequest(w, err)
		return
	}

	v := validator.New()
	v.CheckPassword(input.Password)
	if !v.Valid() {
		app.failedValidation(w, r, v.Errors)
		return
	}

	token := r.PathValue("resettoken")
	u, err := app.storage.GetUserByResetToken(r.Context(), data.HashResetToken(token), time.Now())
	if err != nil {
		app.serverError(w, r, "resetPassword", err)
		return
	}
	if u == nil {
		badRequest(w, errors.New("invalid or expired reset token"))
		return
	}

	if err := u.SetPassword(input.Password); err != nil {
		app.serverError(w, r, "resetPassword", err)
		return
	}
	u.ClearPasswordReset()

	err = app.storage.UpdateUser(r.Context(), u)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrEditConflict):
			editConflict(w)
		default:
			app.serverError(w, r, "resetPassword", err)
		}
		return
	}

	app.writeUserWithToken(w, r, http.StatusOK, u)
}

func (app *application) writeUserWithToken(w http.ResponseWriter, r *http.Request, status int, u *data.User) {
	token, err := app.generateToken(u.ID)
	if err != nil {
		app.serverError(w, r, "generateToken", err)
		return
	}
	app.writeJSON(w, r, status, envelope{"data": u, "token": token})
}
