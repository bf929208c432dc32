package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nexusride/nexusride-web/internal/access"
	"github.com/nexusride/nexusride-web/internal/backend"
	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	throttle       *Throttle
	audit          shared.AuditRecorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. throttle and audit may be nil.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, throttle *Throttle, audit shared.AuditRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		throttle:       throttle,
		audit:          audit,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.handleSignup)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

type signupForm struct {
	FullName        string `validate:"required,max=120"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type signupPageData struct {
	Form   signupForm
	Errors map[string]string
}

// backendFields maps backend field names onto form fields.
var backendFields = map[string]string{
	"email":     "Email",
	"password":  "Password",
	"full_name": "FullName",
}

// landing is where a freshly signed-in identity starts.
func landing(id shared.Identity) string {
	if d := access.Evaluate(access.SubjectOf(id), access.Lookup{}, access.PathDashboard); d.IsRedirect() {
		return d.Target
	}
	return access.PathDashboard
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if id := shared.IdentityFromContext(r.Context()); id.Authenticated() {
		http.Redirect(w, r, landing(id), http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{Errors: map[string]string{}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := loginPageData{Form: form, Errors: map[string]string{}}
	if err := h.validator.Struct(form); err != nil {
		data.Errors = shared.ValidationMessages(err)
		h.renderLogin(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	if !h.throttle.Allow(form.Email) {
		h.logger.Warn("login throttled", slog.String("email", form.Email))
		data.Errors["general"] = "Too many sign-in attempts. Please wait a minute and try again."
		h.renderLogin(w, r, http.StatusTooManyRequests, data)
		return
	}

	id, err := h.service.Authenticate(ctx, form.Email, form.Password)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		status := http.StatusBadGateway
		switch backend.KindOf(err) {
		case backend.KindAuth:
			status = http.StatusUnauthorized
			data.Errors["general"] = "Invalid email or password."
		case backend.KindValidation:
			status = http.StatusUnprocessableEntity
			data.Errors["general"] = backend.Message(err, "Invalid email or password.")
		default:
			h.logger.Warn("login failed", slog.String("email", form.Email), slog.Any("error", err))
			data.Errors["general"] = "Sign-in is unavailable right now. Please try again."
		}
		h.renderLogin(w, r, status, data)
		return
	}

	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Regenerate(sess)
	sess.Delete(shared.CSRFSessionKey)
	sess.SetIdentity(id)
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Welcome back, " + id.WelcomeName() + "."})
	h.throttle.Reset(form.Email)
	h.record(r, shared.AuditLog{Actor: id.Email, Action: shared.AuditLogin, Entity: "user", EntityID: id.Email, Meta: map[string]any{"role": string(id.Role)}})

	http.Redirect(w, r, landing(id), http.StatusSeeOther)
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	if id := shared.IdentityFromContext(r.Context()); id.Authenticated() {
		http.Redirect(w, r, landing(id), http.StatusSeeOther)
		return
	}
	h.renderSignup(w, r, http.StatusOK, signupPageData{Errors: map[string]string{}})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	form := signupForm{
		FullName:        strings.TrimSpace(r.PostFormValue("full_name")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	data := signupPageData{Form: form, Errors: map[string]string{}}
	if err := h.validator.Struct(form); err != nil {
		data.Errors = shared.ValidationMessages(err)
		h.renderSignup(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	err := h.service.Register(ctx, form.FullName, form.Email, form.Password)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		status := http.StatusBadGateway
		if backend.IsValidation(err) {
			status = http.StatusUnprocessableEntity
			field := "general"
			var be *backend.Error
			if errors.As(err, &be) {
				if mapped, known := backendFields[be.Field]; known {
					field = mapped
				}
			}
			data.Errors[field] = backend.Message(err, "Please check the form.")
		} else {
			h.logger.Warn("signup failed", slog.String("email", form.Email), slog.Any("error", err))
			data.Errors["general"] = "Sign-up is unavailable right now. Please try again."
		}
		h.renderSignup(w, r, status, data)
		return
	}

	shared.SessionFromContext(ctx).AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Account created. You can sign in now."})
	http.Redirect(w, r, access.PathLogin, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if id := sess.Restore(); id.Authenticated() {
			h.record(r, shared.AuditLog{Actor: id.Email, Action: shared.AuditLogout, Entity: "user", EntityID: id.Email})
		}
		sess.ClearIdentity()
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, access.PathLogin, http.StatusSeeOther)
}

func (h *Handler) record(r *http.Request, entry shared.AuditLog) {
	if h.audit == nil {
		return
	}
	entry.At = time.Now().UTC()
	if err := h.audit.Record(r.Context(), entry); err != nil {
		h.logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	data.Form.Password = ""
	if err := h.templates.RenderStatus(w, status, "pages/login.html", view.Page(r, h.csrfManager, "Sign in", data)); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) renderSignup(w http.ResponseWriter, r *http.Request, status int, data signupPageData) {
	data.Form.Password = ""
	data.Form.ConfirmPassword = ""
	if err := h.templates.RenderStatus(w, status, "pages/signup.html", view.Page(r, h.csrfManager, "Create account", data)); err != nil {
		h.logger.Error("render signup", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
