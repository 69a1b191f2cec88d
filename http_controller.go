package gate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// French field messages carried over from the product's string table.
const (
	MsgEmailInvalid      = "Email invalide"
	MsgEmailRequired     = "Email requis"
	MsgPasswordRequired  = "Mot de passe requis"
	MsgPasswordMin       = "Au moins 8 caractères"
	MsgPasswordsMismatch = "Les mots de passe ne correspondent pas"
)

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.Logout).
		SetName("sign-out.get")

	app.Get(controller.Routes.Signup, controller.SignupShow).
		SetName("sign-up.get")
	app.Post(controller.Routes.Signup, controller.SignupPost).
		SetName("sign-up.post")

	app.Get(controller.Routes.ForgotPassword, controller.ForgotPasswordShow).
		SetName("pwd-forgot.get")
	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("pwd-forgot.post")

	app.Get(controller.Routes.ResetPassword, controller.ResetPasswordShow).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("pwd-reset.post")

	return controller
}

type AuthControllerRoutes struct {
	Login          string
	Logout         string
	Signup         string
	ForgotPassword string
	ResetPassword  string
	Dashboard      string
}

type AuthControllerViews struct {
	Login          string
	Signup         string
	ForgotPassword string
	ResetPassword  string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Client       IdentityClient
	Store        *SessionStore
	Redirects    *RedirectCapture
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
	Activity     ActivitySink

	// ResetRedirectURL is the absolute URL the recovery email links to.
	ResetRedirectURL string
}

type AuthControllerOption func(*AuthController) *AuthController

// WithClient sets the identity-provider client.
func WithClient(client IdentityClient) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Client = client
		return c
	}
}

// WithStore sets the session store used for the direct post-sign-in write.
func WithStore(store *SessionStore) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Store = store
		return c
	}
}

// WithRedirectCapture sets the rejected-route replay helper.
func WithRedirectCapture(rc *RedirectCapture) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Redirects = rc
		return c
	}
}

// WithControllerLogger overrides the default logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerActivitySink configures a sink for form outcomes.
func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

// WithResetRedirectURL sets the recovery-link landing URL.
func WithResetRedirectURL(u string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ResetRedirectURL = u
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Activity:     noopActivitySink{},
		Routes: &AuthControllerRoutes{
			Login:          "/login",
			Logout:         "/logout",
			Signup:         "/signup",
			ForgotPassword: "/forgot-password",
			ResetPassword:  "/reset-password",
			Dashboard:      "/dashboard",
		},
		Views: &AuthControllerViews{
			Login:          "login",
			Signup:         "signup",
			ForgotPassword: "forgot_password",
			ResetPassword:  "reset_password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Client == nil {
		panic("Missing IdentityClient in auth controller...")
	}

	if c.Store == nil {
		panic("Missing SessionStore in auth controller...")
	}

	if c.Redirects == nil {
		c.Redirects = NewRedirectCapture(nil)
	}

	return c
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors":         nil,
		"record":         nil,
		"signup_success": ctx.Query("signup") == "success",
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Remember bool   `form:"remember" json:"remember"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error(MsgEmailRequired),
			is.Email.Error(MsgEmailInvalid),
		),
		validation.Field(
			&r.Password,
			validation.Required.Error(MsgPasswordRequired),
			validation.Length(8, 100).Error(MsgPasswordMin),
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		// Local validation failures never reach the provider.
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	session, err := a.Client.SignInWithPassword(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login provider call: %v", err)
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record": payload,
			"errors": map[string]string{"authentication": ProviderMessage(err)},
		})
	}

	// Direct write so the redirect target renders authenticated immediately.
	// Idempotent with the SIGNED_IN event the provider client emits.
	a.Store.SetAuth(session.User, session)

	redirect := a.Redirects.GetRedirect(ctx, a.Routes.Dashboard)
	return ctx.Redirect(redirect, fiber.StatusSeeOther)
}

func (a *AuthController) Logout(ctx router.Context) error {
	if err := a.Client.SignOut(ctx.Context()); err != nil {
		// Sign-out failures are not fatal: the provider client clears local
		// state regardless and emits the SIGNED_OUT event.
		a.Logger.Warn("logout provider call: %v", err)
	}
	return ctx.Redirect("/", fiber.StatusSeeOther)
}

func (a *AuthController) SignupShow(ctx router.Context) error {
	return ctx.Render(a.Views.Signup, router.ViewContext{
		"errors": map[string]string{},
		"record": SignUpRequest{},
	})
}

// SignUpRequest is the form payload
type SignUpRequest struct {
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error(MsgEmailRequired),
			is.Email.Error(MsgEmailInvalid),
		),
		validation.Field(
			&r.Password,
			validation.Required.Error(MsgPasswordRequired),
			validation.Length(8, 100).Error(MsgPasswordMin),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required.Error(MsgPasswordRequired),
			validation.By(ValidateStringEquals(r.Password, MsgPasswordsMismatch)),
		),
	)
}

func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignUpRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Signup, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Signup, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	result, err := a.Client.SignUp(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("signup provider call: %v", err)
		return ctx.Render(a.Views.Signup, router.ViewContext{
			"record": payload,
			"errors": map[string]string{"authentication": ProviderMessage(err)},
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(result))
		fmt.Println("==========================")
	}

	// Confirmation email pending: the login page shows the check-your-inbox
	// notice. When the provider auto-confirms, the SIGNED_IN event takes over.
	return ctx.Redirect(a.Routes.Login+"?signup=success", fiber.StatusSeeOther)
}

func (a *AuthController) ForgotPasswordShow(ctx router.Context) error {
	return ctx.Render(a.Views.ForgotPassword, router.ViewContext{
		"errors":  nil,
		"record":  nil,
		"success": false,
	})
}

// ForgotPasswordRequest holds values for the reset-email form
type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error(MsgEmailRequired),
			is.Email.Error(MsgEmailInvalid),
		),
	)
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("forgot password parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.ForgotPassword, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.ForgotPassword, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	err := a.Client.ResetPasswordForEmail(ctx.Context(), payload.Email, ResetOptions{
		RedirectTo: a.ResetRedirectURL,
	})
	if err != nil {
		a.Logger.Error("forgot password provider call: %v", err)
		return ctx.Render(a.Views.ForgotPassword, router.ViewContext{
			"record": payload,
			"errors": map[string]string{"authentication": ProviderMessage(err)},
		})
	}

	// Success display state only; no session store mutation for reset emails.
	return ctx.Render(a.Views.ForgotPassword, router.ViewContext{
		"record":  payload,
		"success": true,
	})
}

func (a *AuthController) ResetPasswordShow(ctx router.Context) error {
	// The recovery token travels in the URL fragment and never reaches the
	// server; the view bridges it into the form (see reset_password.html).
	return ctx.Render(a.Views.ResetPassword, router.ViewContext{
		"errors": nil,
		"record": nil,
		"state":  string(RecoveryPending),
	})
}

// ResetPasswordRequest holds values for the update-password form
type ResetPasswordRequest struct {
	AccessToken     string `form:"access_token" json:"access_token"`
	TokenType       string `form:"type" json:"type"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Password,
			validation.Required.Error(MsgPasswordRequired),
			validation.Length(8, 100).Error(MsgPasswordMin),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required.Error(MsgPasswordRequired),
			validation.By(ValidateStringEquals(r.Password, MsgPasswordsMismatch)),
		),
	)
}

// fragment rebuilds the URL fragment the recovery email produced.
func (r ResetPasswordRequest) fragment() string {
	values := url.Values{}
	values.Set("access_token", r.AccessToken)
	values.Set("type", r.TokenType)
	return values.Encode()
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset password parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.ResetPassword, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
			"state":  string(RecoveryPending),
		})
	}

	flow := NewRecoveryFlow(a.Client,
		WithRecoveryLogger(a.Logger),
		WithRecoveryActivitySink(a.Activity),
		WithRecoveryLoginPath(a.Routes.Login),
	)
	defer flow.Close()

	if state := flow.Load(payload.fragment()); state == RecoveryInvalid {
		return ctx.Render(a.Views.ResetPassword, router.ViewContext{
			"record": payload,
			"state":  string(RecoveryInvalid),
			"errors": map[string]string{"recovery": flow.Message()},
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.ResetPassword, router.ViewContext{
			"record":     payload,
			"state":      string(RecoveryValid),
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := flow.Submit(ctx.Context(), payload.Password); err != nil {
		a.Logger.Error("reset password provider call: %v", err)
		return ctx.Render(a.Views.ResetPassword, router.ViewContext{
			"record": payload,
			"state":  string(flow.State()),
			"errors": map[string]string{"authentication": flow.Message()},
		})
	}

	// Completed display state; the view meta-refreshes to login after the
	// courtesy delay.
	return ctx.Render(a.Views.ResetPassword, router.ViewContext{
		"state":          string(RecoveryCompleted),
		"redirect_to":    a.Routes.Login,
		"redirect_delay": int(DefaultRecoveryRedirectDelay.Seconds()),
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(message)
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field → message map for inline rendering. ozzo keys its error map by the
// json tag ("confirm_password"); views read the exported field name
// ("ConfirmPassword"), so keys are converted on the way out.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[exportedFieldName(field)] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func exportedFieldName(tag string) string {
	parts := strings.Split(tag, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
