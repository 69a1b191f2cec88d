package gate

import (
	"context"
	"errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(client IdentityClient) (*AuthController, *SessionStore) {
	store := NewSessionStore()
	ctrl := NewAuthController(
		WithClient(client),
		WithStore(store),
		WithResetRedirectURL("https://app.grid78.fr/reset-password"),
	)
	return ctrl, store
}

func TestNewAuthControllerPanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() {
		NewAuthController(WithStore(NewSessionStore()))
	})
}

func TestNewAuthControllerPanicsWithoutStore(t *testing.T) {
	assert.Panics(t, func() {
		NewAuthController(WithClient(&MockIdentityClient{}))
	})
}

func TestSignupShowRendersForm(t *testing.T) {
	ctrl, _ := newTestController(&MockIdentityClient{})
	ctx := router.NewMockContext()

	ctx.On("Render", ctrl.Views.Signup, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc, ok := args.Get(1).(router.ViewContext)
		require.True(t, ok, "expected router.ViewContext")
		assert.Contains(t, vc, "record")
	})

	require.NoError(t, ctrl.SignupShow(ctx))
	ctx.AssertExpectations(t)
}

func TestForgotPasswordShowRendersForm(t *testing.T) {
	ctrl, _ := newTestController(&MockIdentityClient{})
	ctx := router.NewMockContext()

	ctx.On("Render", ctrl.Views.ForgotPassword, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		assert.Equal(t, false, vc["success"])
	})

	require.NoError(t, ctrl.ForgotPasswordShow(ctx))
	ctx.AssertExpectations(t)
}

func TestResetPasswordShowStartsPending(t *testing.T) {
	ctrl, _ := newTestController(&MockIdentityClient{})
	ctx := router.NewMockContext()

	ctx.On("Render", ctrl.Views.ResetPassword, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		assert.Equal(t, string(RecoveryPending), vc["state"])
	})

	require.NoError(t, ctrl.ResetPasswordShow(ctx))
	ctx.AssertExpectations(t)
}

func TestLoginPostValidationFailureSkipsProvider(t *testing.T) {
	client := &MockIdentityClient{}
	ctrl, _ := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginRequest)
		*payload = LoginRequest{Email: "pilot@grid78.fr", Password: "short"}
	})
	ctx.On("Render", ctrl.Views.Login, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		fields, ok := vc["validation"].(map[string]string)
		require.True(t, ok)
		assert.Equal(t, MsgPasswordMin, fields["Password"])
	})

	require.NoError(t, ctrl.LoginPost(ctx))
	client.AssertNotCalled(t, "SignInWithPassword", mock.Anything, mock.Anything, mock.Anything)
	ctx.AssertExpectations(t)
}

func TestLoginPostProviderErrorSurfacesVerbatim(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("SignInWithPassword", mock.Anything, "pilot@grid78.fr", "wrongpassword").
		Return(nil, assertableProviderError("Invalid login credentials"))

	ctrl, store := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginRequest)
		*payload = LoginRequest{Email: "pilot@grid78.fr", Password: "wrongpassword"}
	})
	ctx.On("Context").Return(context.Background())
	ctx.On("Render", ctrl.Views.Login, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		fields, ok := vc["errors"].(map[string]string)
		require.True(t, ok)
		assert.Equal(t, "Invalid login credentials", fields["authentication"])
	})

	require.NoError(t, ctrl.LoginPost(ctx))
	assert.False(t, store.Snapshot().Authenticated())
	client.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestLoginPostSuccessWritesStoreAndRedirects(t *testing.T) {
	session := testSession("pilot@grid78.fr")
	client := &MockIdentityClient{}
	client.On("SignInWithPassword", mock.Anything, "pilot@grid78.fr", "goodpassword").
		Return(session, nil)

	ctrl, store := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginRequest)
		*payload = LoginRequest{Email: "pilot@grid78.fr", Password: "goodpassword"}
	})
	ctx.On("Context").Return(context.Background())
	ctx.CookiesM[DefaultRejectedRouteKey] = ""
	ctx.On("Redirect", "/dashboard", []int{http.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.LoginPost(ctx))

	snap := store.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, "pilot@grid78.fr", snap.User.Email)
	client.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestLoginPostReplaysRejectedRoute(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("SignInWithPassword", mock.Anything, "pilot@grid78.fr", "goodpassword").
		Return(testSession("pilot@grid78.fr"), nil)

	ctrl, _ := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginRequest)
		*payload = LoginRequest{Email: "pilot@grid78.fr", Password: "goodpassword"}
	})
	ctx.On("Context").Return(context.Background())
	ctx.CookiesM[DefaultRejectedRouteKey] = "/profile"
	ctx.On("Cookie", mock.Anything).Return()
	ctx.On("Redirect", "/profile", []int{http.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.LoginPost(ctx))
	ctx.AssertExpectations(t)
}

func TestLogoutRedirectsEvenWhenProviderFails(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("SignOut", mock.Anything).Return(assertableProviderError("service unavailable"))

	ctrl, _ := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Context").Return(context.Background())
	ctx.On("Redirect", "/", []int{http.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.Logout(ctx))
	client.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestSignupPostSuccessRedirectsToLoginNotice(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("SignUp", mock.Anything, "new@grid78.fr", "longenough").
		Return(&SignUpResult{User: testUser("new@grid78.fr"), PendingConfirmation: true}, nil)

	ctrl, store := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*SignUpRequest)
		*payload = SignUpRequest{
			Email:           "new@grid78.fr",
			Password:        "longenough",
			ConfirmPassword: "longenough",
		}
	})
	ctx.On("Context").Return(context.Background())
	ctx.On("Redirect", "/login?signup=success", []int{http.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.SignupPost(ctx))
	assert.False(t, store.Snapshot().Authenticated())
	client.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestSignupPostMismatchedPasswords(t *testing.T) {
	client := &MockIdentityClient{}
	ctrl, _ := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*SignUpRequest)
		*payload = SignUpRequest{
			Email:           "new@grid78.fr",
			Password:        "longenough",
			ConfirmPassword: "different1",
		}
	})
	ctx.On("Render", ctrl.Views.Signup, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		fields := vc["validation"].(map[string]string)
		assert.Equal(t, MsgPasswordsMismatch, fields["ConfirmPassword"])
	})

	require.NoError(t, ctrl.SignupPost(ctx))
	client.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything)
	ctx.AssertExpectations(t)
}

func TestForgotPasswordPostSendsRedirectTarget(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("ResetPasswordForEmail", mock.Anything, "pilot@grid78.fr", ResetOptions{
		RedirectTo: "https://app.grid78.fr/reset-password",
	}).Return(nil)

	ctrl, _ := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*ForgotPasswordRequest)
		*payload = ForgotPasswordRequest{Email: "pilot@grid78.fr"}
	})
	ctx.On("Context").Return(context.Background())
	ctx.On("Render", ctrl.Views.ForgotPassword, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		assert.Equal(t, true, vc["success"])
	})

	require.NoError(t, ctrl.ForgotPasswordPost(ctx))
	client.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestResetPasswordPostRejectsBadToken(t *testing.T) {
	client := &MockIdentityClient{}
	ctrl, _ := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*ResetPasswordRequest)
		*payload = ResetPasswordRequest{
			TokenType:       "signup",
			Password:        "newpassword1",
			ConfirmPassword: "newpassword1",
		}
	})
	ctx.On("Render", ctrl.Views.ResetPassword, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		assert.Equal(t, string(RecoveryInvalid), vc["state"])
		fields := vc["errors"].(map[string]string)
		assert.Equal(t, "Lien de réinitialisation invalide ou expiré", fields["recovery"])
	})

	require.NoError(t, ctrl.ResetPasswordPost(ctx))
	client.AssertNotCalled(t, "UpdateUserPassword", mock.Anything, mock.Anything, mock.Anything)
	ctx.AssertExpectations(t)
}

func TestResetPasswordPostProviderFailureKeepsFormUsable(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("UpdateUserPassword", mock.Anything, "one-time-token", "newpassword1").
		Return(assertableProviderError("New password should be different from the old password"))

	ctrl, _ := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*ResetPasswordRequest)
		*payload = ResetPasswordRequest{
			AccessToken:     "one-time-token",
			TokenType:       "recovery",
			Password:        "newpassword1",
			ConfirmPassword: "newpassword1",
		}
	})
	ctx.On("Context").Return(context.Background())
	ctx.On("Render", ctrl.Views.ResetPassword, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		assert.Equal(t, string(RecoveryValid), vc["state"])
		fields := vc["errors"].(map[string]string)
		assert.Equal(t, "New password should be different from the old password", fields["authentication"])
	})

	require.NoError(t, ctrl.ResetPasswordPost(ctx))
	client.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestResetPasswordPostSuccessShowsCompletedState(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("UpdateUserPassword", mock.Anything, "one-time-token", "newpassword1").Return(nil)

	ctrl, store := newTestController(client)
	ctx := router.NewMockContext()

	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*ResetPasswordRequest)
		*payload = ResetPasswordRequest{
			AccessToken:     "one-time-token",
			TokenType:       "recovery",
			Password:        "newpassword1",
			ConfirmPassword: "newpassword1",
		}
	})
	ctx.On("Context").Return(context.Background())
	ctx.On("Render", ctrl.Views.ResetPassword, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		vc := args.Get(1).(router.ViewContext)
		assert.Equal(t, string(RecoveryCompleted), vc["state"])
		assert.Equal(t, "/login", vc["redirect_to"])
		assert.Equal(t, 3, vc["redirect_delay"])
	})

	require.NoError(t, ctrl.ResetPasswordPost(ctx))
	// the recovery session never becomes the app session
	assert.False(t, store.Snapshot().Authenticated())
	client.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestLoginRequestValidate(t *testing.T) {
	err := LoginRequest{Email: "pilot@grid78.fr", Password: "longenough"}.Validate()
	assert.NoError(t, err)

	err = LoginRequest{Email: "not-an-email", Password: "longenough"}.Validate()
	fields := FormatValidationErrorToMap(err)
	assert.Equal(t, MsgEmailInvalid, fields["Email"])

	err = LoginRequest{Email: "pilot@grid78.fr", Password: "short"}.Validate()
	fields = FormatValidationErrorToMap(err)
	assert.Equal(t, MsgPasswordMin, fields["Password"])

	err = LoginRequest{}.Validate()
	fields = FormatValidationErrorToMap(err)
	assert.Equal(t, MsgEmailRequired, fields["Email"])
	assert.Equal(t, MsgPasswordRequired, fields["Password"])
}

func TestLoginPostConcurrentSubmissionsBothReachProvider(t *testing.T) {
	firstEntered := make(chan struct{})
	release := make(chan struct{})

	client := &MockIdentityClient{}
	client.On("SignInWithPassword", mock.Anything, "first@grid78.fr", "longenough").
		Return(nil, assertableProviderError("Invalid login credentials")).
		Run(func(mock.Arguments) {
			close(firstEntered)
			<-release
		}).Once()
	client.On("SignInWithPassword", mock.Anything, "second@grid78.fr", "longenough").
		Return(nil, assertableProviderError("Invalid login credentials")).Once()

	ctrl, _ := newTestController(client)

	makeCtx := func(email string) *router.MockContext {
		ctx := router.NewMockContext()
		ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*LoginRequest)
			*payload = LoginRequest{Email: email, Password: "longenough"}
		})
		ctx.On("Context").Return(context.Background())
		ctx.On("Render", ctrl.Views.Login, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			vc := args.Get(1).(router.ViewContext)
			fields, ok := vc["errors"].(map[string]string)
			assert.True(t, ok)
			assert.Equal(t, "Invalid login credentials", fields["authentication"])
		})
		return ctx
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.LoginPost(makeCtx("first@grid78.fr"))
	}()

	<-firstEntered
	// A second user submitting mid-flight gets served, not bounced.
	require.NoError(t, ctrl.LoginPost(makeCtx("second@grid78.fr")))
	close(release)
	require.NoError(t, <-done)

	client.AssertExpectations(t)
}

func TestValidateStringEquals(t *testing.T) {
	rule := ValidateStringEquals("expected", MsgPasswordsMismatch)

	assert.NoError(t, rule("expected"))

	err := rule("other")
	require.Error(t, err)
	assert.Equal(t, MsgPasswordsMismatch, err.Error())
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, FormatValidationErrorToMap(nil))

	// ozzo keys its map by the json tag; views read the exported name
	verrs := validation.Errors{
		"email":            errors.New(MsgEmailInvalid),
		"confirm_password": errors.New(MsgPasswordsMismatch),
	}
	fields := FormatValidationErrorToMap(verrs)
	assert.Equal(t, MsgEmailInvalid, fields["Email"])
	assert.Equal(t, MsgPasswordsMismatch, fields["ConfirmPassword"])
	assert.NotContains(t, fields, "email")
	assert.NotContains(t, fields, "confirm_password")

	fields = FormatValidationErrorToMap(errors.New("boom"))
	assert.Equal(t, "boom", fields["form"])
}

func TestFormatValidationErrorToMapFromPayloadValidate(t *testing.T) {
	err := LoginRequest{Email: "user@x.com", Password: "short"}.Validate()
	require.Error(t, err)

	fields := FormatValidationErrorToMap(err)
	assert.Equal(t, MsgPasswordMin, fields["Password"])
	assert.NotContains(t, fields, "password")
}
