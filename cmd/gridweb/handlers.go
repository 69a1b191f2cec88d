package main

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-router"
	"github.com/grid78/go-gate"
	"github.com/grid78/go-gate/i18n"
	"github.com/grid78/go-gate/provider/supabase"
	"github.com/nyaruka/phonenumbers"
)

const phoneRegion = "FR"

func renderWithGlobals(app *App, ctx router.Context, name string, data router.ViewContext) error {
	merged := gate.MergeTemplateData(app.store, data)
	merged["t"] = i18n.Default()
	return ctx.Render(name, merged)
}

// Dashboard renders the landing page for signed-in users. The guard has
// already rejected anonymous visitors by the time this runs.
func Dashboard(app *App) router.HandlerFunc {
	return func(ctx router.Context) error {
		snap := app.store.Snapshot()
		return renderWithGlobals(app, ctx, "dashboard", router.ViewContext{
			"display_name": snap.User.DisplayName(),
		})
	}
}

// ProfileRequest is the profile form payload
type ProfileRequest struct {
	DisplayName string `form:"display_name" json:"display_name"`
	Phone       string `form:"phone" json:"phone"`
}

// Validate will run validation rules
func (r ProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.DisplayName,
			validation.Length(0, 120),
		),
		validation.Field(
			&r.Phone,
			validation.By(validatePhone),
		),
	)
}

func validatePhone(value any) error {
	phone, _ := value.(string)
	if phone == "" {
		return nil
	}

	parsed, err := phonenumbers.Parse(phone, phoneRegion)
	if err != nil {
		return errInvalidPhone
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return errInvalidPhone
	}
	return nil
}

// normalizePhone renders the number in E.164 so the provider stores a
// canonical form.
func normalizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	parsed, err := phonenumbers.Parse(phone, phoneRegion)
	if err != nil {
		return phone
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

func ProfileShow(app *App) router.HandlerFunc {
	return func(ctx router.Context) error {
		snap := app.store.Snapshot()
		return renderWithGlobals(app, ctx, "profile", router.ViewContext{
			"errors": nil,
			"record": profileRecord(snap.User),
		})
	}
}

func ProfileUpdate(app *App) router.HandlerFunc {
	return func(ctx router.Context) error {
		payload := new(ProfileRequest)

		if err := ctx.Bind(payload); err != nil {
			app.GetLogger("profile").Error("profile parse payload", "error", err)
			return renderWithGlobals(app, ctx, "profile", router.ViewContext{
				"errors": map[string]string{"form": "Failed to parse form"},
				"record": payload,
			})
		}

		if err := payload.Validate(); err != nil {
			return renderWithGlobals(app, ctx, "profile", router.ViewContext{
				"record":     payload,
				"validation": gate.FormatValidationErrorToMap(err),
			})
		}

		user, err := app.client.UpdateUser(ctx.Context(), supabase.UserAttributes{
			Phone: normalizePhone(payload.Phone),
			Data: map[string]any{
				"display_name": payload.DisplayName,
			},
		})
		if err != nil {
			app.GetLogger("profile").Error("profile provider call", "error", err)
			return renderWithGlobals(app, ctx, "profile", router.ViewContext{
				"record": payload,
				"errors": map[string]string{"profile": gate.ProviderMessage(err)},
			})
		}

		return renderWithGlobals(app, ctx, "profile", router.ViewContext{
			"record":  profileRecord(user),
			"updated": true,
		})
	}
}

func profileRecord(user *gate.User) ProfileRequest {
	if user == nil {
		return ProfileRequest{}
	}
	return ProfileRequest{
		DisplayName: user.DisplayName(),
		Phone:       user.Phone,
	}
}

var errInvalidPhone = errors.New("Numéro de téléphone invalide")
