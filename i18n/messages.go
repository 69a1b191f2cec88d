// Package i18n holds the read-only UI string table. French is the default
// and only locale for now; other locales can be added later.
package i18n

// Messages groups every user-facing string by page.
type Messages struct {
	App       AppMessages
	Login     LoginMessages
	Signup    SignupMessages
	Forgot    ForgotMessages
	Reset     ResetMessages
	Dashboard DashboardMessages
	Profile   ProfileMessages
	Errors    ErrorMessages
}

type AppMessages struct {
	Title  string
	Logout string
}

type LoginMessages struct {
	Title         string
	Description   string
	EmailLabel    string
	PasswordLabel string
	Submit        string
	Submitting    string
	SignupHint    string
	SignupLink    string
	ForgotLink    string
	SignupNotice  string
}

type SignupMessages struct {
	Title                string
	Description          string
	EmailLabel           string
	PasswordLabel        string
	ConfirmPasswordLabel string
	Submit               string
	Submitting           string
	LoginHint            string
	LoginLink            string
}

type ForgotMessages struct {
	Title       string
	Description string
	EmailLabel  string
	Submit      string
	Success     string
	BackToLogin string
}

type ResetMessages struct {
	Title                string
	Description          string
	PasswordLabel        string
	ConfirmPasswordLabel string
	Submit               string
	Success              string
	SuccessDetail        string
	BackToLogin          string
}

type DashboardMessages struct {
	Title     string
	Welcome   string
	Protected string
}

type ProfileMessages struct {
	Title            string
	EmailLabel       string
	DisplayNameLabel string
	PhoneLabel       string
	Submit           string
	Updated          string
}

type ErrorMessages struct {
	EmailInvalid string
	PasswordMin  string
	LinkInvalid  string
}

// FR is the default string table.
var FR = Messages{
	App: AppMessages{
		Title:  "Grid78",
		Logout: "Déconnexion",
	},
	Login: LoginMessages{
		Title:         "CONNEXION",
		Description:   "Connectez-vous avec votre email et mot de passe",
		EmailLabel:    "Email",
		PasswordLabel: "Mot de passe",
		Submit:        "Se connecter",
		Submitting:    "Connexion…",
		SignupHint:    "Pas encore de compte ?",
		SignupLink:    "Créer un compte",
		ForgotLink:    "Mot de passe oublié ?",
		SignupNotice:  "Un email de confirmation vous a été envoyé.",
	},
	Signup: SignupMessages{
		Title:                "CRÉER UN COMPTE",
		Description:          "Renseignez votre email et un mot de passe pour créer un compte.",
		EmailLabel:           "Email",
		PasswordLabel:        "Mot de passe",
		ConfirmPasswordLabel: "Confirmer le mot de passe",
		Submit:               "Créer mon compte",
		Submitting:           "Création…",
		LoginHint:            "Déjà inscrit ?",
		LoginLink:            "Se connecter",
	},
	Forgot: ForgotMessages{
		Title:       "MOT DE PASSE OUBLIÉ",
		Description: "Renseignez votre email pour recevoir un lien de réinitialisation.",
		EmailLabel:  "Email",
		Submit:      "Envoyer le lien",
		Success:     "Un email de réinitialisation vous a été envoyé.",
		BackToLogin: "Retour à la connexion",
	},
	Reset: ResetMessages{
		Title:                "Nouveau mot de passe",
		Description:          "Choisissez un mot de passe sécurisé pour votre compte",
		PasswordLabel:        "Nouveau mot de passe",
		ConfirmPasswordLabel: "Confirmer le mot de passe",
		Submit:               "Réinitialiser le mot de passe",
		Success:              "Mot de passe modifié !",
		SuccessDetail:        "Votre mot de passe a été mis à jour avec succès. Vous allez être redirigé vers la page de connexion...",
		BackToLogin:          "Retour à la connexion",
	},
	Dashboard: DashboardMessages{
		Title:     "Dashboard",
		Welcome:   "Bienvenue",
		Protected: "Cet espace est protégé. Vous êtes connecté.",
	},
	Profile: ProfileMessages{
		Title:            "Profil",
		EmailLabel:       "Email",
		DisplayNameLabel: "Nom affiché",
		PhoneLabel:       "Téléphone",
		Submit:           "Enregistrer",
		Updated:          "Profil mis à jour.",
	},
	Errors: ErrorMessages{
		EmailInvalid: "Email invalide",
		PasswordMin:  "Au moins 8 caractères",
		LinkInvalid:  "Lien de réinitialisation invalide ou expiré",
	},
}

// Default returns the active string table.
func Default() Messages {
	return FR
}
