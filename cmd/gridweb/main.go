package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	gconfig "github.com/goliatone/go-config/config"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/grid78/go-gate"
	"github.com/grid78/go-gate/cmd/gridweb/config"
	"github.com/grid78/go-gate/middleware/guardware"
	"github.com/grid78/go-gate/provider/supabase"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

//go:embed views
var viewsFS embed.FS

type App struct {
	config *gconfig.Container[*config.BaseConfig]
	bunDB  *bun.DB
	client *supabase.Client
	store  *gate.SessionStore
	coord  *gate.Coordinator
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

// printfLogger adapts the slog-style app logger to the printf Logger the
// gate packages expect; without it format verbs reach the log unrendered.
type printfLogger struct {
	l glog.Logger
}

func (p printfLogger) Debug(format string, args ...any) { p.l.Debug(fmt.Sprintf(format, args...)) }
func (p printfLogger) Info(format string, args ...any)  { p.l.Info(fmt.Sprintf(format, args...)) }
func (p printfLogger) Warn(format string, args ...any)  { p.l.Warn(fmt.Sprintf(format, args...)) }
func (p printfLogger) Error(format string, args ...any) { p.l.Error(fmt.Sprintf(format, args...)) }

func (a *App) gateLogger(name string) gate.Logger {
	return printfLogger{l: a.GetLogger(name)}
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("gridweb"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithIdentity(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	AuthRoutes(app)
	ProtectedRoutes(app)

	go app.srv.Serve(app.Config().GetServer().GetAddr())

	WaitExitSignal()

	app.coord.Close()
	app.client.Close()
	if app.bunDB != nil {
		_ = app.bunDB.Close()
	}
}

// WithPersistence opens the local SQLite database backing the session
// cache. Everything else lives with the hosted provider.
func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.Config().GetPersistence().GetDSN())
	if err != nil {
		return err
	}

	app.bunDB = bun.NewDB(db, sqlitedialect.New())
	return nil
}

// WithIdentity wires the provider client, the session store and the
// coordinator. Missing credentials are logged, not fatal: pages render and
// every credential submission surfaces the degradation error instead.
func WithIdentity(ctx context.Context, app *App) error {
	pcfg := app.Config().GetProvider()

	storage := supabase.NewBunStorage(app.bunDB)
	if err := storage.Init(ctx); err != nil {
		return err
	}

	app.client = supabase.New(supabase.Config{
		URL:           pcfg.GetURL(),
		AnonKey:       pcfg.GetAnonKey(),
		JWTSecret:     pcfg.GetJWTSecret(),
		Storage:       storage,
		StorageKey:    pcfg.GetStorageKey(),
		AutoRefresh:   true,
		RefreshMargin: pcfg.GetRefreshMargin(),
		Logger:        app.gateLogger("identity"),
	})

	app.store = gate.NewSessionStore(
		gate.WithStoreLogger(app.gateLogger("store")),
	)

	activity := app.GetLogger("activity")
	sink := gate.ActivitySinkFunc(func(_ context.Context, event gate.ActivityEvent) error {
		activity.Info("auth activity", "type", string(event.EventType), "email", event.Email)
		return nil
	})

	app.coord = gate.NewCoordinator(app.client, app.store, nil,
		gate.WithCoordinatorLogger(app.gateLogger("coordinator")),
		gate.WithCoordinatorActivitySink(sink),
	)
	app.coord.Start()

	// Replays the persisted session, refreshing if stale; the coordinator
	// applies the resulting INITIAL_SESSION event and primes the store.
	if err := app.client.Restore(ctx); err != nil {
		app.GetLogger("identity").Warn("session restore", "error", err)
	}

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	engine := django.NewPathForwardingFileSystem(http.FS(viewsFS), "/views", ".html")

	for name, fn := range gate.TemplateHelpers(app.store) {
		engine.AddFunc(name, fn)
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))
	srv.Router().Use(mflash.New(mflash.ConfigDefault))

	// The guard re-evaluates on every request: the session mutates
	// asynchronously (refresh, sign-out), so no decision is cached.
	srv.Router().Use(guardware.New(guardware.Config{
		Source:    app.store,
		Redirects: gate.NewRedirectCapture(app.Config()),
		Filter: func(ctx router.Context) bool {
			return strings.HasPrefix(ctx.Path(), "/static/") || ctx.Path() == "/favicon.ico"
		},
	}))

	// Signed-in users have no business on the entry pages.
	srv.Router().Use(redirectAuthenticated(app))

	app.srv = srv
	return nil
}

// redirectAuthenticated sends signed-in users away from the pre-auth pages,
// mirroring the coordinator's post-sign-in navigation rule per request.
func redirectAuthenticated(app *App) router.MiddlewareFunc {
	routes := gate.DefaultRoutes()
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if ctx.Method() != string(router.GET) {
				return ctx.Next()
			}
			if !routes.IsPreAuth(ctx.Path()) {
				return ctx.Next()
			}
			if !app.store.Snapshot().Authenticated() {
				return ctx.Next()
			}
			return ctx.Redirect(routes.Dashboard, http.StatusFound)
		}
	}
}

func AuthRoutes(app *App) {
	resetURL := strings.TrimRight(app.Config().GetApp().GetBaseURL(), "/") + "/reset-password"

	gate.RegisterAuthRoutes(app.srv.Router().Group("/"),
		gate.WithClient(app.client),
		gate.WithStore(app.store),
		gate.WithRedirectCapture(gate.NewRedirectCapture(app.Config())),
		gate.WithControllerLogger(app.gateLogger("auth:ctrl")),
		gate.WithResetRedirectURL(resetURL),
	)
}

func ProtectedRoutes(app *App) {
	p := app.srv.Router()

	p.Get("/dashboard", Dashboard(app)).SetName("dashboard.get")
	p.Get("/profile", ProfileShow(app)).SetName("profile.get")
	p.Post("/profile", ProfileUpdate(app)).SetName("profile.post")
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
