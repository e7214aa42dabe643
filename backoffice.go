// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backoffice

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/alien-bunny/backoffice/lib/certcache"
	"github.com/alien-bunny/backoffice/lib/config"
	"github.com/alien-bunny/backoffice/lib/db"
	"github.com/alien-bunny/backoffice/lib/event"
	"github.com/alien-bunny/backoffice/lib/log"
	"github.com/alien-bunny/backoffice/lib/middleware"
	"github.com/alien-bunny/backoffice/lib/server"
	"github.com/alien-bunny/backoffice/middlewares/configmw"
	"github.com/alien-bunny/backoffice/middlewares/dbmw"
	"github.com/alien-bunny/backoffice/middlewares/errormw"
	"github.com/alien-bunny/backoffice/middlewares/logmw"
	"github.com/alien-bunny/backoffice/middlewares/metricsmw"
	"github.com/alien-bunny/backoffice/middlewares/rendermw"
	"github.com/alien-bunny/backoffice/middlewares/requestmw"
	"github.com/alien-bunny/backoffice/middlewares/securitymw"
	"github.com/alien-bunny/backoffice/middlewares/sessionmw"
	"github.com/alien-bunny/backoffice/middlewares/translationmw"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const (
	// VERSION is the version of the back-office.
	VERSION = "dev"

	// databaseRetries is the number of extra connection attempts when the database is not up yet.
	databaseRetries = 10
)

// Config is the "config" section of the configuration: the server itself.
type Config struct {
	AdminKey string
	Cookie   struct {
		Prefix       string
		ExpiresAfter string
	}
	Directories struct {
		Assets string
	}
	Log struct {
		Access        bool
		DisplayErrors bool
		Format        string
		Level         string
	}
	Gzip          bool
	DisableMaster bool
	Watch         bool
	Host          string
	Port          string
	MaxBodySize   int64
	HTTPS         struct {
		LetsEncrypt   bool
		Autocert      string
		AutocertCache string
		CertFile      string
		KeyFile       string
	}
	Timeout  int
	Language struct {
		Default      string
		Supported    string
		Translations string
	}
	Metrics struct {
		Enabled bool
		Path    string
		Public  bool

		// AllowedNetworks is a comma separated list of networks that can read non-public metrics. Defaults to the private networks.
		AllowedNetworks string
	}
}

// NewConfigStore creates a configuration store that reads the environment and the files in dir.
//
// Environment variables take precedence over the files.
func NewConfigStore(logger log.Logger, dir string) *config.Store {
	if dir == "" {
		dir = "."
	}

	conf := config.NewStore(logger)
	conf.RegisterSchema("config", reflect.TypeOf(Config{}))
	conf.RegisterSchema("database", reflect.TypeOf(db.Config{}))
	conf.AddProviders(
		config.NewEnvConfigProvider(),
		config.NewDefaultDirectoryConfigProvider(dir),
	)

	return conf
}

// LoadConfig reads the server section.
func LoadConfig(conf *config.Store) (Config, error) {
	conf.RegisterSchema("config", reflect.TypeOf(Config{}))

	var c Config
	if err := conf.Load("config", &c); err != nil {
		return c, err
	}

	return c, nil
}

// NewLogger creates the logger described by the log section of conf.
//
// fallback is returned when the section sets neither a format nor a level.
func NewLogger(w io.Writer, conf Config, fallback log.Logger) (log.Logger, error) {
	if conf.Log.Format == "" && conf.Log.Level == "" {
		return fallback, nil
	}

	return log.New(w, conf.Log.Format, conf.Log.Level)
}

// ConfigureFunc registers the services of an application on the assembled server.
type ConfigureFunc func(conf *config.Store, s *server.Server, conn *gorm.DB) error

// Hop loads the configuration from the environment and configDir, assembles
// the server with Pet, lets configure register the services, migrates the
// database and serves until ctx is cancelled.
//
// logger is replaced when the log section of the configuration is set.
func Hop(ctx context.Context, configure ConfigureFunc, logger log.Logger, configDir string) error {
	if logger == nil {
		logger = log.DefaultDevLogger(level.AllowInfo())
	}

	conf := NewConfigStore(logger, configDir)
	serverConfig, err := LoadConfig(conf)
	if err != nil {
		return err
	}

	if logger, err = NewLogger(os.Stdout, serverConfig, logger); err != nil {
		return err
	}

	conn, err := OpenDatabase(conf, logger)
	if err != nil {
		return err
	}

	s, err := Pet(conf, logger, conn)
	if err != nil {
		return err
	}

	if configure != nil {
		if err := configure(conf, s, conn); err != nil {
			return err
		}
	}

	if err := Migrate(ctx, s); err != nil {
		return err
	}

	if serverConfig.Watch {
		w, err := config.NewWatcher(conf, logger, configDir)
		if err != nil {
			return err
		}
		defer w.Close()
		w.OnChange(func(name string) {
			if err := Reload(s, nil); err != nil {
				log.Warn(logger).Log("msg", "reload failed", "file", name, "error", err)
			}
		})
	}

	if err := setupTLS(s, serverConfig, logger); err != nil {
		return err
	}

	return Serve(ctx, s, serverConfig)
}

// Serve starts the server and shuts it down gracefully when ctx is done.
func Serve(ctx context.Context, s *server.Server, serverConfig Config) error {
	addr := serverConfig.Host + ":" + serverConfig.Port
	errch := make(chan error, 1)
	go func() {
		if s.TLSConfig != nil {
			errch <- s.StartHTTPS(addr, "", "")
		} else {
			errch <- s.StartHTTP(addr)
		}
	}()

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(serverConfig.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info(s.Logger).Log("msg", "shutting down")
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errch
}

func setupTLS(s *server.Server, serverConfig Config, logger log.Logger) error {
	hosts := autocert.HostWhitelist(serverConfig.Host)

	switch {
	case serverConfig.HTTPS.LetsEncrypt:
		if err := s.EnableLetsEncrypt(serverConfig.HTTPS.AutocertCache, hosts); err != nil {
			return err
		}
	case serverConfig.HTTPS.Autocert != "":
		if err := s.EnableAutocert(serverConfig.HTTPS.Autocert, serverConfig.HTTPS.AutocertCache, hosts); err != nil {
			return err
		}
	case serverConfig.HTTPS.CertFile != "" && serverConfig.HTTPS.KeyFile != "":
		cc := certcache.New(logger, certcache.Files(serverConfig.HTTPS.CertFile, serverConfig.HTTPS.KeyFile))
		s.TLSConfig = &tls.Config{GetCertificate: cc.Get}
		if err := s.Events().Subscribe(EventReload, event.Action(cc.Clear)); err != nil {
			return err
		}
	default:
		return nil
	}

	s.TLSConfig.CurvePreferences = []tls.CurveID{
		tls.X25519,
		tls.CurveP256,
	}
	s.TLSConfig.MinVersion = tls.VersionTLS12

	return nil
}

// OpenDatabase opens the database of the "database" configuration section.
func OpenDatabase(conf *config.Store, logger log.Logger) (*gorm.DB, error) {
	conf.RegisterSchema("database", reflect.TypeOf(db.Config{}))

	var dbConfig db.Config
	if err := conf.Load("database", &dbConfig); err != nil {
		return nil, err
	}

	return db.RetryOpen(dbConfig, logger, databaseRetries)
}

// Pet assembles a server with the default middlewares.
//
// When conn is nil, the database is opened from the configuration.
func Pet(conf *config.Store, logger log.Logger, conn *gorm.DB) (*server.Server, error) {
	serverConfig, err := LoadConfig(conf)
	if err != nil {
		return nil, err
	}

	if conn == nil {
		if conn, err = OpenDatabase(conf, logger); err != nil {
			return nil, err
		}
	}

	s := server.NewServer(conf, logger)
	s.Router.NotFound = simpleErrorPage(http.StatusNotFound)
	s.Router.MethodNotAllowed = simpleErrorPage(http.StatusMethodNotAllowed)

	if !serverConfig.DisableMaster {
		s.SetMaster()
	}

	if hostname, _ := os.Hostname(); hostname != "" {
		s.Logger = log.With(s.Logger, "hostname", hostname)
	}

	if serverConfig.Metrics.Enabled {
		mm := metricsmw.New()
		s.Use(mm)

		path := serverConfig.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		if serverConfig.Metrics.Public {
			s.Get(path, mm.Handler())
		} else {
			restrict := securitymw.NewRestrictPrivateAddressMiddleware()
			if networks := splitList(serverConfig.Metrics.AllowedNetworks); len(networks) > 0 {
				if restrict, err = securitymw.NewRestrictAddressMiddleware(networks...); err != nil {
					return nil, err
				}
			}
			s.Get(path, mm.Handler(), restrict)
		}
	}

	s.Use(requestmw.NewRequestIDMiddleware())

	if serverConfig.Log.Access {
		s.Use(requestmw.NewRequestLoggerMiddleware(s.Logger))
	}

	if serverConfig.MaxBodySize > 0 {
		s.UseF(securitymw.LengthLimitMiddleware(serverConfig.MaxBodySize))
	}

	if serverConfig.Gzip {
		handler, err := gziphandler.GzipHandlerWithOpts(gziphandler.CompressionLevel(9))
		if err != nil {
			return nil, err
		}
		s.Use(middleware.Func(handler))
	}

	s.Use(configmw.NewConfigMiddleware(conf))

	s.UseF(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Powered-By", "Backoffice "+VERSION)
			next.ServeHTTP(w, r)
		})
	})

	s.Use(logmw.New(s.Logger))

	s.Use(configmw.WrapMiddleware("hsts", reflect.TypeOf(securitymw.HSTSMiddleware{})))

	expiresAfter := time.Hour * 24 * 365
	if serverConfig.Cookie.ExpiresAfter != "" {
		if expiresAfter, err = time.ParseDuration(serverConfig.Cookie.ExpiresAfter); err != nil {
			return nil, err
		}
	}
	s.Use(sessionmw.New(serverConfig.Cookie.Prefix, expiresAfter))

	lang := language.English
	if serverConfig.Language.Default != "" {
		if lang, err = language.Parse(serverConfig.Language.Default); err != nil {
			return nil, err
		}
	}
	supported, err := parseSupportedLanguages(serverConfig.Language.Supported)
	if err != nil {
		return nil, err
	}
	tmw := translationmw.New(
		s.Logger,
		append([]language.Tag{lang}, supported...),
		translationmw.URLParamLanguage("lang"),
		translationmw.SessionLanguage{},
		translationmw.CookieLanguage(serverConfig.Cookie.Prefix+"_LANGUAGE"),
		translationmw.AcceptLanguage{},
		translationmw.DynamicDefaultLanguage{},
		translationmw.StaticDefaultLanguage(lang),
	)
	if serverConfig.Language.Translations != "" {
		if err = tmw.LoadDirectory(serverConfig.Language.Translations); err != nil {
			return nil, err
		}
	}
	s.Use(tmw)

	s.Use(errormw.New(serverConfig.Log.DisplayErrors))

	s.Use(rendermw.New())

	s.Use(securitymw.NewCSRFMiddleware())
	s.GetF("/api/token", func(w http.ResponseWriter, r *http.Request) {
		token := securitymw.GetCSRFToken(r)

		Render(r).
			JSON(map[string]string{"token": token}).
			Text(token)
	})

	dbMiddleware := dbmw.NewMiddleware(conn, s, s.Logger)
	s.Use(dbMiddleware)
	if err := s.Events().Subscribe(EventMigrate, dbMiddleware); err != nil {
		return nil, err
	}

	if err := s.Events().Subscribe(EventReload, event.Action(conf.ClearCache)); err != nil {
		return nil, err
	}

	if serverConfig.Directories.Assets != "-" {
		if serverConfig.Directories.Assets == "" {
			serverConfig.Directories.Assets = "assets"
		}

		if info, err := os.Stat(serverConfig.Directories.Assets); err == nil && info.IsDir() {
			s.AddStaticLocalDir("/assets", filepath.Clean(serverConfig.Directories.Assets))
		}
	}

	if serverConfig.AdminKey != "" {
		keymw := securitymw.AdminKeyMiddleware(serverConfig.AdminKey)

		s.GetF("/cache-clear", func(w http.ResponseWriter, r *http.Request) {
			MaybeFail(http.StatusInternalServerError, Reload(s, r))
		}, keymw)
	}

	return s, nil
}

// Migrate creates or updates the database schema of the services.
//
// Only a master server migrates.
func Migrate(ctx context.Context, s *server.Server) error {
	if !s.IsMaster() {
		return nil
	}

	return s.Events().DispatchError(NewMigrateEvent(ctx))
}

// Reload clears the configuration caches and lets the services reload their resources.
func Reload(s *server.Server, r *http.Request) error {
	return s.Events().DispatchError(NewReloadEvent(r))
}

// splitList splits a comma separated configuration value.
func splitList(list string) []string {
	var items []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}

func parseSupportedLanguages(supported string) ([]language.Tag, error) {
	var sl []language.Tag
	for _, l := range splitList(supported) {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, err
		}
		sl = append(sl, tag)
	}

	return sl, nil
}

var defaultDeps = []string{
	requestmw.MiddlewareDependencyRequestID,
	logmw.MiddlewareDependencyLog,
	translationmw.MiddlewareDependencyTranslation,
	errormw.MiddlewareDependencyError,
	rendermw.MiddlewareDependencyRender,
	sessionmw.MiddlewareDependencySession,
	securitymw.MiddlewareDependencyCSRF,
	dbmw.MiddlewareDependencyDB,
}

// DefaultDependencies can be embedded into handlers that need the middlewares of Pet.
type DefaultDependencies struct{}

func (d DefaultDependencies) Dependencies() []string {
	return defaultDeps
}

// WrapHandler adds all middlewares from Pet as a dependency to the given handler.
func WrapHandler(h http.Handler, extradeps ...string) http.Handler {
	return middleware.WrapHandler(h, append(defaultDeps, extradeps...)...)
}

// WrapHandlerFunc wraps a handler func with WrapHandler.
func WrapHandlerFunc(f func(http.ResponseWriter, *http.Request), extradeps ...string) http.Handler {
	return WrapHandler(http.HandlerFunc(f), extradeps...)
}

func simpleErrorPage(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pd := errormw.NewErrorPageData(code, r)
		Render(r).SetCode(code).HTML(errormw.ErrorPage, pd)
	})
}

// Pager extracts the "page" query from the url, and returns the 1-based page number.
//
// A missing or invalid page is the first page.
func Pager(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}

	return page
}

// RedirectHTTPSServer sets up and starts a http server that redirects all requests to https.
func RedirectHTTPSServer(logger log.Logger, addr string) error {
	return (&http.Server{
		Addr:         addr,
		ReadTimeout:  4 * time.Second,
		WriteTimeout: 4 * time.Second,
		IdleTimeout:  128 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Connection", "close")

			newURL := "https://" + r.Host + r.URL.String()

			log.Debug(logger).Log(
				"component", "redirect server",
				"from", r.URL.String(),
				"to", newURL,
			)

			http.Redirect(w, r, newURL, http.StatusMovedPermanently)
		}),
	}).ListenAndServe()
}
