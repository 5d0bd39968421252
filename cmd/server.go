package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
	"github.com/mjenner/nodegate/internal/pkg/handlers"
	"github.com/mjenner/nodegate/internal/pkg/logging"
	"github.com/mjenner/nodegate/internal/pkg/nodemap"
	"github.com/mjenner/nodegate/pkg/middlewares"
)

var _serverCmdOpts struct {
	httpPort        uint16
	haBaseURL       string
	haToken         string
	haTimeout       time.Duration
	statesTTL       time.Duration
	wwwRoot         string
	gracefulTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	logRequests     bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the gateway web server",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doServer(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("ha.base-url", "ha.token")
	},
}

func init() {
	serverCmd.Flags().Uint16Var(&_serverCmdOpts.httpPort, "http-port", 8199, "HTTP port number")
	serverCmd.Flags().StringVar(&_serverCmdOpts.haBaseURL, "ha-url", "http://supervisor/core/api", "base URL of the Home Assistant REST API")
	serverCmd.Flags().StringVar(&_serverCmdOpts.haToken, "ha-token", "", "bearer token for the Home Assistant REST API")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.haTimeout, "ha-timeout", time.Second*10, "maximum duration of an upstream API call, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.statesTTL, "states-ttl", haapi.DefaultStatesTTL, "how long a bulk state snapshot is reused before refetching")
	serverCmd.Flags().StringVar(&_serverCmdOpts.wwwRoot, "www-root", ".", "directory to serve static files from")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for server to finish, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.writeTimeout, "write-timeout", time.Second*60, "duration to wait for request write, eg. 1m or 10s")
	serverCmd.Flags().BoolVar(&_serverCmdOpts.logRequests, "log-requests", false, "log requests and responses (only in debug mode)")

	errPanic(viper.GetViper().BindPFlag("http.port", serverCmd.Flags().Lookup("http-port")))
	errPanic(viper.GetViper().BindPFlag("ha.base-url", serverCmd.Flags().Lookup("ha-url")))
	errPanic(viper.GetViper().BindPFlag("ha.token", serverCmd.Flags().Lookup("ha-token")))
	errPanic(viper.GetViper().BindPFlag("ha.api-timeout", serverCmd.Flags().Lookup("ha-timeout")))
	errPanic(viper.GetViper().BindPFlag("ha.states-ttl", serverCmd.Flags().Lookup("states-ttl")))
	errPanic(viper.GetViper().BindPFlag("www.root", serverCmd.Flags().Lookup("www-root")))
	errPanic(viper.GetViper().BindPFlag("http.graceful-timeout", serverCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.read-timeout", serverCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.write-timeout", serverCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", serverCmd.Flags().Lookup("log-requests")))

	rootCmd.AddCommand(serverCmd)
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) || viper.GetString(f) == "" {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}

func doServer() error {
	wait := viper.GetDuration("http.graceful-timeout")
	port := viper.GetUint("http.port")
	baseURL := viper.GetString("ha.base-url")
	token := viper.GetString("ha.token")
	apiTimeout := viper.GetDuration("ha.api-timeout")
	statesTTL := viper.GetDuration("ha.states-ttl")
	wwwRoot := viper.GetString("www.root")

	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	ha := haapi.NewLiveClient(baseURL).WithToken(token).WithTimeout(apiTimeout)
	states := haapi.NewStatesCache(ha, statesTTL)

	nh := handlers.NewNodesHandler(ha, states, nodemap.DefaultDomains)
	ah := handlers.NewActionHandler(ha, states, nodemap.DefaultDomains)
	sh := handlers.NewSetNumberHandler(ha, states, nodemap.DefaultDomains)
	th := handlers.NewStateHandler(ha)

	r := mux.NewRouter()
	r.Use(middlewares.NewCorsMw(cors.Options{AllowedMethods: []string{http.MethodGet, http.MethodPost}}))
	r.Use(middlewares.NewLoggingMw(logRequests))
	r.Use(middlewares.NewRecoveryMw())
	r.Use(middlewares.NewCorrelationMw("X-Correlation-ID"))
	r.Handle("/api/nodes", &nh).Methods(http.MethodGet)
	r.Handle("/api/action", &ah).Methods(http.MethodPost)
	r.Handle("/api/set_number", &sh).Methods(http.MethodPost)
	r.Handle("/api/state/{entity_id:.+}", &th).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(wwwRoot)))

	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  viper.GetDuration("http.read-timeout"),
		WriteTimeout: viper.GetDuration("http.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}

	logging.Logger(nil).Infof("Serving on port %d", port)
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger(nil).WithError(err).Error("running server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Block until we receive a signal
	<-c

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	logging.Logger(nil).Info("shutting down")
	if err := s.Shutdown(ctx); err != nil {
		logging.Logger(nil).WithError(err).Errorf("shutting down")
	}
	logging.Logger(nil).Info("exiting")
	return nil
}
