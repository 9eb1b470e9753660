package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/schema"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve <schema>",
		Short: "Serve validation, state and lookup endpoints for a schema",
		Long: `Serve exposes the schema over HTTP:

  GET  /schema            the current schema
  POST /validate          {"data": {...}, "trigger": "submit"} -> report
  POST /state             {"data": {...}} -> field state
  POST /options/{field}   {"data": {...}} -> {"data": [options]}
  GET  /lookups/{ref}     query params -> {"data": [options]}
  GET  /api/timezones     IANA timezone search

The schema file is watched and reloaded on change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, args[0], !noWatch, nil)
		},
	}
	flags := cmd.Flags()
	flags.String("addr", "", "listen address (default :8080)")
	flags.String("base-path", "", "prefix for every route")
	flags.BoolVar(&noWatch, "no-watch", false, "do not reload the schema on change")
	_ = rootOpts.viper.BindPFlag("serve.addr", flags.Lookup("addr"))
	_ = rootOpts.viper.BindPFlag("serve.basePath", flags.Lookup("base-path"))
	return cmd
}

// runServe blocks until ctx is done. When ready is non-nil it receives the
// bound address once the listener is open.
func runServe(ctx context.Context, opts *RootOptions, path string, watch bool, ready chan<- string) error {
	form, err := loadSchema(path)
	if err != nil {
		return err
	}
	rt, err := opts.newRuntime(form.Lookups...)
	if err != nil {
		return WrapExitError(ExitCommandError, "setup", err)
	}
	defer rt.close()

	logger := opts.log().Named("serve")
	srv := newServer(rt, form, logger, opts.viper.GetString("locale"))
	handler, err := srv.routes(opts.viper.GetString("serve.basePath"))
	if err != nil {
		return WrapExitError(ExitCommandError, "routes", err)
	}

	listener, err := net.Listen("tcp", opts.viper.GetString("serve.addr"))
	if err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("serving schema", zap.String("schema", form.ID), zap.String("addr", listener.Addr().String()))
	if ready != nil {
		ready <- listener.Addr().String()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if watch {
		group.Go(func() error {
			return schema.Watch(groupCtx, path, func(next model.FormSchema, err error) {
				if err != nil {
					logger.Warn("schema reload failed, keeping previous schema", zap.Error(err))
					return
				}
				srv.reload(next)
			})
		})
	}
	return group.Wait()
}
