package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/oauth2client/internal/config"
	"github.com/dropDatabas3/oauth2client/internal/http/server"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/authuri"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/clientconfig"
	"github.com/dropDatabas3/oauth2client/internal/oauth2/state"
	"github.com/dropDatabas3/oauth2client/internal/observability/logger"
	"github.com/dropDatabas3/oauth2client/internal/security/secretbox"
	"github.com/dropDatabas3/oauth2client/internal/util"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath  = envOr("OAUTH2CLIENT_CONFIG", "config.yaml")
		envFiles []string
		cfg      *config.Config
	)
	loadEnv := func() {
		for _, f := range envFiles {
			// .env opcional: si falta se sigue con el entorno del sistema.
			_ = godotenv.Load(f)
		}
	}

	root := &cobra.Command{
		Use:           "oauth2client",
		Short:         "Relying party OAuth2 (authorization code grant)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadEnv()
			c, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("config %s: %w", cfgPath, err)
			}
			cfg = c
			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: "oauth2client",
				Version:     version,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", cfgPath, "Archivo YAML de configuración (env OAUTH2CLIENT_CONFIG)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Archivos .env a cargar antes de leer la config")

	root.AddCommand(
		newServeCmd(func() *config.Config { return cfg }),
		newClientsCmd(func() *config.Config { return cfg }),
		newAuthorizeURLCmd(func() *config.Config { return cfg }),
		newEncryptSecretCmd(loadEnv),
	)
	return root
}

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP con los endpoints del flujo",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.L().With(logger.Component("serve"))
	ctx = logger.ToContext(ctx, log)

	app, err := server.Build(ctx, cfg, server.Deps{})
	if err != nil {
		return fmt.Errorf("wiring: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("cleanup error", logger.Err(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
		WriteTimeout:      30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("authorize_base_uri", cfg.Authorization.BaseURI),
			logger.Int("clients", len(app.Repository.IDs())),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return app.RunJanitor(gctx, cfg.CleanupInterval())
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newClientsCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "Lista las configuraciones de cliente registradas",
		RunE: func(cmd *cobra.Command, args []string) error {
			regs, err := cfg().Registrations()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range regs {
				fmt.Fprintf(out, "%s\t%s\tclient_id=%s\tclient_secret=%s\tredirect=%s\tscopes=%v\n",
					r.ID, r.ClientName, r.ClientID, util.MaskSecret(r.ClientSecret), r.RedirectURI, r.Scopes())
			}
			return nil
		},
	}
}

// authorize-url sirve para depurar una registración sin levantar el server.
// El state generado no se persiste.
func newAuthorizeURLCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize-url <config-id>",
		Short: "Imprime la URL de autorización de una configuración",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			regs, err := cfg().Registrations()
			if err != nil {
				return err
			}
			repo, err := clientconfig.NewInMemoryRepository(regs...)
			if err != nil {
				return err
			}
			c, err := repo.FindByID(args[0])
			if err != nil {
				return err
			}
			st, err := state.Generate()
			if err != nil {
				return err
			}
			var b authuri.Builder = authuri.DefaultBuilder{}
			if cfg().Exchange.Driver == "oauth2" {
				b = authuri.OAuth2Builder{}
			}
			u, err := b.Build(c, st)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

// encrypt-secret no lee la config: solo necesita OAUTH2CLIENT_SECRETBOX_KEY.
func newEncryptSecretCmd(loadEnv func()) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-secret [plaintext]",
		Short: "Cifra un client_secret para usarlo como \"enc:...\" en el YAML",
		Args:  cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadEnv()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key := os.Getenv(config.EnvPrefix + config.SecretBoxKeyEnv)
			if key == "" {
				return fmt.Errorf("%s%s not set; generate one with: openssl rand -base64 32", config.EnvPrefix, config.SecretBoxKeyEnv)
			}
			box, err := secretbox.New(key)
			if err != nil {
				return err
			}
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				plain = strings.TrimRight(string(b), "\r\n")
			}
			if plain == "" {
				return errors.New("empty secret")
			}
			ct, err := box.Encrypt(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secretbox.Prefix+ct)
			return nil
		},
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
