package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/sessionkit/sessionkit/coordinator"
	"github.com/sessionkit/sessionkit/refreshclient"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sessionwatch",
		Short:         "Watch a shared session and keep its access token fresh",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newWatchCmd(&configPath),
		newRefreshCmd(&configPath),
		newLoginCmd(&configPath),
		newLogoutCmd(&configPath),
		newStatusCmd(&configPath),
	)
	return root
}

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Monitor the access token and refresh it before expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			displayAppname(a.cfg.GetAppName())

			refresher := refreshclient.New(refreshclient.DefaultConfig(a.cfg.GetAPIBaseURL()))
			coord, err := coordinator.New(a.tokens, a.lock, a.bus, refresher,
				coordinator.WithTickInterval(a.cfg.GetTickInterval()),
				coordinator.WithThreshold(a.cfg.GetRefreshThreshold()),
				coordinator.WithAutoRefresh(a.cfg.GetAutoRefresh()),
				coordinator.WithLogger(a.logger),
				coordinator.WithOnLogout(func(reason string) {
					a.logger.Warn().
						Str("reason", reason).
						Str("login_url", a.cfg.GetLoginURL()).
						Msg("Session ended, log in again")
				}),
			)
			if err != nil {
				return err
			}

			if err := coord.Start(); err != nil {
				return err
			}
			defer coord.Stop()

			go consumeEvents(a, coord)
			waitForStopSignal()
			return nil
		},
	}
}

func consumeEvents(a *app, coord *coordinator.Coordinator) {
	for event := range coord.Events() {
		switch event.Kind {
		case coordinator.EventRefreshed:
			a.logger.Info().Msg("Session refreshed")
		case coordinator.EventLoggedOut:
			a.logger.Warn().Str("reason", event.Reason).Msg("Logged out")
		}
	}
}

func newRefreshCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a single refresh now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			refresher := refreshclient.New(refreshclient.DefaultConfig(a.cfg.GetAPIBaseURL()))
			coord, err := coordinator.New(a.tokens, a.lock, a.bus, refresher,
				coordinator.WithAutoRefresh(false),
				coordinator.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			return coord.ForceRefresh(ctx)
		},
	}
}

func newLoginCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login <access-token> <refresh-token>",
		Short: "Store a freshly issued token pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.tokens.SetPair(args[0], args[1]); err != nil {
				return err
			}
			a.logger.Info().Msg("Token pair stored")
			return nil
		},
	}
}

func newLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.tokens.Clear(); err != nil {
				return err
			}
			a.logger.Info().Msg("Token pair cleared")
			return nil
		},
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session and lock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			expiry, err := a.tokens.Expiry(time.Now())
			if err != nil {
				return err
			}
			if expiry.Active {
				fmt.Printf("session: active, role=%s, expires %s (%s left)\n",
					expiry.Role,
					expiry.ExpiresAt.Format(time.RFC3339),
					expiry.TimeLeft.Round(time.Second))
			} else {
				fmt.Println("session: none")
			}

			holder, err := a.lock.Holder()
			if err != nil {
				return err
			}
			if holder != nil {
				fmt.Printf("refresh lock: held by %s since %s\n",
					holder.Owner, holder.AcquiredAt().Format(time.RFC3339))
			} else {
				fmt.Println("refresh lock: free")
			}
			return nil
		},
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
