// Copyright 2025.
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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"

	"github.com/Adembc/lazyscp/internal/adapters/command"
	"github.com/Adembc/lazyscp/internal/adapters/config"
	"github.com/Adembc/lazyscp/internal/adapters/data/file"
	"github.com/Adembc/lazyscp/internal/adapters/data/ssh_config_file"
	"github.com/Adembc/lazyscp/internal/adapters/flags"
	"github.com/Adembc/lazyscp/internal/adapters/logger"
	"github.com/Adembc/lazyscp/internal/adapters/metrics"
	"github.com/Adembc/lazyscp/internal/adapters/sshclient"
	"github.com/Adembc/lazyscp/internal/adapters/ui"
	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"github.com/Adembc/lazyscp/internal/core/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "develop"
	gitCommit = "unknown"
)

// app holds the wiring shared by every subcommand.
type app struct {
	flags ports.FlagsProvider

	log       *zap.SugaredLogger
	cfg       domain.Config
	creds     ports.CredentialRepository
	aliases   *ssh_config_file.Resolver
	transfers *services.TransferService
	browse    *services.BrowseService

	stopMetrics context.CancelFunc
}

func main() {
	rootCmd := &cobra.Command{
		Use:          ui.AppName,
		Short:        "Copy files to and from SSH servers with scp and sftp fallback",
		Version:      fmt.Sprintf("%s (%s)", version, gitCommit),
		SilenceUsage: true,
	}
	a := &app{flags: flags.NewCobraFlags(rootCmd)}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.init(cmd.Context())
	}
	rootCmd.AddCommand(
		a.uploadCmd(),
		a.downloadCmd(),
		a.probeCmd(),
		a.lsCmd(),
		a.mkdirCmd(),
		a.rmCmd(),
		a.mvCmd(),
		a.serversCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init(ctx context.Context) error {
	osCfg := config.NewOSConfig(a.flags.GetFlag(flags.FlagConfigDir))

	log, err := logger.New(osCfg.LogPath("lazyscp.log"), a.flags.IsDebug())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = log

	cfg, err := file.NewConfigRepo(log, osCfg.ConfigPath("lazyscp.yaml"), osCfg.HomeDir()).Load()
	if err != nil {
		log.Warnw("failed to load configuration, using defaults", "error", err)
	}
	if addr := a.flags.GetFlag(flags.FlagMetricsAddr); addr != "" {
		cfg.MetricsAddr = addr
	}
	a.cfg = cfg

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)
	if cfg.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		a.stopMetrics = cancel
		go func() {
			if err := metrics.Serve(metricsCtx, log, cfg.MetricsAddr, registry); err != nil {
				log.Errorw("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	establisher := sshclient.NewEstablisher(log, sshclient.OptionsFromConfig(cfg), command.NewRunner(log), recorder)
	a.transfers = services.NewTransferService(log, establisher, recorder)
	a.browse = services.NewBrowseService(log, establisher)
	a.creds = file.NewCredentialRepo(log, osCfg.ConfigPath("servers.yaml"))
	a.aliases = ssh_config_file.NewResolver(log, filepath.Join(osCfg.HomeDir(), ".ssh", "config"))
	return nil
}

func (a *app) close() {
	if a.browse != nil {
		if err := a.browse.Close(); err != nil {
			a.log.Warnw("failed to close browse connection", "error", err)
		}
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.log != nil {
		//nolint:errcheck // log.Sync may return an error which is safe to ignore here
		a.log.Sync()
	}
}

// credential resolves --server or --alias.
func (a *app) credential() (domain.ServerCredential, error) {
	server := a.flags.GetFlag(flags.FlagServer)
	alias := a.flags.GetFlag(flags.FlagAlias)
	switch {
	case server != "" && alias != "":
		return domain.ServerCredential{}, errors.New("use either --server or --alias, not both")
	case server != "":
		return a.creds.GetCredential(server)
	case alias != "":
		return a.aliases.Resolve(alias)
	default:
		return domain.ServerCredential{}, errors.New("one of --server or --alias is required")
	}
}

// remotePath anchors a relative path at the credential's default
// directory.
func remotePath(cred domain.ServerCredential, p string) string {
	p = sshclient.RemotePath(p)
	if path.IsAbs(p) || cred.DefaultRemoteDir == "" {
		return p
	}
	return sshclient.RemoteJoin(cred.DefaultRemoteDir, p)
}

func (a *app) connectBrowse(ctx context.Context) (domain.ServerCredential, error) {
	cred, err := a.credential()
	if err != nil {
		return cred, err
	}
	transcript, err := a.browse.Connect(ctx, cred)
	if err != nil {
		for _, line := range transcript {
			_, _ = fmt.Fprintln(os.Stderr, "  "+line)
		}
		return cred, err
	}
	return cred, nil
}

func (a *app) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload LOCAL... REMOTE_DIR",
		Short: "Upload files or directories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.credential()
			if err != nil {
				return err
			}
			remoteDir := remotePath(cred, args[len(args)-1])
			for _, local := range args[:len(args)-1] {
				remote := sshclient.RemoteJoin(remoteDir, filepath.Base(local))
				if _, err := a.transfers.Upload(cred, local, remote); err != nil {
					return err
				}
			}
			return a.wait(cmd.Context())
		},
	}
}

func (a *app) downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download REMOTE... LOCAL_DIR",
		Short: "Download files or directories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cred, err := a.connectBrowse(ctx)
			if err != nil {
				return err
			}
			localDir := args[len(args)-1]
			for _, arg := range args[:len(args)-1] {
				remote := remotePath(cred, arg)
				entry, err := a.stat(ctx, remote)
				if err != nil {
					return err
				}
				a.transfers.Download(cred, remote, filepath.Join(localDir, entry.Name), entry.IsDir, entry.Size)
			}
			return a.wait(ctx)
		},
	}
}

// stat finds remote in its parent's listing.
func (a *app) stat(ctx context.Context, remote string) (domain.RemoteEntry, error) {
	entries, err := a.browse.List(ctx, path.Dir(remote))
	if err != nil {
		return domain.RemoteEntry{}, err
	}
	name := path.Base(remote)
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return domain.RemoteEntry{}, fmt.Errorf("%s: no such file or directory", remote)
}

// wait renders progress until every queued transfer has finished.
func (a *app) wait(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.transfers.Watch(watchCtx, a.cfg.PollInterval, func(tasks []domain.TransferTask) {
			_, _ = fmt.Fprintf(os.Stderr, "\r%s", ui.Summary(tasks))
		})
	}()
	a.transfers.Wait()
	cancel()
	<-done
	_, _ = fmt.Fprintln(os.Stderr)

	tasks := a.transfers.Queue().Snapshot()
	if err := ui.NewRenderer(os.Stdout).Render(tasks); err != nil {
		return err
	}
	failed := 0
	for _, t := range tasks {
		if t.Status.State == domain.StateFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transfers failed", failed, len(tasks))
	}
	return nil
}

func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Connect to a server and print every step of the attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cred, err := a.credential()
			if err != nil {
				return err
			}
			transcript, err := a.browse.Connect(cmd.Context(), cred)
			for _, line := range transcript {
				fmt.Println(line)
			}
			if err != nil {
				return err
			}
			mode, _ := a.browse.Mode()
			fmt.Printf("mode: %s\n", mode)
			return nil
		},
	}
}

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.connectBrowse(cmd.Context())
			if err != nil {
				return err
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			entries, err := a.browse.List(cmd.Context(), remotePath(cred, dir))
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Println(ui.FormatEntry(e))
			}
			return nil
		},
	}
}

func (a *app) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a remote directory and its parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.connectBrowse(cmd.Context())
			if err != nil {
				return err
			}
			return a.browse.Mkdir(cmd.Context(), remotePath(cred, args[0]))
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm PATH",
		Short: "Remove a remote file, or a directory with -r",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.connectBrowse(cmd.Context())
			if err != nil {
				return err
			}
			return a.browse.Remove(cmd.Context(), remotePath(cred, args[0]), recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Remove directories and their contents")
	return cmd
}

func (a *app) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv OLD NEW",
		Short: "Rename or move a remote path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.connectBrowse(cmd.Context())
			if err != nil {
				return err
			}
			return a.browse.Rename(cmd.Context(), remotePath(cred, args[0]), remotePath(cred, args[1]))
		},
	}
}

func (a *app) serversCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "List saved servers",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			creds, err := a.creds.ListCredentials()
			if err != nil {
				return err
			}
			for _, c := range creds {
				fmt.Println(ui.FormatServer(c))
			}
			return nil
		},
	}
	cmd.AddCommand(a.serversAddCmd())
	return cmd
}

func (a *app) serversAddCmd() *cobra.Command {
	var cred domain.ServerCredential
	var authKind string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Save a server, replacing any entry with the same name",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cred.Name = args[0]
			cred.AuthKind = domain.AuthKind(authKind)
			if cred.Password == "" {
				cred.Password = os.Getenv("LAZYSCP_PASSWORD")
			}
			if err := a.creds.SaveCredential(cred); err != nil {
				return err
			}
			a.log.Infow("server saved", "name", cred.Name, "host", cred.Host)
			return nil
		},
	}
	cmd.Flags().StringVar(&cred.Host, "host", "", "Server host name or address")
	cmd.Flags().IntVar(&cred.Port, "port", domain.DefaultSSHPort, "SSH port")
	cmd.Flags().StringVar(&cred.User, "user", "", "Login user")
	cmd.Flags().StringVar(&authKind, "auth", string(domain.AuthKindKey), "Authentication kind: key or password")
	cmd.Flags().StringVar(&cred.Password, "password", "", "Password (defaults to $LAZYSCP_PASSWORD)")
	cmd.Flags().StringVar(&cred.KeyPath, "key", "", "Private key file")
	cmd.Flags().StringVar(&cred.DefaultRemoteDir, "dir", "", "Default remote directory for relative paths")
	return cmd
}
