// Command cidvault runs the vault: manage identities, publish and share
// encrypted objects, and serve the ledger API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cidvault "github.com/cidvault/cidvault"
	"github.com/cidvault/cidvault/internal/config"
	"github.com/cidvault/cidvault/internal/identity"
	"github.com/cidvault/cidvault/internal/keystore"
	"github.com/cidvault/cidvault/internal/objectstore"
	"github.com/cidvault/cidvault/internal/protocol"
	"github.com/cidvault/cidvault/pkg/apiserver"
	"github.com/cidvault/cidvault/pkg/logging"
	"github.com/cidvault/cidvault/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "path to config file")
	identityAddr := fs.String("identity", "", "acting identity address (defaults to the only stored identity)")
	output := fs.String("o", "", "output file for fetch/backup")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := logging.New(level)

	conf, err := config.Load(*configPath)
	if err != nil {
		fatal(log, err)
	}

	app := &app{conf: conf, log: log, identityAddr: types.Identity(*identityAddr), output: *output}
	if err := app.run(cmd, fs.Args()); err != nil {
		fatal(log, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: cidvault <command> [flags] [args]

commands:
  init                      generate an identity and store it in the keyring
  serve                     run the ledger API server
  register-key              publish the identity's encryption key
  store <file>              encrypt, upload, and register a file
  fetch <owner> <cid>       download and decrypt a shared object
  grant <cid> <accessor>    share a resource with another identity
  revoke <cid> <accessor>   revoke a previously granted accessor
  ls                        list owned resources
  shared                    list resources shared with this identity
  accessors <cid>           list accessors of an owned resource
  backup                    write an xz snapshot of the ledger (-o file)`)
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cidvault", "config.yaml")
}

func fatal(log *slog.Logger, err error) {
	log.Error(err.Error())
	os.Exit(1)
}

type app struct {
	conf         config.Config
	log          *slog.Logger
	identityAddr types.Identity
	output       string
}

func (a *app) run(cmd string, args []string) error {
	switch cmd {
	case "init":
		return a.cmdInit()
	case "serve":
		return a.cmdServe()
	default:
		return a.withVault(cmd, args)
	}
}

func (a *app) cmdInit() error {
	ks, err := keystore.Open(a.conf.KeystoreDir)
	if err != nil {
		return err
	}
	kp, err := identity.Generate()
	if err != nil {
		return err
	}
	if err := ks.Save(kp); err != nil {
		return err
	}
	fmt.Println(kp.Address())
	return nil
}

func (a *app) cmdServe() error {
	vault, err := cidvault.New(cidvault.Config{
		Paths:         []string{a.conf.DataDir},
		MinimumFreeGB: a.conf.MinimumFreeGB,
		Logger:        a.log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := vault.Start(ctx); err != nil {
		return err
	}

	server := apiserver.New(vault, apiserver.WithLogger(a.log))
	httpServer := &http.Server{Addr: a.conf.Listen, Handler: server}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	a.log.Info("serving ledger API", "listen", a.conf.Listen)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return vault.Close(context.Background())
}

// withVault runs the data-plane commands against a locally opened vault.
func (a *app) withVault(cmd string, args []string) error {
	vault, err := cidvault.New(cidvault.Config{
		Paths:         []string{a.conf.DataDir},
		MinimumFreeGB: a.conf.MinimumFreeGB,
		Logger:        a.log,
	})
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := vault.Start(ctx); err != nil {
		return err
	}
	defer vault.Close(ctx)

	kp, err := a.loadIdentity()
	if err != nil {
		return err
	}

	var objects objectstore.Store
	if a.conf.PinServiceURL != "" {
		objects = objectstore.NewPinClient(a.conf.PinServiceURL)
	} else {
		objects, err = vault.Objects()
		if err != nil {
			return err
		}
	}
	client := protocol.NewClient(vault, objects, kp, a.log)
	owner := kp.Address()

	switch cmd {
	case "register-key":
		return client.RegisterKey()

	case "store":
		if len(args) != 1 {
			return fmt.Errorf("usage: cidvault store <file>")
		}
		plaintext, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		cid, err := client.Publish(ctx, plaintext)
		if err != nil {
			return err
		}
		fmt.Println(cid)
		return nil

	case "fetch":
		if len(args) != 2 {
			return fmt.Errorf("usage: cidvault fetch <owner> <cid>")
		}
		plaintext, err := client.Fetch(ctx, types.Identity(args[0]), args[1])
		if err != nil {
			return err
		}
		if a.output == "" {
			_, err = os.Stdout.Write(plaintext)
			return err
		}
		return os.WriteFile(a.output, plaintext, 0o600)

	case "grant":
		if len(args) != 2 {
			return fmt.Errorf("usage: cidvault grant <cid> <accessor>")
		}
		return client.Share(ctx, args[0], types.Identity(args[1]))

	case "revoke":
		if len(args) != 2 {
			return fmt.Errorf("usage: cidvault revoke <cid> <accessor>")
		}
		return client.Revoke(ctx, args[0], types.Identity(args[1]))

	case "ls":
		owned, err := vault.ListOwned(owner)
		if err != nil {
			return err
		}
		for _, res := range owned {
			fmt.Printf("%s\t%s\n", res.CID, res.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil

	case "shared":
		shared, err := vault.ListAccessibleResources(owner)
		if err != nil {
			return err
		}
		for _, res := range shared {
			fmt.Printf("%s\t%s\n", res.Owner, res.CID)
		}
		return nil

	case "accessors":
		if len(args) != 1 {
			return fmt.Errorf("usage: cidvault accessors <cid>")
		}
		accessors, err := vault.ListAccessors(owner, args[0])
		if err != nil {
			return err
		}
		for _, accessor := range accessors {
			fmt.Println(accessor)
		}
		return nil

	case "backup":
		if a.output == "" {
			return fmt.Errorf("backup requires -o <file>")
		}
		f, err := os.Create(a.output)
		if err != nil {
			return err
		}
		defer f.Close()
		return vault.Backup(f)

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) loadIdentity() (*identity.KeyPair, error) {
	ks, err := keystore.Open(a.conf.KeystoreDir)
	if err != nil {
		return nil, err
	}
	if !a.identityAddr.IsZero() {
		return ks.Load(a.identityAddr)
	}

	addrs, err := ks.List()
	if err != nil {
		return nil, err
	}
	switch len(addrs) {
	case 0:
		return nil, fmt.Errorf("no identity in keystore; run 'cidvault init' first")
	case 1:
		return ks.Load(addrs[0])
	default:
		return nil, fmt.Errorf("multiple identities in keystore; pass -identity")
	}
}
