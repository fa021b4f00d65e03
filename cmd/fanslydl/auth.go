package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fanslydl/pkg/auth"
	"fanslydl/pkg/config"
	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/ui"
)

var showGuide bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored authorization tokens",
	Long: `Manage stored authorization tokens.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - FANSLYDL_TOKEN environment variable (read only)

Never share your token or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an authorization token",
	Long: `Store an authorization token under a name (default: "default").

You will be prompted for the token, hidden as you type, and optionally
for the user agent of the browser it came from.`,
	Example: `  # Store the default account
  fanslydl auth login

  # Show how to find the token first
  fanslydl auth login --guide

  # Store a second account
  fanslydl auth login alt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runList,
}

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"logout"},
	Short:   "Remove a stored account",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [name]",
	Short: "Check that a token is accepted by the API",
	Long: `Perform the session handshake with a token and print the account it belongs to.

Without a name the token is resolved like 'download' does.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, listCmd, removeCmd, verifyCmd)
	loginCmd.Flags().BoolVar(&showGuide, "guide", false, "show how to copy the token from a browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeConfig, err, "failed to initialize credential manager")
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	if showGuide {
		auth.ShowTokenGuide(os.Stdout)
	} else {
		auth.ShowQuickTokenGuide(os.Stdout)
	}

	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(name); existing != nil && existing.Name != auth.EnvironmentAccount {
		fmt.Printf("\nAccount '%s' already exists. Replace its token? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("\nAuthorization token (hidden): ")
	token, err := readSecret(reader)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeConfig, err, "failed to read token")
	}
	if err := config.ValidateToken(token); err != nil {
		return errs.Wrap(errs.ErrorTypeConfig, err, "that does not look like a token")
	}

	fmt.Print("User agent (press Enter for default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	account := &auth.Account{Name: name, Token: token, UserAgent: userAgent}
	if err := manager.Store(account); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to store credentials")
	}

	ui.PrintSuccess(fmt.Sprintf("Token saved as '%s' (%s)", name, auth.MaskToken(token)))
	fmt.Println("\nNext steps:")
	fmt.Println("  $ fanslydl auth verify")
	fmt.Println("  $ fanslydl download <creator>")
	if name != auth.DefaultAccount {
		fmt.Printf("  $ fanslydl download <creator> --account %s\n", name)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeConfig, err, "failed to initialize credential manager")
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'fanslydl auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	writeAccounts(os.Stdout, accounts)
	return nil
}

func writeAccounts(w io.Writer, accounts []*auth.Account) {
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Fprintf(w, "%d. %s\n", i+1, sanitized.Name)
		fmt.Fprintf(w, "   Token: %s\n", sanitized.Token)
		if sanitized.UserAgent != "" {
			fmt.Fprintf(w, "   User Agent: %s\n", sanitized.UserAgent)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(w, "   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(w)
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeConfig, err, "failed to initialize credential manager")
	}
	if err := manager.Delete(args[0]); err != nil {
		return errs.Wrap(errs.ErrorTypeConfig, err, "failed to remove account")
	}
	ui.PrintSuccess("Account removed: " + args[0])
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	var resolvers []config.Resolver
	var usedAccount string
	manager, err := auth.NewManager()
	if err == nil {
		resolvers = append(resolvers, manager.Resolver(name, &usedAccount))
	} else if name != "" {
		return configError(err)
	}

	cfg, err := loadUnvalidated()
	if err != nil {
		return err
	}
	for _, resolve := range resolvers {
		if err := resolve(cfg); err != nil {
			return configError(err)
		}
	}
	if err := config.ValidateToken(cfg.Account.Token); err != nil {
		return configError(err)
	}

	log, err := initLogging(cfg)
	if err != nil {
		return err
	}

	client := newClient(cfg, log, func(id string, at time.Time) {
		persistDeviceID(manager, usedAccount, id, at, log)
	})
	ctx := commandContext(cmd)
	if err := client.Start(ctx); err != nil {
		return err
	}
	me, err := client.Me(ctx)
	if err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Token is valid for @%s", me.Username))
	ui.PrintInfo("Account ID", me.ID)
	if usedAccount != "" {
		ui.PrintInfo("Stored as", usedAccount)
	}
	return nil
}

// readSecret reads a line from the terminal without echo, or from reader
// when stdin is not a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
