package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/relayfs/internal/cli/output"
	"github.com/marmos91/relayfs/internal/cli/prompt"
	"github.com/marmos91/relayfs/pkg/config"
	"github.com/marmos91/relayfs/pkg/userstore"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage registered users",
	Long: `Manage the accounts registered in relayfsd's user store.

Subcommands:
  add       Add a new user (prompts for password)
  delete    Delete a user
  list      List all users
  passwd    Change a user's password
  set-type  Change a user's storage-quota tier`,
}

var (
	userAddType string
	userListFmt string
)

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a new user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <username>",
	Aliases: []string{"remove"},
	Short:   "Delete a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all users",
	RunE:    runUserList,
}

var userPasswdCmd = &cobra.Command{
	Use:     "passwd <username>",
	Aliases: []string{"password"},
	Short:   "Change a user's password",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserPasswd,
}

var userSetTypeCmd = &cobra.Command{
	Use:   "set-type <username> <type>",
	Short: "Change a user's storage-quota tier (Visitor|User|Member|Manager|Master)",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserSetType,
}

func init() {
	userAddCmd.Flags().StringVar(&userAddType, "type", string(userstore.TypeUser), "Storage-quota tier for the new user")
	userListCmd.Flags().StringVarP(&userListFmt, "output", "o", "table", "Output format (table|json|yaml)")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userSetTypeCmd)
}

func openUserStore(cmd *cobra.Command) (*userstore.GORMStore, *config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	store, err := userstore.NewGORMStore(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open user store: %w", err)
	}
	return store, cfg, nil
}

func generateToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	userType := userstore.UserType(userAddType)
	if !userType.IsValid() {
		return fmt.Errorf("invalid user type %q (valid: Visitor, User, Member, Manager, Master)", userAddType)
	}

	password, err := prompt.NewPassword()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate bearer token: %w", err)
	}

	store, _, err := openUserStore(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	u := &userstore.User{
		Username:     username,
		PasswordHash: string(hash),
		Token:        token,
		UserType:     userType,
	}
	if err := store.Insert(ctx, u); err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}

	fmt.Printf("User %q added (type: %s)\n", username, userType)
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	ok, err := prompt.Confirm(fmt.Sprintf("Delete user %q", username), false)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	store, _, err := openUserStore(cmd)
	if err != nil {
		return err
	}

	if err := store.DeleteByName(context.Background(), username); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("User %q deleted\n", username)
	return nil
}

type userRow struct {
	Username    string `json:"username" yaml:"username"`
	UserType    string `json:"user_type" yaml:"user_type"`
	LastLoginAt string `json:"last_login_at,omitempty" yaml:"last_login_at,omitempty"`
}

func runUserList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(userListFmt)
	if err != nil {
		return err
	}

	store, _, err := openUserStore(cmd)
	if err != nil {
		return err
	}

	users, err := store.ListAll(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		lastLogin := ""
		if !u.LastLoginAt.IsZero() {
			lastLogin = u.LastLoginAt.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, userRow{Username: u.Username, UserType: string(u.UserType), LastLoginAt: lastLogin})
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, rows)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, rows)
	default:
		table := output.NewTableData("USERNAME", "TYPE", "LAST LOGIN")
		for _, r := range rows {
			login := r.LastLoginAt
			if login == "" {
				login = "never"
			}
			table.AddRow(r.Username, r.UserType, login)
		}
		return output.PrintTable(os.Stdout, table)
	}
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	username := args[0]

	password, err := prompt.NewPassword()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate bearer token: %w", err)
	}

	store, _, err := openUserStore(cmd)
	if err != nil {
		return err
	}

	if err := store.SetPasswordHash(context.Background(), username, string(hash), token); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	fmt.Printf("Password changed for %q; existing sessions will need to reconnect with the new bearer token\n", username)
	return nil
}

func runUserSetType(cmd *cobra.Command, args []string) error {
	username, rawType := args[0], args[1]

	userType := userstore.UserType(rawType)
	if !userType.IsValid() {
		return fmt.Errorf("invalid user type %q (valid: Visitor, User, Member, Manager, Master)", rawType)
	}

	store, _, err := openUserStore(cmd)
	if err != nil {
		return err
	}

	if err := store.SetUserType(context.Background(), username, userType); err != nil {
		return fmt.Errorf("failed to set user type: %w", err)
	}

	fmt.Printf("User %q is now type %s\n", username, userType)
	return nil
}
