package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Trinity-Studio-01/logos-auth/internal/service"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create, list, seed, and deactivate operator accounts directly against the local store.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminDeactivateCmd())
	cmd.AddCommand(newAdminSeedCmd())

	return cmd
}

// cliAuthService builds an AuthService suitable for local store operations.
// No token revoker is needed: the CLI never changes passwords.
func cliAuthService(st *store.Store) *service.AuthService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return service.NewAuthService(st, nil, service.DefaultAuthConfig(), logger)
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		username string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  logosauth admin create --username admin --password 'Secret123'
  logosauth admin create --username admin  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(username, password, role)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Admin username (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&role, "role", "admin", "Admin role")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runAdminCreate(username, password, role string) error {
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	admin, err := cliAuthService(st).CreateAdmin(context.Background(), username, password, role, "local", "logosauth-cli")
	if err != nil {
		return err
	}

	fmt.Printf("Created admin %q (id %d)\n", admin.Username, admin.ID)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	admins, err := st.ListAdmins(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		sanitized := make([]interface{}, 0, len(admins))
		for i := range admins {
			sanitized = append(sanitized, admins[i].Sanitized())
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sanitized)
	}

	if len(admins) == 0 {
		fmt.Println("No admin accounts. Use 'logosauth admin create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-24s %-10s %-8s\n", "ID", "USERNAME", "ROLE", "ACTIVE")
	fmt.Printf("%-6s %-24s %-10s %-8s\n", "--", "--------", "----", "------")
	for _, a := range admins {
		active := "yes"
		if !a.IsActive {
			active = "no"
		}
		fmt.Printf("%-6d %-24s %-10s %-8s\n", a.ID, a.Username, a.Role, active)
	}

	return nil
}

// ---------- admin deactivate ----------

func newAdminDeactivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deactivate <admin-id>",
		Short: "Deactivate an admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid admin id: %q", args[0])
			}
			return runAdminDeactivate(id)
		},
	}
	return cmd
}

func runAdminDeactivate(id int64) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := cliAuthService(st).DeactivateAdmin(context.Background(), id, "local", "logosauth-cli"); err != nil {
		return err
	}
	fmt.Printf("Deactivated admin %d\n", id)
	return nil
}

// ---------- admin seed ----------

// seedFile is the declarative bootstrap descriptor consumed by `admin seed`.
type seedFile struct {
	Admins []struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
	} `yaml:"admins"`
}

func newAdminSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bootstrap admin accounts from a YAML file",
		Long:  "Create the admin accounts listed in a YAML descriptor. Usernames that already exist are skipped.",
		Example: `  logosauth admin seed --file seed.yaml

  # seed.yaml:
  # admins:
  #   - username: admin
  #     password: ChangeMe123
  #     role: admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminSeed(file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the seed YAML file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runAdminSeed(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(seed.Admins) == 0 {
		return fmt.Errorf("seed file contains no admins")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc := cliAuthService(st)
	ctx := context.Background()

	created, skipped := 0, 0
	for _, a := range seed.Admins {
		username := service.NormalizeUsername(a.Username)
		if _, err := st.GetAdminByUsername(ctx, username); err == nil {
			skipped++
			fmt.Printf("skip %q: already exists\n", username)
			continue
		}
		admin, err := authSvc.CreateAdmin(ctx, a.Username, a.Password, a.Role, "local", "logosauth-cli")
		if err != nil {
			return fmt.Errorf("seed admin %q: %w", username, err)
		}
		created++
		fmt.Printf("created %q (id %d)\n", admin.Username, admin.ID)
	}

	fmt.Printf("Seed complete: %d created, %d skipped\n", created, skipped)
	return nil
}
