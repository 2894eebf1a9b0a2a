package main

import (
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/isp-backoffice/internal/database"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/platform/redis"
	"github.com/isp-backoffice/internal/seed"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Migrate(c.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated", len(database.Models()), "tables")
			return nil
		},
	}
}

func (c *cli) createUserCmd() *cobra.Command {
	var req dto.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a back-office user",
		Long: `Create a back-office user that can log in to the API.

Example:
  admin create-user --email ops@example.net --password 's3cret-pass' --role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.services().Auth.CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s> role=%s\n", u.ID, u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Password, "password", "", "password, at least 8 characters")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Role, "role", model.RoleStaff, "admin or staff")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) seedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import currencies, tax rules, registrars and hosting plans from YAML",
		Long: `Import reference data from a YAML file. Existing records are left
untouched and TLD prices are overwritten, so the command can be re-run.

See config/seed.example.yaml for the format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(path)
			if err != nil {
				return err
			}
			defer fh.Close()
			f, err := seed.Load(fh)
			if err != nil {
				return err
			}
			res, err := seed.Apply(cmd.Context(), c.services(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, row := range []struct {
				name  string
				count seed.Count
			}{
				{"currencies", res.Currencies},
				{"tax rules", res.TaxRules},
				{"registrars", res.Registrars},
				{"tlds", res.Tlds},
				{"tld prices", res.Prices},
				{"servers", res.Servers},
				{"packages", res.Packages},
			} {
				fmt.Fprintf(out, "%-12s created=%d skipped=%d\n", row.name, row.count.Created, row.count.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "config/seed.yaml", "seed file")
	return cmd
}

// periodicTypes 可手动触发的周期任务
var periodicTypes = []string{
	tasks.TypeInvoiceOverdue,
	tasks.TypeHostingSyncAll,
	tasks.TypeTldPriceSyncAll,
	tasks.TypeDomainExpiryNotice,
	tasks.TypeHostingInvoices,
	tasks.TypeQuoteExpire,
}

func (c *cli) enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "enqueue <task-type>",
		Short:     "Enqueue a periodic task for the worker to run now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: periodicTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := asynq.NewClient(redis.AsynqOpt(c.cfg.Redis))
			defer client.Close()
			info, err := client.EnqueueContext(cmd.Context(), tasks.NewPeriodicTask(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
}
