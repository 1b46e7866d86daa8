package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resourceCmd)
	resourceCmd.AddCommand(resourceListCmd)
	resourceCmd.AddCommand(resourceAddCmd)
	resourceCmd.AddCommand(resourceDisableCmd)
	resourceCmd.AddCommand(resourceRemoveCmd)

	resourceAddCmd.Flags().String("url", "", "Target URL the resource unlocks")
}

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage unlockable resources",
}

// ─── resource list ──────────────────────────────────────────────────────────

var resourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		resources, err := db.ListResources(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tURL")
		for _, r := range resources {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Status, r.TargetURL)
		}
		return w.Flush()
	},
}

// ─── resource add ───────────────────────────────────────────────────────────

var resourceAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a new resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		resource, err := db.CreateResource(cmd.Context(), uuid.NewString(), args[0], url, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(resource.ID)
		return nil
	},
}

// ─── resource disable ───────────────────────────────────────────────────────

var resourceDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Exclude a resource from future redemptions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.DisableResource(cmd.Context(), args[0])
	},
}

// ─── resource remove ────────────────────────────────────────────────────────

var resourceRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Delete a resource and its card bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.DeleteResource(cmd.Context(), args[0])
	},
}
