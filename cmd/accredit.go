package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mspdash/internal/dataset"
)

var (
	syncAll  bool
	syncYAML bool
)

var accreditCmd = &cobra.Command{
	Use:   "accredit",
	Short: "Manage IT accreditation snapshots",
}

var accreditSyncCmd = &cobra.Command{
	Use:   "sync [inn...]",
	Short: "Fetch accreditation statuses from the NSI registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		inns := args
		if syncAll {
			records, err := newLoader().Load()
			if err != nil {
				return err
			}
			inns = dataset.INNs(records)
		}
		if len(inns) == 0 {
			return eris.New("nothing to sync: pass INNs or --all")
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}

		outcomes, err := newSyncService(store).Sync(cmd.Context(), inns)
		if err != nil {
			return err
		}

		if syncYAML {
			return yaml.NewEncoder(os.Stdout).Encode(outcomes)
		}
		for _, o := range outcomes {
			if o.Success {
				fmt.Printf("%s\tok\t%s\n", o.INN, o.Status)
			} else {
				fmt.Printf("%s\tfail\t%s\n", o.INN, o.Error)
			}
		}
		return nil
	},
}

var accreditStatusCmd = &cobra.Command{
	Use:   "status [inn...]",
	Short: "Show stored snapshots and the last sync batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		last, err := store.LastSync(cmd.Context())
		if err != nil {
			return err
		}

		inns := args
		if len(inns) == 0 {
			records, err := newLoader().Load()
			if err != nil {
				return err
			}
			inns = dataset.INNs(records)
		}
		snapshots, err := store.GetForINNs(cmd.Context(), inns)
		if err != nil {
			return err
		}

		out := struct {
			LastSync  any `json:"last_sync"`
			Snapshots any `json:"snapshots"`
		}{
			LastSync:  last,
			Snapshots: snapshots,
		}
		return printJSON(out)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Migrate(cmd.Context())
	},
}

func init() {
	accreditSyncCmd.Flags().BoolVar(&syncAll, "all", false, "sync every INN present in the dataset")
	accreditSyncCmd.Flags().BoolVar(&syncYAML, "yaml", false, "print outcomes as YAML")

	accreditCmd.AddCommand(accreditSyncCmd, accreditStatusCmd)
	rootCmd.AddCommand(accreditCmd, migrateCmd)
}
