package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/config"
)

// NewRootCommand builds the sitecontent command tree
func NewRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "sitecontent",
		Short: "Manage editable site content slots",
		Long: `Command line access to the site content store.

Reads the same environment as the server (DATABASE_URL, STORAGE_URL,
CONFIG_FILE, ...). --database and --storage override it.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().String("database", "", "database URL (memory, postgres://..., sqlite://path)")
	rootCmd.PersistentFlags().String("storage", "", "asset storage URL (memory://, file:///dir, s3://bucket/prefix)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewPutCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewEnvCommand())

	return rootCmd
}

// loadConfig reads the environment and applies the global flags on top.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	opts := []config.Option{config.FromEnv()}
	if db, _ := cmd.Flags().GetString("database"); db != "" {
		opts = append(opts, config.WithDatabaseURL(db))
	}
	if storage, _ := cmd.Flags().GetString("storage"); storage != "" {
		opts = append(opts, config.WithStorageURL(storage))
	}
	return config.Load(opts...)
}

func buildApp(cmd *cobra.Command) (*config.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cfg.Build(cmd.Context())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <page> <key>",
		Short: "Print one slot as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			slot, err := app.Service.Find(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if slot == nil {
				return fmt.Errorf("dynamic part %s/%s not found", args[0], args[1])
			}
			return printJSON(cmd.OutOrStdout(), slot)
		},
	}
}

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <page>",
		Short: "List every slot of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			slots, err := app.Service.ListSlots(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if slots == nil {
				slots = []*sitecontent.Slot{}
			}
			return printJSON(cmd.OutOrStdout(), slots)
		},
	}
}

// NewPutCommand creates the put command
func NewPutCommand() *cobra.Command {
	var sets []string
	var clears []string
	var images []string

	cmd := &cobra.Command{
		Use:   "put <page> <key>",
		Short: "Partially update a slot",
		Long: `Write the given fields of a slot, creating it when needed.
Fields that are not mentioned keep their stored values.

  sitecontent put home hero --set title_1="Spring Show" --image ./hero.png
  sitecontent put about hero --clear link_1 --image image_2=./side.jpg`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseSets(sets, clears)
			if err != nil {
				return err
			}
			if len(patch) == 0 && len(images) == 0 {
				return fmt.Errorf("nothing to write: use --set, --clear or --image")
			}

			uploads, closeAll, err := openImages(images)
			if err != nil {
				return err
			}
			defer closeAll()

			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			slot, err := app.Service.PutSlot(cmd.Context(), sitecontent.PutSlotRequest{
				Page:   args[0],
				Key:    args[1],
				Patch:  patch,
				Assets: uploads,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), slot)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value to write (repeatable)")
	cmd.Flags().StringArrayVar(&clears, "clear", nil, "field to clear to an empty value (repeatable)")
	cmd.Flags().StringArrayVar(&images, "image", nil, "image to upload: path (image_1) or field=path (repeatable)")

	return cmd
}

// NewEnvCommand prints the environment variables the configuration reads
func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Describe configuration environment variables",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
		},
	}
}

func parseSets(sets, clears []string) (sitecontent.Patch, error) {
	patch := sitecontent.Patch{}
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: expected field=value", s)
		}
		f, err := sitecontent.ParseField(name)
		if err != nil {
			return nil, err
		}
		patch[f] = value
	}
	for _, name := range clears {
		f, err := sitecontent.ParseField(name)
		if err != nil {
			return nil, err
		}
		patch[f] = ""
	}
	return patch, nil
}

func openImages(specs []string) ([]sitecontent.AssetUpload, func(), error) {
	uploads := make([]sitecontent.AssetUpload, 0, len(specs))
	paths := make([]string, 0, len(specs))
	seen := map[sitecontent.Field]bool{}
	for _, spec := range specs {
		field, path := sitecontent.FieldImage1, spec
		if name, p, ok := strings.Cut(spec, "="); ok {
			f, err := sitecontent.ParseField(name)
			if err != nil {
				return nil, nil, err
			}
			field, path = f, p
		}
		if seen[field] {
			return nil, nil, fmt.Errorf("more than one image for %s", field)
		}
		seen[field] = true
		uploads = append(uploads, sitecontent.AssetUpload{Field: field, FileName: filepath.Base(path)})
		paths = append(paths, path)
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for i, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open image: %w", err)
		}
		files = append(files, file)
		uploads[i].Reader = file
	}
	return uploads, closeAll, nil
}
