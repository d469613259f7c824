package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"pacs2go/internal/app"
	"pacs2go/internal/config"
	"pacs2go/internal/encryption"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config, fills credentials from the environment and
// creates a PacsApp. The caller must defer a.Close(ctx).
func newApp(cmd *cobra.Command) (*app.PacsApp, error) {
	// A .env next to the binary may carry credentials; missing is fine.
	godotenv.Load()

	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if cfg.Archive.Type == "xnat" && cfg.Archive.XNATPassword == "" {
		cfg.Archive.XNATPassword = os.Getenv("PACS2GO_XNAT_PASSWORD")
	}
	if cfg.Archive.Type == "xnat" && cfg.Archive.XNATPassword == "" {
		pw, err := promptPassword(fmt.Sprintf("Password for %s: ", cfg.Archive.XNATUsername))
		if err != nil {
			return nil, err
		}
		cfg.Archive.XNATPassword = pw
	}
	if cfg.Archive.Type == "s3" && cfg.Archive.S3SecretKey == "" {
		cfg.Archive.S3AccessKey = os.Getenv("PACS2GO_S3_ACCESS_KEY")
		cfg.Archive.S3SecretKey = os.Getenv("PACS2GO_S3_SECRET_KEY")
	}

	a, err := app.NewPacsApp(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

var rootCmd = &cobra.Command{
	Use:   "pacs2go",
	Short: "Medical image exchange over a metadata store and a remote archive",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Archive:  %s\n", cfg.Archive.Type)
		fmt.Printf("Database: %s\n", cfg.Database.Type)
		fmt.Printf("Export:   %s\n", cfg.Export.Type)
		return nil
	},
}

// project command

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		keywords, _ := cmd.Flags().GetString("keywords")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		p, err := a.Connection().CreateProject(cmd.Context(), args[0], description, keywords, "")
		if err != nil {
			return err
		}
		fmt.Printf("Project: %s\n", p.Name())
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		projects, err := a.Connection().GetAllProjects(cmd.Context(), !all)
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}
		for _, p := range projects {
			n, err := p.NumberOfDirectories()
			if err != nil {
				return err
			}
			fmt.Printf("%-30s  %3d dir(s)  updated %s\n",
				p.Name(), n, p.LastUpdated().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "View a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		ctx := cmd.Context()
		p, err := a.Connection().GetProject(ctx, args[0])
		if err != nil {
			return err
		}

		role, err := p.YourUserRole(ctx)
		if err != nil {
			return err
		}
		cits, err := p.Citations()
		if err != nil {
			return err
		}
		reqs, err := p.Requests()
		if err != nil {
			return err
		}

		fmt.Printf("Project:     %s\n", p.Name())
		fmt.Printf("Description: %s\n", p.Description())
		fmt.Printf("Keywords:    %s\n", p.Keywords())
		fmt.Printf("Your role:   %s\n", role)
		fmt.Printf("Created:     %s\n", p.Created().Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:     %s\n", p.LastUpdated().Format("2006-01-02 15:04:05"))
		for _, c := range cits {
			fmt.Printf("Citation #%d: %s %s\n", c.ID, c.Citation, c.Link)
		}
		for _, u := range reqs {
			fmt.Printf("Pending request: %s\n", u)
		}
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a project and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		p, err := a.Connection().GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := p.Delete(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Deleted project %s\n", args[0])
		return nil
	},
}

var projectDownloadCmd = &cobra.Command{
	Use:   "download NAME",
	Short: "Export a project as a zip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("dest")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		path, err := a.DownloadProject(cmd.Context(), args[0], dest)
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

var projectGrantCmd = &cobra.Command{
	Use:   "grant PROJECT USER LEVEL",
	Short: "Grant a user rights on a project (owner, member, collaborator)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		p, err := a.Connection().GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := p.GrantRights(cmd.Context(), args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("Granted %s to %s on %s\n", args[2], args[1], args[0])
		return nil
	},
}

var projectRevokeCmd = &cobra.Command{
	Use:   "revoke PROJECT USER",
	Short: "Revoke a user's rights on a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		p, err := a.Connection().GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := p.RevokeRights(cmd.Context(), args[1]); err != nil {
			return err
		}
		fmt.Printf("Revoked rights of %s on %s\n", args[1], args[0])
		return nil
	},
}

var projectRequestCmd = &cobra.Command{
	Use:   "request PROJECT",
	Short: "Ask for access to a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		p, err := a.Connection().GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := p.AddRequest(a.Connection().User()); err != nil {
			return err
		}
		fmt.Printf("Requested access to %s\n", args[0])
		return nil
	},
}

// citation command

var citationCmd = &cobra.Command{
	Use:   "citation",
	Short: "Manage project citations",
}

var citationAddCmd = &cobra.Command{
	Use:   "add PROJECT CITATION",
	Short: "Attach a citation to a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		link, _ := cmd.Flags().GetString("link")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		p, err := a.Connection().GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		id, err := p.AddCitation(args[1], link, a.Connection().User())
		if err != nil {
			return err
		}
		fmt.Printf("Citation #%d added\n", id)
		return nil
	},
}

var citationRemoveCmd = &cobra.Command{
	Use:   "remove PROJECT ID",
	Short: "Remove a citation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid citation id %q", args[1])
		}
		p, err := a.Connection().GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return p.DeleteCitation(id, a.Connection().User())
	},
}

// dir command

var dirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Manage directories",
}

var dirCreateCmd = &cobra.Command{
	Use:   "create PROJECT NAME",
	Short: "Create a directory (NAME may be nested via PARENT::NAME)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		ctx := cmd.Context()
		p, err := a.Connection().GetProject(ctx, args[0])
		if err != nil {
			return err
		}
		d, err := p.CreateDirectory(ctx, args[1], "", a.Connection().User())
		if err != nil {
			return err
		}
		fmt.Printf("Directory: %s\n", d.UniqueName())
		return nil
	},
}

var dirListCmd = &cobra.Command{
	Use:   "list PROJECT",
	Short: "List a project's directories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		offset, _ := cmd.Flags().GetInt("offset")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		ctx := cmd.Context()
		p, err := a.Connection().GetProject(ctx, args[0])
		if err != nil {
			return err
		}
		dirs, err := p.GetAllDirectories(ctx, filter, offset, limit)
		if err != nil {
			return err
		}
		if len(dirs) == 0 {
			fmt.Println("No directories found.")
			return nil
		}
		for _, d := range dirs {
			n, err := d.NumberOfFiles()
			if err != nil {
				return err
			}
			fmt.Printf("%-40s  %3d file(s)  updated %s\n",
				d.UniqueName(), n, d.LastUpdated().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var dirShowCmd = &cobra.Command{
	Use:   "show UNIQUE_NAME",
	Short: "View a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		ctx := cmd.Context()
		d, err := a.Connection().GetDirectory(ctx, args[0])
		if err != nil {
			return err
		}
		files, err := d.Files(ctx)
		if err != nil {
			return err
		}
		newFiles, err := d.NewFilesForUser(a.Connection().User())
		if err != nil {
			return err
		}

		fmt.Printf("Directory: %s\n", d.UniqueName())
		fmt.Printf("Updated:   %s\n", d.LastUpdated().Format("2006-01-02 15:04:05"))
		if newFiles > 0 {
			fmt.Printf("New files since your last visit: %d\n", newFiles)
		}
		for _, f := range files {
			fmt.Printf("%-40s  %-20s  %8d bytes  %s\n",
				f.Name(), f.Format(), f.Size(), f.Tags())
		}
		if err := d.MarkChecked(a.Connection().User()); err != nil {
			return err
		}
		return nil
	},
}

var dirDeleteCmd = &cobra.Command{
	Use:   "delete UNIQUE_NAME",
	Short: "Delete a directory and its subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		d, err := a.Connection().GetDirectory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := d.Delete(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Deleted directory %s\n", args[0])
		return nil
	},
}

var dirDownloadCmd = &cobra.Command{
	Use:   "download UNIQUE_NAME",
	Short: "Export a directory subtree as a zip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("dest")
		flat, _ := cmd.Flags().GetBool("flat")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		var path string
		if flat {
			path, err = a.DownloadDirectoryFlat(cmd.Context(), args[0], dest)
		} else {
			path, err = a.DownloadDirectory(cmd.Context(), args[0], dest)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

var dirFavoriteCmd = &cobra.Command{
	Use:   "favorite UNIQUE_NAME",
	Short: "Mark a directory as a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		d, err := a.Connection().GetDirectory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return d.Favorite(a.Connection().User())
	},
}

var dirUnfavoriteCmd = &cobra.Command{
	Use:   "unfavorite UNIQUE_NAME",
	Short: "Remove a directory from favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		d, err := a.Connection().GetDirectory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return d.Unfavorite(a.Connection().User())
	},
}

// favorites command

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List your favorite directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		dirs, err := a.Connection().GetFavorites(cmd.Context(), a.Connection().User())
		if err != nil {
			return err
		}
		if len(dirs) == 0 {
			fmt.Println("No favorites.")
			return nil
		}
		for _, d := range dirs {
			fmt.Println(d.UniqueName())
		}
		return nil
	},
}

// upload command

var uploadCmd = &cobra.Command{
	Use:   "upload PROJECT PATH",
	Short: "Upload a file or zip archive into a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dirName, _ := cmd.Flags().GetString("dir")
		tags, _ := cmd.Flags().GetString("tags")
		modality, _ := cmd.Flags().GetString("modality")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		ctx := cmd.Context()
		p, err := a.Connection().GetProject(ctx, args[0])
		if err != nil {
			return err
		}
		absPath, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		result, err := p.Insert(ctx, absPath, dirName, tags, modality, a.Connection().User())
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %d file(s) into %s\n",
			len(result.Files), result.Directory.UniqueName())
		return nil
	},
}

// file command

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage files",
}

var fileShowCmd = &cobra.Command{
	Use:   "show DIRECTORY FILE",
	Short: "View a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		f, err := a.Connection().GetFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("File:     %s\n", f.Name())
		fmt.Printf("Format:   %s\n", f.Format())
		fmt.Printf("Size:     %d bytes\n", f.Size())
		fmt.Printf("Tags:     %s\n", f.Tags())
		fmt.Printf("Modality: %s\n", f.Modality())
		fmt.Printf("Created:  %s\n", f.Created().Format("2006-01-02 15:04:05"))
		return nil
	},
}

var fileDownloadCmd = &cobra.Command{
	Use:   "download DIRECTORY FILE",
	Short: "Download a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("dest")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		f, err := a.Connection().GetFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		path, err := f.Download(cmd.Context(), dest)
		if err != nil {
			return err
		}
		fmt.Printf("Downloaded to %s\n", path)
		return nil
	},
}

var fileTagCmd = &cobra.Command{
	Use:   "tag DIRECTORY FILE TAGS",
	Short: "Set a file's tags",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		f, err := a.Connection().GetFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return f.SetTags(args[2], a.Connection().User())
	},
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete DIRECTORY FILE",
	Short: "Delete a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		f, err := a.Connection().GetFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return f.Delete(cmd.Context())
	},
}

// export command

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Manage export encryption",
}

var exportKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an export key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return err
		}
		if cfg.Export.Type != "age" {
			return fmt.Errorf("export encryption is not enabled in the config")
		}

		pw, err := promptPassword("Passphrase for the private key: ")
		if err != nil {
			return err
		}
		enc := encryption.NewAgeEncryptor(cfg.Export)
		if err := enc.Setup(pw); err != nil {
			return err
		}
		fmt.Printf("Key pair written to %s\n", filepath.Dir(cfg.Export.PublicKeyPath))
		return nil
	},
}

var exportDecryptCmd = &cobra.Command{
	Use:   "decrypt PATH",
	Short: "Decrypt a sealed export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return err
		}
		enc := encryption.NewAgeEncryptor(cfg.Export)

		pw, err := promptPassword("Passphrase for the private key: ")
		if err != nil {
			return err
		}
		dctx, err := enc.Unlock(pw)
		if err != nil {
			return err
		}

		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()
		outPath := args[0]
		if filepath.Ext(outPath) == ".age" {
			outPath = outPath[:len(outPath)-len(".age")]
		} else {
			outPath += ".zip"
		}
		out, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := dctx.Decrypt(in, out); err != nil {
			os.Remove(outPath)
			return err
		}
		fmt.Printf("Decrypted to %s\n", outPath)
		return nil
	},
}

// whoami command

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		fmt.Println(a.Connection().User())
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// project subcommands
	projectCmd.AddCommand(projectCreateCmd)
	projectCreateCmd.Flags().String("description", "", "Project description")
	projectCreateCmd.Flags().String("keywords", "", "Project keywords")
	projectCmd.AddCommand(projectListCmd)
	projectListCmd.Flags().Bool("all", false, "Include projects you have no role on")
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectDownloadCmd)
	projectDownloadCmd.Flags().StringP("dest", "d", ".", "Destination directory")
	projectCmd.AddCommand(projectGrantCmd)
	projectCmd.AddCommand(projectRevokeCmd)
	projectCmd.AddCommand(projectRequestCmd)

	// citation subcommands
	citationCmd.AddCommand(citationAddCmd)
	citationAddCmd.Flags().String("link", "", "Link to the cited work")
	citationCmd.AddCommand(citationRemoveCmd)

	// dir subcommands
	dirCmd.AddCommand(dirCreateCmd)
	dirCmd.AddCommand(dirListCmd)
	dirListCmd.Flags().String("filter", "", "Substring filter on directory names")
	dirListCmd.Flags().Int("offset", 0, "Pagination offset")
	dirListCmd.Flags().Int("limit", 0, "Page size (0 = all)")
	dirCmd.AddCommand(dirShowCmd)
	dirCmd.AddCommand(dirDeleteCmd)
	dirCmd.AddCommand(dirDownloadCmd)
	dirDownloadCmd.Flags().StringP("dest", "d", ".", "Destination directory")
	dirDownloadCmd.Flags().Bool("flat", false, "Zip only this directory's files, served by the archive")
	dirCmd.AddCommand(dirFavoriteCmd)
	dirCmd.AddCommand(dirUnfavoriteCmd)

	// file subcommands
	fileCmd.AddCommand(fileShowCmd)
	fileCmd.AddCommand(fileDownloadCmd)
	fileDownloadCmd.Flags().StringP("dest", "d", ".", "Destination directory")
	fileCmd.AddCommand(fileTagCmd)
	fileCmd.AddCommand(fileDeleteCmd)

	// export subcommands
	exportCmd.AddCommand(exportKeygenCmd)
	exportCmd.AddCommand(exportDecryptCmd)

	// upload flags
	uploadCmd.Flags().String("dir", "", "Target directory (display name or unique name)")
	uploadCmd.Flags().String("tags", "", "Tags applied to every uploaded file")
	uploadCmd.Flags().String("modality", "", "Modality applied to every uploaded file")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(citationCmd)
	rootCmd.AddCommand(dirCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(favoritesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(whoamiCmd)
}
