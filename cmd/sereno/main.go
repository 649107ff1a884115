package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"sereno-go/internal/app"
	"sereno-go/internal/config"
	"sereno-go/internal/field"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a SerenoApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Login", "Submit").
func newApp(ctx context.Context, operation string) (*app.SerenoApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSerenoApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// newUnlockedApp creates the app and restores the persisted session,
// prompting for the key passphrase.
func newUnlockedApp(ctx context.Context, operation string) (*app.SerenoApp, error) {
	a, err := newApp(ctx, operation)
	if err != nil {
		return nil, err
	}

	if a.EncryptionConfigured() {
		passphrase, err := promptPassword("Passphrase: ")
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := a.RestoreSession(passphrase); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func promptPassword(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func promptLine(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var rootCmd = &cobra.Command{
	Use:   "sereno",
	Short: "Field client for incident reporting",
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
		fmt.Println("Set api.main_url and api.incidence_url before logging in.")
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
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Main API:      %s\n", cfg.API.MainURL)
		fmt.Printf("Incidence API: %s\n", cfg.API.IncidenceURL)
		fmt.Printf("Jurisdictions: %s\n", cfg.Jurisdictions.Source)
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login [EMAIL]",
	Short: "Authenticate against the platform",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Login")
		if err != nil {
			return err
		}
		defer a.Close()

		email := ""
		if len(args) > 0 {
			email = args[0]
		} else {
			if email, err = promptLine("Email: "); err != nil {
				return err
			}
		}

		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		label := "Passphrase: "
		if !a.EncryptionConfigured() {
			label = "New key passphrase: "
		}
		passphrase, err := promptPassword(label)
		if err != nil {
			return err
		}

		user, err := a.Login(ctx, email, password, passphrase)
		if err != nil {
			return err
		}

		fmt.Printf("Logged in as %s (sereno %d)\n", user.NombreCompleto(), user.IDSereno)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Logout")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated sereno",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newUnlockedApp(cmd.Context(), "CurrentUser")
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.Service().CurrentUser()
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", user.NombreCompleto())
		fmt.Printf("Sereno ID: %d\n", user.IDSereno)
		fmt.Printf("Rol:       %s\n", user.Rol)
		fmt.Printf("Turno:     %s\n", user.Turno)
		fmt.Printf("Celular:   %s\n", user.Celular)
		return nil
	},
}

// media commands
var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage staged evidence files",
}

var mediaAddCmd = &cobra.Command{
	Use:   "add PATH...",
	Short: "Stage evidence files for the next report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "StageMedia")
		if err != nil {
			return err
		}
		defer a.Close()

		for _, path := range args {
			item, err := a.Service().StageMedia(path)
			if err != nil {
				return fmt.Errorf("staging %s: %w", path, err)
			}
			fmt.Printf("Staged %s (%s, %d bytes)\n", item.Name, item.Checksum[:12], item.SizeBytes)
		}
		return nil
	},
}

var mediaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staged evidence files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "StagedMedia")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Service().StagedMedia()
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No staged files.")
			return nil
		}

		for _, s := range items {
			kind := "image"
			if s.Item.IsVideo {
				kind = "video"
			}
			fmt.Printf("%s  %-5s  %8d  %s\n", s.Item.Checksum[:12], kind, s.Item.SizeBytes, s.Item.Name)
		}
		return nil
	},
}

var mediaRemoveCmd = &cobra.Command{
	Use:   "remove CHECKSUM",
	Short: "Remove a staged evidence file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "RemoveStagedMedia")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().RemoveStagedMedia(args[0]); err != nil {
			return err
		}
		fmt.Println("Removed.")
		return nil
	},
}

var mediaClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all staged evidence files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ClearStagedMedia")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().ClearStagedMedia(); err != nil {
			return err
		}
		fmt.Println("Cleared.")
		return nil
	},
}

// report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Submit an incident report with the staged evidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tipo, _ := cmd.Flags().GetInt64("tipo")
		subtipo, _ := cmd.Flags().GetInt64("subtipo")
		descripcion, _ := cmd.Flags().GetString("descripcion")
		direccion, _ := cmd.Flags().GetString("direccion")
		fecha, _ := cmd.Flags().GetString("fecha")
		hora, _ := cmd.Flags().GetString("hora")
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		jurisdiccion, _ := cmd.Flags().GetInt64("jurisdiccion")
		locate, _ := cmd.Flags().GetBool("locate")

		a, err := newUnlockedApp(ctx, "Submit")
		if err != nil {
			return err
		}
		defer a.Close()

		draft := &field.IncidentDraft{
			TipoCasoID:     tipo,
			SubTipoCasoID:  subtipo,
			Descripcion:    descripcion,
			Direccion:      direccion,
			JurisdiccionID: jurisdiccion,
		}

		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
			draft.Latitude = &lat
			draft.Longitude = &lng
		} else if locate {
			fix, zone, err := a.Service().ResolveCurrent(ctx)
			if err != nil {
				return err
			}
			draft.Latitude = &fix.Latitude
			draft.Longitude = &fix.Longitude
			if zone != nil && draft.JurisdiccionID == 0 {
				draft.JurisdiccionID = zone.ID
				fmt.Printf("Jurisdicción: %s\n", zone.Name)
			}
		}

		if fecha != "" {
			layout := "2006-01-02"
			value := fecha
			if hora != "" {
				layout = "2006-01-02 15:04"
				value = fecha + " " + hora
			}
			occurred, err := time.ParseInLocation(layout, value, time.Local)
			if err != nil {
				return fmt.Errorf("parsing fecha/hora: %w", err)
			}
			draft.OccurredAt = occurred
		}

		lastPercent := -1
		result, err := a.Service().Submit(ctx, draft, func(percent int) {
			if percent != lastPercent {
				fmt.Fprintf(os.Stderr, "\rUploading... %d%%", percent)
				lastPercent = percent
			}
		})
		if lastPercent >= 0 {
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Reporte enviado: %s (id %d)\n", result.Codigo, result.ID)
		return nil
	},
}

// incidents command
var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List your submitted reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		desde, _ := cmd.Flags().GetString("desde")
		hasta, _ := cmd.Flags().GetString("hasta")
		estado, _ := cmd.Flags().GetString("estado")

		a, err := newUnlockedApp(cmd.Context(), "ListIncidencias")
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Service().ListIncidencias(cmd.Context(), field.ListFilter{
			FechaInicio: desde,
			FechaFin:    hasta,
			Estado:      estado,
		})
		if err != nil {
			return err
		}

		if len(list.Incidencias) == 0 {
			fmt.Println("No reports found.")
			return nil
		}

		for _, inc := range list.Incidencias {
			fmt.Printf("%-12s  %-10s  %s / %s\n    %s\n",
				inc.Codigo, inc.Estado, inc.TipoCaso, inc.SubTipoCaso, inc.Direccion)
		}
		for estado, n := range list.Counts {
			fmt.Printf("%s: %d  ", estado, n)
		}
		if len(list.Counts) > 0 {
			fmt.Println()
		}
		return nil
	},
}

var tiposCmd = &cobra.Command{
	Use:   "tipos",
	Short: "List incident types and subtypes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newUnlockedApp(cmd.Context(), "TiposCasos")
		if err != nil {
			return err
		}
		defer a.Close()

		tipos, err := a.Service().TiposCasos(cmd.Context())
		if err != nil {
			return err
		}

		for _, tc := range tipos {
			fmt.Printf("%d  %s\n", tc.ID, tc.Descripcion)
			for _, st := range tc.Subtipos {
				fmt.Printf("    %d  %s\n", st.ID, st.Descripcion)
			}
		}
		return nil
	},
}

// historial command
var historialCmd = &cobra.Command{
	Use:   "historial",
	Short: "View the reporter historial",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		date, _ := cmd.Flags().GetString("date")
		turno, _ := cmd.Flags().GetString("turno")
		jurisdiccion, _ := cmd.Flags().GetInt64("jurisdiccion")
		search, _ := cmd.Flags().GetString("search")

		a, err := newUnlockedApp(cmd.Context(), "Historial")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Service().Historial(cmd.Context(), field.HistorialFilter{
			Page:           page,
			Limit:          limit,
			Date:           date,
			Turno:          turno,
			JurisdiccionID: jurisdiccion,
			Search:         search,
		})
		if err != nil {
			return err
		}

		for _, e := range result.Entries {
			fmt.Printf("%-30s  %3d  %s\n",
				e.NombresCompletos, e.Cuenta, strings.Join(e.Codigos, ", "))
		}
		fmt.Printf("Total: %d\n", result.TotalCount)
		return nil
	},
}

// locate command
var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Acquire the current position and address",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Locate")
		if err != nil {
			return err
		}
		defer a.Close()

		for u := range a.Service().AcquireLocation(cmd.Context()) {
			switch {
			case u.Err != nil:
				if u.Hint != "" {
					return fmt.Errorf("%w. %s", u.Err, u.Hint)
				}
				return u.Err
			case u.Address != "":
				fmt.Printf("Dirección: %s\n", u.Address)
			case u.Fix != nil:
				marker := ""
				if u.Final {
					marker = "  [final]"
				}
				fmt.Printf("%.6f, %.6f  ±%.0fm%s\n",
					u.Fix.Latitude, u.Fix.Longitude, u.Fix.AccuracyM, marker)
			}
		}
		return nil
	},
}

// phone command
var phoneCmd = &cobra.Command{
	Use:   "phone NUMBER",
	Short: "Update your contact phone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newUnlockedApp(cmd.Context(), "UpdatePhone")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().UpdatePhone(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Celular actualizado.")
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View locally recorded submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "History")
		if err != nil {
			return err
		}
		defer a.Close()

		subs, err := a.Service().History(limit)
		if err != nil {
			return err
		}

		if len(subs) == 0 {
			fmt.Println("No submissions recorded.")
			return nil
		}

		for _, s := range subs {
			fmt.Printf("%-12s  %s  tipo:%d/%d  %s\n",
				s.Codigo,
				s.CreatedAt.Format("2006-01-02 15:04:05"),
				s.TipoCasoID,
				s.SubTipoCasoID,
				s.Direccion,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// media subcommands
	mediaCmd.AddCommand(mediaAddCmd)
	mediaCmd.AddCommand(mediaListCmd)
	mediaCmd.AddCommand(mediaRemoveCmd)
	mediaCmd.AddCommand(mediaClearCmd)

	// report flags
	reportCmd.Flags().Int64("tipo", 0, "Incident type ID")
	reportCmd.Flags().Int64("subtipo", 0, "Incident subtype ID")
	reportCmd.Flags().String("descripcion", "", "Incident description")
	reportCmd.Flags().String("direccion", "", "Incident address")
	reportCmd.Flags().String("fecha", "", "Occurrence date (YYYY-MM-DD)")
	reportCmd.Flags().String("hora", "", "Occurrence time (HH:MM)")
	reportCmd.Flags().Float64("lat", 0, "Latitude")
	reportCmd.Flags().Float64("lng", 0, "Longitude")
	reportCmd.Flags().Int64("jurisdiccion", 0, "Jurisdiction ID")
	reportCmd.Flags().Bool("locate", false, "Acquire location before submitting")

	// incidents flags
	incidentsCmd.Flags().String("desde", "", "Start date (YYYY-MM-DD)")
	incidentsCmd.Flags().String("hasta", "", "End date (YYYY-MM-DD)")
	incidentsCmd.Flags().String("estado", "", "Filter by state")

	// historial flags
	historialCmd.Flags().Int("page", 1, "Page number")
	historialCmd.Flags().Int("limit", 20, "Rows per page")
	historialCmd.Flags().String("date", "", "Filter by date (YYYY-MM-DD)")
	historialCmd.Flags().String("turno", "", "Filter by shift")
	historialCmd.Flags().Int64("jurisdiccion", 0, "Filter by jurisdiction ID")
	historialCmd.Flags().String("search", "", "Search by name")

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of submissions to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(incidentsCmd)
	rootCmd.AddCommand(tiposCmd)
	rootCmd.AddCommand(historialCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(phoneCmd)
	rootCmd.AddCommand(historyCmd)
}
