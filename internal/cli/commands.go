package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/datons/esios-go/internal/config"
	"github.com/datons/esios-go/internal/core"
	"github.com/datons/esios-go/internal/errs"
	"github.com/datons/esios-go/internal/managers"
	"github.com/datons/esios-go/internal/output"
	"github.com/datons/esios-go/internal/store"
)

// indicatorsCmd builds the `indicators` or `offer-indicators` command
// group for endpoint.
func indicatorsCmd(endpoint string) *cobra.Command {
	use := "indicators"
	if endpoint == core.EndpointOfferIndicators {
		use = "offer-indicators"
	}

	cmd := &cobra.Command{
		Use: use,
		Short: "Inspect and fetch " + strings.ReplaceAll(use, "-", " "),
	}

	cmd.AddCommand(&cobra.Command{
		Use: "list",
		Short: "List the catalogue of " + use,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := newManager(endpoint).List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use: "search <query>",
		Short: "Search the catalogue by name",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := newManager(endpoint).Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use: "meta <id>",
		Short: "Show an item's metadata",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			h, err := newManager(endpoint).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(h.Meta)
		},
	})

	historyCmd := &cobra.Command{
		Use: "history <id>",
		Short: "Fetch historical values for an item",
		Args: cobra.ExactArgs(1),
		RunE: runHistory(endpoint),
	}
	historyCmd.Flags().String("start", "", "start date (YYYY-MM-DD), required")
	historyCmd.Flags().String("end", "", "end date (YYYY-MM-DD), required")
	historyCmd.Flags().StringSlice("geo", nil, "geo id or name to restrict to (repeatable)")
	historyCmd.Flags().String("format", "json", "output format: json|csv|table")
	historyCmd.Flags().String("output", "", "write to this file instead of stdout")
	cmd.AddCommand(historyCmd)

	return cmd
}

func runHistory(endpoint string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		startStr, _ := cmd.Flags().GetString("start")
		endStr, _ := cmd.Flags().GetString("end")
		if startStr == "" || endStr == "" {
			return &errs.UserInputError{Msg: "--start and --end are required"}
		}
		start, err := core.ParseDate(startStr)
		if err != nil {
			return &errs.UserInputError{Msg: err.Error()}
		}
		end, err := core.ParseDate(endStr)
		if err != nil {
			return &errs.UserInputError{Msg: err.Error()}
		}
		end = core.EndOfDay(end)

		geoStrs, _ := cmd.Flags().GetStringSlice("geo")
		formatStr, _ := cmd.Flags().GetString("format")
		outputPath, _ := cmd.Flags().GetString("output")

		ctx := cmd.Context()
		mgr := newManager(endpoint)
		h, err := mgr.Get(ctx, id)
		if err != nil {
			return err
		}

		geoIDs := make([]int, 0, len(geoStrs))
		for _, g := range geoStrs {
			ref, ok := h.ResolveGeo(g)
			if !ok {
				return &errs.UserInputError{Msg: "unknown geo: " + g}
			}
			geoIDs = append(geoIDs, ref.ID)
		}

		frame, err := h.Historical(ctx, managers.HistoricalOptions{Start: start, End: end, GeoIDs: geoIDs})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return output.WriteFrame(w, frame, output.Format(formatStr), core.GetTZ(cfg.Timezone))
	}
}

var archivesCmd = &cobra.Command{
	Use: "archives",
	Short: "List and download archive bundles",
}

func init() {
	archivesCmd.AddCommand(&cobra.Command{
		Use: "list",
		Short: "List available archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newArchiveManager().List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	})

	download := &cobra.Command{
		Use: "download <archive-id>",
		Short: "Download archive chunks for a date or range",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dateStr, _ := cmd.Flags().GetString("date")
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			dateType, _ := cmd.Flags().GetString("date-type")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			start, end, err := resolveDateOrRange(dateStr, startStr, endStr)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			h, err := newArchiveManager().Handle(ctx, id)
			if err != nil {
				return err
			}
			paths, err := h.Download(ctx, start, end, dateType, overwrite)
			if err != nil {
				if _, partial := err.(*errs.PartialRangeError); !partial {
					return err
				}
				if jsonErr := printJSON(paths); jsonErr != nil {
					return jsonErr
				}
				return err
			}
			return printJSON(paths)
		},
	}
	download.Flags().String("date", "", "single date (YYYY-MM-DD)")
	download.Flags().String("start", "", "range start date (YYYY-MM-DD)")
	download.Flags().String("end", "", "range end date (YYYY-MM-DD)")
	download.Flags().String("date-type", managers.DateTypeDatos, "datos|publicacion")
	download.Flags().Bool("overwrite", true, "overwrite a file that collides with one already extracted while expanding a bundle (warns on collision); disable to keep the existing file. Chunks whose folder is already populated are skipped either way")
	archivesCmd.AddCommand(download)
}

// resolveDateOrRange accepts either a single --date or a --start/--end pair
// and returns the resolved [start, end] range, expanding a bare date to
// end-of-day.
func resolveDateOrRange(date, start, end string) (time.Time, time.Time, error) {
	if date != "" {
		d, err := core.ParseDate(date)
		if err != nil {
			return time.Time{}, time.Time{}, &errs.UserInputError{Msg: err.Error()}
		}
		return d, core.EndOfDay(d), nil
	}
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, &errs.UserInputError{Msg: "provide --date, or both --start and --end"}
	}
	s, err := core.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, &errs.UserInputError{Msg: err.Error()}
	}
	e, err := core.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, &errs.UserInputError{Msg: err.Error()}
	}
	return s, core.EndOfDay(e), nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, &errs.UserInputError{Msg: "invalid id: " + s}
	}
	return id, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", " ")
	return enc.Encode(v)
}

var cacheCmd = &cobra.Command{
	Use: "cache",
	Short: "Inspect and maintain the on-disk cache",
}

func init() {
	cacheCmd.AddCommand(&cobra.Command{
		Use: "status",
		Short: "Summarize cache size and file counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore().Status()
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use: "path",
		Short: "Print the cache root directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(newStore().Root())
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use: "geos",
		Short: "List the geo id to name registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			geos, err := newStore().ReadGeos()
			if err != nil {
				return err
			}
			return printJSON(geos)
		},
	})

	clear := &cobra.Command{
		Use: "clear",
		Short: "Delete cached data, optionally scoped to one endpoint/item",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, _ := cmd.Flags().GetString("endpoint")
			idStr, _ := cmd.Flags().GetString("id")

			var id *int
			if idStr != "" {
				parsed, err := parseID(idStr)
				if err != nil {
					return err
				}
				id = &parsed
			}
			if id != nil && endpoint == "" {
				return &errs.UserInputError{Msg: "--id requires --endpoint"}
			}

			n, err := newStore().Clear(endpoint, id)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d file(s)\n", n)
			return nil
		},
	}
	clear.Flags().String("endpoint", "", "restrict to this endpoint (indicators|offer_indicators)")
	clear.Flags().String("id", "", "restrict to this item id (requires --endpoint)")
	cacheCmd.AddCommand(clear)
}

var configCmd = &cobra.Command{
	Use: "config",
	Short: "Read and write the esios config file",
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use: "get <key>",
		Short: "Print a config value",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(v.Get(args[0]))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use: "set <key> <value>",
		Short: "Persist a config value to the config file",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(args[0], args[1])
		},
	})
}

// setConfigValue merges key=value into the on-disk config file, creating it
// (and its parent directory) if it doesn't yet exist.
func setConfigValue(key, value string) error {
	path := config.ConfigFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	fileVals := map[string]interface{}{}
	if raw, err := os.ReadFile(path); err == nil {
		_ = yaml.Unmarshal(raw, &fileVals)
	} else if !os.IsNotExist(err) {
		return err
	}

	fileVals[key] = value

	out, err := yaml.Marshal(fileVals)
	if err != nil {
		return err
	}
	return store.AtomicWriteFile(path, out, 0o644)
}

var execCmd = &cobra.Command{
	Use: "exec",
	Short: "Fetch data then evaluate a user-supplied expression over it",
	Long: "The expression evaluator is an external collaborator, not implemented\n" +
		"here. This subcommand reserves the interface; wire in a real evaluator\n" +
		"(e.g. expr-lang/expr) to implement it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("exec: not implemented, expression evaluation is an external collaborator")
	},
}
