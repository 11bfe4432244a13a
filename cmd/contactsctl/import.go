package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/service"
	"github.com/noah-isme/campaign-contacts-api/pkg/spreadsheet"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import contacts from a CSV or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var (
	importCampaign string
	importFormat   string
)

func init() {
	importCmd.Flags().StringVar(&importCampaign, "campaign", "", "Assign imported contacts to this draft campaign")
	importCmd.Flags().StringVar(&importFormat, "format", "", "Force the file format (csv or xlsx)")
}

func runImport(cmd *cobra.Command, args []string) error {
	opts, err := importOptions(importCampaign, importFormat)
	if err != nil {
		return err
	}

	container, err := openContainer(cmd.Context())
	if err != nil {
		return err
	}
	defer container.Close()

	batch, err := container.Imports.ProcessUploadedFile(cmd.Context(), args[0], opts)
	if batch != nil {
		if werr := writeJSON(cmd.OutOrStdout(), batch); werr != nil {
			return werr
		}
	}
	return err
}

func importOptions(campaign, format string) (service.ImportOptions, error) {
	f, err := spreadsheet.ParseFormat(format)
	if err != nil {
		return service.ImportOptions{}, err
	}
	opts := service.ImportOptions{Actor: models.SystemActor, Format: f}
	if campaign != "" {
		opts.CampaignID = &campaign
	}
	return opts, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
