package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/campaign-contacts-api/internal/service"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the CSV import template",
	RunE:  runTemplate,
}

var templateOutput string

func init() {
	templateCmd.Flags().StringVarP(&templateOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runTemplate(cmd *cobra.Command, args []string) error {
	svc := service.NewImportService(nil, nil, nil, nil, nil, nil, nil, service.ImportServiceConfig{})
	content, err := svc.Template()
	if err != nil {
		return err
	}
	if templateOutput == "" {
		_, err = cmd.OutOrStdout().Write(content)
		return err
	}
	if err := os.WriteFile(templateOutput, content, 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", templateOutput)
	return nil
}
