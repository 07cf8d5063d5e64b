package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/spf13/cobra"
)

// modelsCmd represents the models command.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available super-resolution models",
	Long: `List the models in the registry together with their scale factor
and whether the ONNX file is present in the models directory.

Additional models can be registered through a models.yaml manifest in
the models directory.`,
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	modelsDir := models.GetModelsDir(cfg.ModelsDir)

	if n, err := models.LoadManifestFromDir(modelsDir); err != nil {
		return fmt.Errorf("failed to load model manifest: %w", err)
	} else if n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d model(s) from %s\n\n", n, models.ManifestFileName)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCALE\tINPUT\tFILE\tAVAILABLE")
	for _, d := range models.List() {
		path := models.ResolveModelPath(modelsDir, d)
		available := "no"
		if models.ValidateModelExists(path) == nil {
			available = "yes"
		}
		marker := ""
		if d.Name == models.DefaultModel {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s%s\tx%d\t%d\t%s\t%s\n",
			d.Name, marker, d.Scale, d.InputSize, d.Filename, available)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nModels directory: %s\n", modelsDir)
	return nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
