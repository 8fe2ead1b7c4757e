package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/kino/pkg/kapi"
	"github.com/quatton/kino/pkg/kapi/routes"
	"github.com/spf13/cobra"
)

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Print the render API's OpenAPI document",
	Long: `Outputs the OpenAPI document for the kino render API without connecting to any backing service.

Use --server-url to embed the address clients should call, for example when
generating a client for a deployed kinod.`,
	Args: cobra.NoArgs,
	RunE: generateOpenAPI,
}

var (
	openapiOutput    string
	openapiFormat    string
	openapiDowngrade bool
	openapiServers   []string
)

func init() {
	rootCmd.AddCommand(openapiCmd)
	openapiCmd.Flags().StringVarP(&openapiOutput, "output", "o", "", "Write output to file (default stdout)")
	openapiCmd.Flags().StringVarP(&openapiFormat, "format", "f", "json", "Document format: json or yaml")
	openapiCmd.Flags().BoolVar(&openapiDowngrade, "downgrade", true, "Downgrade to OpenAPI 3.0 for older generators")
	openapiCmd.Flags().StringSliceVar(&openapiServers, "server-url", nil, "Server URL to list in the document (repeatable)")
}

func generateOpenAPI(cmd *cobra.Command, args []string) error {
	api := kapi.NewApi()
	routes.RegisterAPI(api.Api, nil)

	doc := api.Api.OpenAPI()
	for _, u := range openapiServers {
		doc.Servers = append(doc.Servers, &huma.Server{URL: u})
	}

	data, err := renderOpenAPI(doc, openapiFormat, openapiDowngrade)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if openapiOutput != "" {
		f, err := os.Create(openapiOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", openapiOutput, err)
		}
		defer f.Close()
		out = f
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write OpenAPI document: %w", err)
	}
	if openapiOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote kino render API %s (%s) to %s\n", kapi.Version, openapiFormat, openapiOutput)
	}
	return nil
}

func renderOpenAPI(doc *huma.OpenAPI, format string, downgrade bool) ([]byte, error) {
	switch {
	case format == "yaml" && downgrade:
		return doc.DowngradeYAML()
	case format == "yaml":
		return doc.YAML()
	case format != "json":
		return nil, fmt.Errorf("unknown format %q, expected json or yaml", format)
	case downgrade:
		return doc.Downgrade()
	}
	return json.MarshalIndent(doc, "", "  ")
}
