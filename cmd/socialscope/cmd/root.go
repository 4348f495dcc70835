package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var BaseUrl string

var client *resty.Client

var rootCmd = &cobra.Command{
	Use:   "socialscope",
	Short: "socialscope is a CLI interface for the digital footprint audit service.",
}

func Execute() {
	client = resty.New()
	client.SetBaseURL(BaseUrl)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// getJson performs a GET and decodes either the payload or the server's
// error envelope.
func getJson(cmd *cobra.Command, path string, query map[string]string, out any) error {
	res, err := client.R().
		SetContext(cmd.Context()).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return err
	}

	if res.StatusCode() >= 400 {
		var apiErr apiError
		if json.Unmarshal(res.Body(), &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Kind)
		}
		return fmt.Errorf("server returned %d: %s", res.StatusCode(), res.String())
	}

	return json.Unmarshal(res.Body(), out)
}
