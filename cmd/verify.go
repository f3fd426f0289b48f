package main

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/internal/report"
	"github.com/muw-verify/verify-cli/internal/verify"
	"github.com/muw-verify/verify-cli/pkg/geocode"
)

var (
	verifyFormat string
	verifyAPIKey string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <address>",
	Short: "Check an address against the burn-scar areas and building damage database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(verifyFormat)
		if err != nil {
			return err
		}
		if err := cfg.Validate("verify"); err != nil {
			return err
		}

		ctx := cmd.Context()
		data, err := loadDatasets(ctx, dataset.NewCache(newLoader(cfg)), cfg)
		if err != nil {
			return err
		}

		key := verifyAPIKey
		if key == "" {
			key = cfg.Geocode.APIKey
		}
		g := newGeocoderPool(cfg.Geocode).Get(key)

		return verifyAddress(ctx, cmd.OutOrStdout(), verify.NewVerifier(g, data), strings.Join(args, " "), format)
	},
}

// verifyAddress runs one verification and writes the outcome. A not-found
// address is written like any result and then reported as an error so the
// exit status reflects it.
func verifyAddress(ctx context.Context, w io.Writer, v *verify.Verifier, address string, format report.Format) error {
	res, err := v.Verify(ctx, address)
	if err != nil && !errors.Is(err, geocode.ErrAddressNotFound) {
		return err
	}

	if werr := report.Write(w, report.NewDocument(res, err), format); werr != nil {
		return werr
	}
	return err
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFormat, "format", "text", "output format: text, json or yaml")
	verifyCmd.Flags().StringVar(&verifyAPIKey, "api-key", "", "Google Geocoding API key (default from config or API_KEY)")
	rootCmd.AddCommand(verifyCmd)
}
