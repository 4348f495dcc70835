package cmd

import (
	"log"
	"strings"
	"time"

	"socialscope-backend/lib/configutil"
	"socialscope-backend/lib/platforms"
	"socialscope-backend/lib/timezone"
	"socialscope-backend/services/keychain"
	"socialscope-backend/services/keychain/db"

	"github.com/spf13/cobra"
)

var seedAccessToken string
var seedRefreshToken string
var seedExpiresIn time.Duration
var seedExtra []string

func init() {
	seedCmd.Flags().StringVar(&seedAccessToken, "access-token", "", "The credential's access token.")
	seedCmd.Flags().StringVar(&seedRefreshToken, "refresh-token", "", "The credential's refresh token, if any.")
	seedCmd.Flags().DurationVar(&seedExpiresIn, "expires-in", 0, "Time until the access token expires, 0 means never.")
	seedCmd.Flags().StringArrayVar(&seedExtra, "extra", nil, "Auxiliary key=value pairs (client_id, business_account_id, ...).")
	seedCmd.MarkFlagRequired("access-token")
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed <platform>",
	Short: "Store a platform credential directly in the keychain database.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		platform, err := platforms.Parse(args[0])
		if err != nil {
			log.Fatal(err)
		}

		extra := map[string]string{}
		for _, pair := range seedExtra {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				log.Fatalf("malformed --extra %q, expected key=value", pair)
			}
			extra[key] = value
		}

		cfg, err := configutil.ReadConfig[struct {
			Keychain configutil.DB `json:"keychain"`
		}]("config.json5")
		if err != nil {
			log.Fatal(err)
		}
		database, err := cfg.Keychain.OpenDB()
		if err != nil {
			log.Fatal(err)
		}
		_, err = database.ExecContext(cmd.Context(), db.Schema)
		if err != nil {
			log.Fatal(err)
		}

		service, err := keychain.NewService(cmd.Context(), database)
		if err != nil {
			log.Fatal(err)
		}

		cred := keychain.Credential{
			AccessToken:  seedAccessToken,
			RefreshToken: seedRefreshToken,
			Extra:        extra,
		}
		if seedExpiresIn > 0 {
			cred.ExpiresAt = timezone.Now().Add(seedExpiresIn)
		}

		err = service.SetCredential(cmd.Context(), platform, cred)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("stored %s credential", platform)
	},
}
