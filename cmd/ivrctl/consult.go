package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ivr/internal/config"
	"ivr/internal/core"
	"ivr/internal/services"
	"ivr/internal/upstream"
)

func consultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consult",
		Short: "Query the card movements endpoint and print the IVR reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			url, _ := flags.GetString("url")
			bearer, _ := flags.GetString("bearer")
			account, _ := flags.GetString("cuenta")
			month, _ := flags.GetString("mes")
			year, _ := flags.GetString("anho")
			filter, _ := flags.GetString("tipo")
			if url == "" || account == "" {
				return fmt.Errorf("--url and --cuenta are required")
			}
			if bearer == "" {
				bearer = os.Getenv("IVR_BEARER")
			}

			now := time.Now()
			if month == "" {
				month = fmt.Sprintf("%02d", int(now.Month()))
			}
			if year == "" {
				year = fmt.Sprintf("%d", now.Year())
			}

			cfg := config.Load()
			client := upstream.NewClient(upstream.Options{
				Timeout:  cfg.UpstreamTimeout,
				RetryMax: cfg.UpstreamRetryMax,
			})
			svc := services.NewMovementService(core.NewComposer(core.CardMovementTokens()))

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.UpstreamTimeout+5*time.Second)
			defer cancel()

			audio, err := svc.Consult(ctx, upstream.NewMovementsAPI(client, url, bearer), upstream.MovementQuery{
				Account:   account,
				Month:     month,
				Year:      year,
				FilterKey: filter,
			})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "query failed: %v\n", err)
			}
			if audio == nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(audio.Reply()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "period: %s retried: %t\n", audio.Period, audio.Retried)
			return nil
		},
	}

	cmd.Flags().String("url", "", "Card movements endpoint")
	cmd.Flags().String("bearer", "", "Bearer token (default $IVR_BEARER)")
	cmd.Flags().String("cuenta", "", "Card account")
	cmd.Flags().String("mes", "", "Month (default current)")
	cmd.Flags().String("anho", "", "Year (default current)")
	cmd.Flags().String("tipo", "T", "Movement type filter")
	return cmd
}
