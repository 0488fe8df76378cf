package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitline/server/pkg/bootstrap"
	"github.com/fitline/server/pkg/coaching"
	"github.com/fitline/server/pkg/types"
)

var userID string

var rootCmd = &cobra.Command{
	Use:   "fitline",
	Short: "Operator tooling for the fitline server",
	Long: `fitline runs the ingestion and coaching jobs by hand against the
configured project: backfill metric days, trigger coaching, inspect tokens.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id (default DEFAULT_USER_ID)")
	rootCmd.AddCommand(backfillCmd(), coachCmd(), tokenCmd(), archiveCmd())
}

func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *bootstrap.Service, uid string) (interface{}, error)) error {
	ctx := cmd.Context()
	svc, err := bootstrap.NewService(ctx, "fitline-cli")
	if err != nil {
		return err
	}
	defer svc.Close()

	uid := userID
	if uid == "" {
		uid = svc.Config.DefaultUserID
	}
	out, err := fn(ctx, svc, uid)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func backfillCmd() *cobra.Command {
	var days int
	var body bool
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Aggregate and persist the last N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *bootstrap.Service, uid string) (interface{}, error) {
				saved, err := svc.Persistence.SaveRecentDays(ctx, uid, days)
				if err != nil {
					return nil, err
				}
				out := map[string]interface{}{"saved": saved.Saved, "warehouse": saved.Warehouse, "summary": types.Summarize(saved.Days)}
				if body {
					samples, wr, err := svc.Persistence.IngestBodyComposition(ctx, uid, days)
					if err != nil {
						return nil, fmt.Errorf("body composition: %w", err)
					}
					out["body_samples"] = len(samples)
					out["body_warehouse"] = wr
				}
				return out, nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days ending today")
	cmd.Flags().BoolVar(&body, "body", false, "also ingest HealthPlanet body composition")
	return cmd
}

func coachCmd() *cobra.Command {
	var dry, showPrompt bool
	cmd := &cobra.Command{
		Use:       "coach [daily|weekly|monthly]",
		Short:     "Run a coaching job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(coaching.KindDaily), string(coaching.KindWeekly), string(coaching.KindMonthly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *bootstrap.Service, uid string) (interface{}, error) {
				if coaching.Kind(args[0]) == coaching.KindWeekly {
					return svc.Coaching.Weekly(ctx, uid, dry, showPrompt)
				}
				return svc.Coaching.Run(ctx, uid, coaching.Kind(args[0]), dry)
			})
		},
	}
	cmd.Flags().BoolVar(&dry, "dry", false, "skip generation and push (weekly)")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "include the prompt in the output (weekly)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "token [fitbit|healthplanet]",
		Short: "Show a stored credential's expiry, optionally refreshing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := types.Provider(args[0])
			return withService(cmd, func(ctx context.Context, svc *bootstrap.Service, uid string) (interface{}, error) {
				if refresh {
					if _, err := svc.Tokens.GetValidAccessToken(ctx, provider, uid); err != nil {
						return nil, err
					}
				}
				cred, err := svc.Tokens.Credential(ctx, provider, uid)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"provider":          cred.Provider,
					"expires_at":        cred.Expiry().Format(time.RFC3339),
					"expires_in":        time.Until(cred.Expiry()).Round(time.Second).String(),
					"has_refresh_token": cred.RefreshToken != "",
					"scope":             cred.Scope,
				}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh first if the token is near expiry")
	return cmd
}

func archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive [object]",
		Short: "Print a raw upstream payload from the archive bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap.NewService(ctx, "fitline-cli")
			if err != nil {
				return err
			}
			defer svc.Close()

			data, err := svc.Archive.Load(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
