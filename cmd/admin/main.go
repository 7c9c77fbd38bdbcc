package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"text/tabwriter"

	"livesignal/backend/internal/analytics"
	"livesignal/backend/internal/config"
	"livesignal/backend/internal/database"
	"livesignal/backend/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var store *storage.Service

	root := &cobra.Command{
		Use:          "admin",
		Short:        "Operations on livestream data",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DSN())
			if err != nil {
				return err
			}
			// Redis is only needed by live and watch
			rdb, err := database.OpenRedis(cmd.Context(), cfg.RedisAddr, cfg.RedisPassword)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				rdb = nil
			}
			store = storage.NewStorageService(db, rdb)
			return nil
		},
	}

	var page, size int
	activities := &cobra.Command{
		Use:   "activities <room_id>",
		Short: "Print a page of a room's activity log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printActivities(cmd.OutOrStdout(), store, args[0], page, size)
		},
	}
	activities.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	activities.Flags().IntVar(&size, "size", config.DefaultActivityPageLen, "entries per page")

	root.AddCommand(
		&cobra.Command{
			Use:   "add-quota <clinic_id> <n>",
			Short: "Grant a clinic n more livestreams",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid quota %q, provide a positive integer", args[1])
				}
				return addQuota(cmd.OutOrStdout(), store, args[0], n)
			},
		},
		&cobra.Command{
			Use:   "settlement <room_id>",
			Short: "Print the settlement of an ended livestream",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printSettlement(cmd.OutOrStdout(), store, args[0])
			},
		},
		activities,
		&cobra.Command{
			Use:   "live",
			Short: "List rooms currently marked live",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printLive(cmd.OutOrStdout(), store)
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Stream mirrored room events until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return watch(cmd.Context(), cmd.OutOrStdout(), store)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func addQuota(w io.Writer, s storage.Storage, clinicID string, n int) error {
	total, err := s.AddLivestreamQuota(clinicID, n)
	if err != nil {
		return fmt.Errorf("add quota: %w", err)
	}
	fmt.Fprintf(w, "Clinic %s now has %d livestreams left.\n", clinicID, total)
	return nil
}

func printSettlement(w io.Writer, s storage.Storage, roomID string) error {
	d, err := s.GetLivestreamDetail(roomID)
	if err != nil {
		return fmt.Errorf("load settlement: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "room\t%s\n", d.LivestreamRoomID)
	fmt.Fprintf(tw, "joins\t%d\n", d.JoinCount)
	fmt.Fprintf(tw, "messages\t%d\n", d.MessageCount)
	fmt.Fprintf(tw, "reactions\t%d\n", d.ReactionCount)
	fmt.Fprintf(tw, "total activities\t%d\n", d.TotalActivities)
	fmt.Fprintf(tw, "completed bookings\t%d\n", d.TotalBooking)
	return tw.Flush()
}

func printActivities(w io.Writer, s storage.Storage, roomID string, page, size int) error {
	result, err := analytics.New(s, 0, zap.NewNop()).Page(roomID, page, size)
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range result.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, e.UserID, e.Message)
	}
	fmt.Fprintf(tw, "page %d, %d of %d entries\n", result.Page, len(result.Items), result.Total)
	return tw.Flush()
}

func printLive(w io.Writer, s storage.Storage) error {
	rooms, err := s.LiveRooms()
	if err != nil {
		return fmt.Errorf("list live rooms: %w", err)
	}
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No live rooms.")
		return nil
	}
	guids := make([]string, 0, len(rooms))
	for guid := range rooms {
		guids = append(guids, guid)
	}
	sort.Strings(guids)
	for _, guid := range guids {
		fmt.Fprintf(w, "%s\tgateway room %s\n", guid, rooms[guid])
	}
	return nil
}

func watch(ctx context.Context, w io.Writer, s *storage.Service) error {
	if s.Redis == nil {
		return fmt.Errorf("watch needs REDIS_ADDR")
	}
	sub := s.SubscribeRoomEvents()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "%s\t%s\n", msg.Channel, msg.Payload)
		}
	}
}
