package events

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"carboniq/internal/tcp"
	"carboniq/pkg/models"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one report_created event over TCP",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")
		reportID, _ := cmd.Flags().GetString("report-id")
		at, _ := cmd.Flags().GetString("timestamp")
		wasteType, _ := cmd.Flags().GetString("waste-type")
		institution, _ := cmd.Flags().GetString("institution")

		ev := models.ReportCreated{
			UserID:         userID,
			SourceReportID: reportID,
			WasteType:      models.WasteType(wasteType),
			Timestamp:      time.Now().UTC(),
		}
		ev.HasImage, _ = cmd.Flags().GetBool("image")
		ev.HasMeasurements, _ = cmd.Flags().GetBool("measurements")
		ev.HasFeedback, _ = cmd.Flags().GetBool("feedback")
		ev.IsSafe, _ = cmd.Flags().GetBool("safe")
		ev.IsUrban, _ = cmd.Flags().GetBool("urban")

		if ev.SourceReportID == "" {
			ev.SourceReportID = uuid.NewString()
		}
		if at != "" {
			ts, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--timestamp must be RFC3339: %w", err)
			}
			ev.Timestamp = ts
		}
		if institution != "" {
			ev.InstitutionID = &institution
		}
		if !ev.WasteType.Known() {
			return fmt.Errorf("unknown waste type %q", wasteType)
		}
		ev.Normalize()
		if err := ev.Validate(); err != nil {
			return err
		}

		addr := net.JoinHostPort(viper.GetString("server.host"), strconv.Itoa(viper.GetInt("server.tcp_port")))
		conn, err := tcp.Dial(cmd.Context(), addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		ack, err := conn.Send(ev)
		if err != nil {
			return fmt.Errorf("failed to send event: %w", err)
		}
		if ack.Status != tcp.StatusAccepted {
			return fmt.Errorf("event rejected (%s): %s", ack.Code, ack.Message)
		}

		fmt.Printf("✓ Event accepted\n")
		fmt.Printf("  User: %s\n", ev.UserID)
		fmt.Printf("  Report: %s\n", ev.SourceReportID)
		fmt.Printf("  Timestamp: %s\n", ev.Timestamp.Format(time.RFC3339))
		return nil
	},
}

func init() {
	sendCmd.Flags().String("user-id", "", "Reporting user (required)")
	sendCmd.Flags().String("report-id", "", "Source report ID (random when empty)")
	sendCmd.Flags().String("timestamp", "", "Report time, RFC3339 (now when empty)")
	sendCmd.Flags().String("waste-type", string(models.WasteMixed), "Waste type")
	sendCmd.Flags().String("institution", "", "Institution ID")
	sendCmd.Flags().Bool("image", false, "Report has an image")
	sendCmd.Flags().Bool("measurements", false, "Report has measurements")
	sendCmd.Flags().Bool("feedback", false, "Report has feedback text")
	sendCmd.Flags().Bool("safe", false, "Report marked safe")
	sendCmd.Flags().Bool("urban", false, "Report filed in an urban area")
	sendCmd.MarkFlagRequired("user-id")
	EventsCmd.AddCommand(sendCmd)
}
