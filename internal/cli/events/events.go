package events

import "github.com/spf13/cobra"

var EventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Report event commands",
	Long:  "Send report_created events to the ingest listener, e.g. to replay or test intake",
}
