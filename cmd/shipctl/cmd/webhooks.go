package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List resources",
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show details of a resource",
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete resources",
}

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the courier webhook subscription",
}

var getWebhooksCmd = &cobra.Command{
	Use:     "webhooks",
	Aliases: []string{"webhook"},
	Short:   "List webhook subscriptions",
	RunE:    runGetWebhooks,
}

var getEventsCmd = &cobra.Command{
	Use:     "events TRACKING_NUMBER",
	Aliases: []string{"event"},
	Short:   "List processed webhook events for a tracking number",
	Args:    cobra.ExactArgs(1),
	RunE:    runGetEvents,
}

var describeWebhookCmd = &cobra.Command{
	Use:   "webhook ID",
	Short: "Show a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeWebhook,
}

var deleteWebhookCmd = &cobra.Command{
	Use:   "webhook ID",
	Short: "Delete a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteWebhook,
}

var webhookRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the callback URL with the courier provider",
	RunE:  runWebhookRegister,
}

var webhookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the registration status of the callback endpoint",
	RunE:  runWebhookStatus,
}

var webhookTestCmd = &cobra.Command{
	Use:   "test ID",
	Short: "Ask the provider to send a test delivery",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhookTest,
}

var webhookEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Enable deliveries for a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWebhookActive(args[0], true)
	},
}

var webhookDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Disable deliveries for a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWebhookActive(args[0], false)
	},
}

func init() {
	webhookRegisterCmd.Flags().String("url", "", "Callback URL to register (required)")
	webhookRegisterCmd.Flags().StringSlice("events", nil, "Event types to subscribe to (default: all)")
	_ = webhookRegisterCmd.MarkFlagRequired("url")

	getEventsCmd.Flags().Int("limit", 0, "Maximum number of events to return (0 = all)")

	getCmd.AddCommand(getWebhooksCmd)
	getCmd.AddCommand(getEventsCmd)
	describeCmd.AddCommand(describeWebhookCmd)
	deleteCmd.AddCommand(deleteWebhookCmd)
	webhookCmd.AddCommand(webhookRegisterCmd, webhookStatusCmd, webhookTestCmd, webhookEnableCmd, webhookDisableCmd)
}

func setWebhookActive(id string, active bool) error {
	client := mustClient()
	data, err := client.Put("/api/v1/webhooks/"+id, map[string]any{"active": active})
	if err != nil {
		return err
	}

	var resp SubscriptionResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	fmt.Printf("Webhook %s active=%s.\n", resp.ID, boolToStr(resp.Active))
	return nil
}

func runGetWebhooks(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Get("/api/v1/webhooks")
	if err != nil {
		return err
	}

	var resp SubscriptionListResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	case outputWide:
		t := newTable("ID", "URL", "EVENTS", "ACTIVE", "CREATED")
		for _, s := range resp.Webhooks {
			t.AddRow(s.ID, s.URL, strings.Join(s.Events, ","), boolToStr(s.Active), shortTime(s.CreatedAt))
		}
		t.Flush()
	default:
		t := newTable("ID", "URL", "ACTIVE")
		for _, s := range resp.Webhooks {
			t.AddRow(truncate(s.ID, 16), s.URL, boolToStr(s.Active))
		}
		t.Flush()
		if len(resp.Webhooks) == 0 {
			fmt.Println("No webhooks registered.")
		}
	}
	return nil
}

func runGetEvents(cmd *cobra.Command, args []string) error {
	client := mustClient()

	path := "/api/v1/webhooks/events/" + args[0]
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	data, err := client.Get(path)
	if err != nil {
		return err
	}

	var resp EventListResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		t := newTable("EVENT", "STATUS", "OK", "ERROR", "TIME")
		for _, e := range resp.Events {
			t.AddRow(e.Type, dash(e.Status), successStr(e.Success), dash(e.Error), shortTime(e.Timestamp))
		}
		t.Flush()
		if len(resp.Events) == 0 {
			fmt.Println("No events recorded.")
		}
	}
	return nil
}

func runDescribeWebhook(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Get("/api/v1/webhooks/" + args[0])
	if err != nil {
		return err
	}

	var resp SubscriptionResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("ID:      %s\n", resp.ID)
		fmt.Printf("URL:     %s\n", resp.URL)
		fmt.Printf("Events:  %s\n", strings.Join(resp.Events, ", "))
		fmt.Printf("Active:  %s\n", boolToStr(resp.Active))
		if resp.CreatedAt != "" {
			fmt.Printf("Created: %s\n", shortTime(resp.CreatedAt))
		}
	}
	return nil
}

func runDeleteWebhook(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Delete("/api/v1/webhooks/" + args[0])
	if err != nil {
		return err
	}

	var resp DeleteResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	if resp.Deleted {
		fmt.Printf("Webhook %s deleted.\n", args[0])
	} else {
		fmt.Printf("Webhook %s not found, nothing to delete.\n", args[0])
	}
	return nil
}

func runWebhookRegister(cmd *cobra.Command, args []string) error {
	client := mustClient()

	url, _ := cmd.Flags().GetString("url")
	events, _ := cmd.Flags().GetStringSlice("events")

	body := map[string]any{"url": url}
	if len(events) > 0 {
		body["events"] = events
	}

	data, err := client.Post("/api/v1/webhooks", body)
	if err != nil {
		return err
	}

	var resp SubscriptionResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("Webhook registered.\n")
		fmt.Printf("  ID:     %s\n", resp.ID)
		fmt.Printf("  URL:    %s\n", resp.URL)
		fmt.Printf("  Events: %s\n", strings.Join(resp.Events, ", "))
	}
	return nil
}

func runWebhookStatus(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Get("/api/v1/webhooks/status")
	if err != nil {
		return err
	}

	var resp RegistryStatusResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("Registered:  %s\n", boolToStr(resp.Registered))
		fmt.Printf("Active:      %s\n", boolToStr(resp.Active))
		fmt.Printf("Webhook ID:  %s\n", dash(resp.WebhookID))
		fmt.Printf("URL:         %s\n", dash(resp.URL))
		if resp.LastSuccess != nil {
			fmt.Printf("Last OK:     %s\n", shortTime(*resp.LastSuccess))
		}
		if resp.LastError != "" {
			fmt.Printf("Last Error:  %s\n", resp.LastError)
		}
	}
	return nil
}

func runWebhookTest(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Post("/api/v1/webhooks/"+args[0]+"/test", nil)
	if err != nil {
		return err
	}

	var resp TestResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	if resp.Delivered {
		fmt.Println("Test delivery succeeded.")
	} else {
		fmt.Println("Test delivery failed, check the callback endpoint.")
	}
	return nil
}
