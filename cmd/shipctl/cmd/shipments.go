package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create resources",
}

var createShipmentCmd = &cobra.Command{
	Use:   "shipment",
	Short: "Create a shipment and register it for tracking",
	RunE:  runCreateShipment,
}

var describeShipmentCmd = &cobra.Command{
	Use:   "shipment ID",
	Short: "Show a shipment with its tracking state",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribeShipment,
}

var getShipmentCmd = &cobra.Command{
	Use:   "shipment CARRIER TRACKING_NUMBER",
	Short: "Look up a shipment by carrier and tracking number",
	Args:  cobra.ExactArgs(2),
	RunE:  runGetShipment,
}

func init() {
	createShipmentCmd.Flags().String("order-ref", "", "Order reference (required)")
	createShipmentCmd.Flags().String("carrier", "", "Carrier code, e.g. ups (required)")
	createShipmentCmd.Flags().String("tracking-number", "", "Carrier tracking number (required)")
	_ = createShipmentCmd.MarkFlagRequired("order-ref")
	_ = createShipmentCmd.MarkFlagRequired("carrier")
	_ = createShipmentCmd.MarkFlagRequired("tracking-number")

	createCmd.AddCommand(createShipmentCmd)
	describeCmd.AddCommand(describeShipmentCmd)
	getCmd.AddCommand(getShipmentCmd)
}

func runCreateShipment(cmd *cobra.Command, args []string) error {
	client := mustClient()

	orderRef, _ := cmd.Flags().GetString("order-ref")
	carrier, _ := cmd.Flags().GetString("carrier")
	trackingNumber, _ := cmd.Flags().GetString("tracking-number")

	body := map[string]any{
		"order_ref":       orderRef,
		"carrier":         carrier,
		"tracking_number": trackingNumber,
	}

	data, err := client.Post("/api/v1/shipments", body)
	if err != nil {
		return err
	}

	var resp ShipmentResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("Shipment created.\n")
		fmt.Printf("  ID:       %s\n", resp.ID)
		fmt.Printf("  Carrier:  %s\n", resp.Carrier)
		fmt.Printf("  Tracking: %s\n", resp.TrackingNumber)
		fmt.Printf("  Status:   %s\n", resp.Status)
	}
	return nil
}

func runDescribeShipment(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Get("/api/v1/shipments/" + args[0])
	if err != nil {
		return err
	}
	return printShipment(data)
}

func runGetShipment(cmd *cobra.Command, args []string) error {
	client := mustClient()
	data, err := client.Get("/api/v1/shipments/tracking/" + args[0] + "/" + args[1])
	if err != nil {
		return err
	}
	return printShipment(data)
}

func printShipment(data []byte) error {
	var resp ShipmentResponse
	if err := unmarshal(data, &resp); err != nil {
		return err
	}

	switch flagOutput {
	case outputJSON:
		printJSON(resp)
	case outputYAML:
		printYAML(resp)
	default:
		fmt.Printf("ID:              %s\n", resp.ID)
		fmt.Printf("Order Ref:       %s\n", resp.OrderRef)
		fmt.Printf("Carrier:         %s\n", resp.Carrier)
		fmt.Printf("Tracking:        %s\n", resp.TrackingNumber)
		fmt.Printf("Status:          %s\n", resp.Status)
		fmt.Printf("Courier Status:  %s\n", dash(resp.TrackingStatus))
		if resp.EstimatedDelivery != nil {
			fmt.Printf("Est. Delivery:   %s\n", shortTime(*resp.EstimatedDelivery))
		}
		if resp.LastTrackedAt != nil {
			fmt.Printf("Last Tracked:    %s\n", shortTime(*resp.LastTrackedAt))
		}
		fmt.Printf("Created:         %s\n", shortTime(resp.CreatedAt))
	}
	return nil
}
